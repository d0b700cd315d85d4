package payflow

import (
	"context"
	"log/slog"
	"time"
)

// SimulationGateway sends envelopes to the settlement network's dry-run
// endpoint and maps the response into a structured outcome. It never
// mutates network state.
type SimulationGateway struct {
	client  SettlementClient
	timeout time.Duration
	log     *slog.Logger
}

// DefaultSimulateTimeout bounds the dry-run call so it never hangs
const DefaultSimulateTimeout = 10 * time.Second

// NewSimulationGateway creates a gateway over the given settlement client
func NewSimulationGateway(client SettlementClient, timeout time.Duration, log *slog.Logger) *SimulationGateway {
	if timeout <= 0 {
		timeout = DefaultSimulateTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &SimulationGateway{client: client, timeout: timeout, log: log}
}

// Simulate evaluates the envelope against network state without
// committing it. Transport failures (timeout, unreachable) surface as a
// gateway_unavailable FlowError, never conflated with a validation
// rejection, so the caller can retry without re-asking the operator to
// fix the form. Validation rejections come back as a non-success
// outcome with a reason from the closed set.
func (g *SimulationGateway) Simulate(ctx context.Context, envelope string) (*SimulationOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	outcome, err := g.client.Simulate(ctx, envelope)
	if err != nil {
		g.log.Warn("simulation transport failure", "err", err)
		return nil, NewFlowError(ErrCodeGatewayUnavailable,
			"settlement network dry-run unreachable",
			map[string]interface{}{"cause": err.Error()})
	}

	if !outcome.Success {
		outcome.Reason = NormalizeReason(string(outcome.Reason))
	}
	return outcome, nil
}
