// Package notify delivers human-readable status messages to the
// operator. Implementations must never block the lifecycle: a slow or
// failed delivery is logged and dropped.
package notify

import (
	"context"
	"log/slog"
)

// SlogNotifier writes status messages to the structured log
type SlogNotifier struct {
	log *slog.Logger
}

// NewSlogNotifier creates a notifier over the given logger
func NewSlogNotifier(log *slog.Logger) *SlogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &SlogNotifier{log: log}
}

// Notify logs the message at info level
func (n *SlogNotifier) Notify(_ context.Context, message string) {
	n.log.Info("notify", "message", message)
}
