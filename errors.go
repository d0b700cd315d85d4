package payflow

import (
	"errors"
	"fmt"
)

// FlowError represents a lifecycle-specific error
type FlowError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	// Protocol violations: programming/ordering errors, logged, never
	// surfaced as if they were user mistakes
	ErrCodeInvalidTransition   = "invalid_transition"
	ErrCodeTerminalState       = "terminal_state_violation"
	ErrCodeNotValidated        = "not_validated"
	ErrCodeAlreadyBroadcasting = "already_broadcasting"

	// Transient infrastructure: safe to retry the same action
	ErrCodeGatewayUnavailable = "gateway_unavailable"
	ErrCodeNetworkError       = "network_error"

	// Ingestion anomalies: acknowledged and absorbed, never escalated
	ErrCodeUnverifiedSource   = "unverified_source"
	ErrCodeUnknownTransaction = "unknown_transaction"

	ErrCodeRecordNotFound = "record_not_found"
)

// NewFlowError creates a new lifecycle error
func NewFlowError(code, message string, details map[string]interface{}) *FlowError {
	return &FlowError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// IsCode reports whether err is a FlowError with the given code
func IsCode(err error, code string) bool {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// Retryable reports whether err belongs to the transient infrastructure
// class, meaning the same action can be retried without operator changes
func Retryable(err error) bool {
	return IsCode(err, ErrCodeGatewayUnavailable) || IsCode(err, ErrCodeNetworkError)
}

// ErrNotFound is returned by record stores when no record exists for an id
var ErrNotFound = errors.New("record not found")
