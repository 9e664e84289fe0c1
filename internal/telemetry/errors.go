package telemetry

import "errors"

// Domain errors for telemetry operations.
var (
	ErrNoData         = errors.New("telemetry: no data")
	ErrInvalidPayload = errors.New("telemetry: invalid payload")
	ErrInvalidRange   = errors.New("telemetry: from is after to")
)
