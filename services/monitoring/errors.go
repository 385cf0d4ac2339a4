package monitoring

import "errors"

var (
	ErrTargetNotFound    = errors.New("monitoring target not found")
	ErrAlreadyMonitoring = errors.New("target is already being monitored")
	ErrInvalidTarget     = errors.New("invalid monitoring target")
	ErrShuttingDown      = errors.New("monitoring supervisor is shutting down")
)
