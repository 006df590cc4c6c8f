package errors

import "errors"

// Domain errors
var (
	// Scan errors
	ErrNoSources         = errors.New("no input sources given")
	ErrSourceUnreadable  = errors.New("input source could not be read")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrUnknownRule       = errors.New("unknown rule")
	ErrScoreBelowGate    = errors.New("score below threshold")

	// History errors
	ErrHistoryUnavailable = errors.New("scan history store unavailable")
	ErrHistoryClosed      = errors.New("scan history store closed")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)
