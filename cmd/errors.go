package cmd

import (
	"fmt"
	"strings"

	sharedErrors "github.com/khanhnv2901/seca-markup/internal/shared/errors"
)

// UnsupportedFormatError reports an output format the command cannot produce.
type UnsupportedFormatError struct {
	Format    string
	Supported []string
}

func (e *UnsupportedFormatError) Error() string {
	if len(e.Supported) == 0 {
		return fmt.Sprintf("unsupported format %q", e.Format)
	}
	return fmt.Sprintf("unsupported format %q (supported: %s)", e.Format, strings.Join(e.Supported, ", "))
}

func (e *UnsupportedFormatError) Unwrap() error { return sharedErrors.ErrUnsupportedFormat }

// ScoreThresholdError signals that a scanned source scored below --fail-under.
type ScoreThresholdError struct {
	Source    string
	Score     int
	Threshold int
}

func (e *ScoreThresholdError) Error() string {
	return fmt.Sprintf("%s scored %d, below the required %d", e.Source, e.Score, e.Threshold)
}

func (e *ScoreThresholdError) Unwrap() error { return sharedErrors.ErrScoreBelowGate }

// UnknownRuleError names a rule ID that is not in the catalog.
type UnknownRuleError struct {
	ID string
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown rule %q (see 'seca-markup rules')", e.ID)
}

func (e *UnknownRuleError) Unwrap() error { return sharedErrors.ErrUnknownRule }
