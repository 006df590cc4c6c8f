package cmd

import (
	"testing"

	"github.com/fatih/color"
)

// disableColor turns colour codes off for the duration of a test.
func disableColor(t *testing.T) {
	t.Helper()
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})
}
