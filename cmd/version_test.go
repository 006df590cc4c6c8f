package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() {
		versionCmd.SetOut(nil)
		_ = versionCmd.Flags().Set("verbose", "false")
	})

	versionCmd.Run(versionCmd, nil)
	if got := buf.String(); got != "seca-markup version "+Version+"\n" {
		t.Errorf("unexpected short version %q", got)
	}

	buf.Reset()
	if err := versionCmd.Flags().Set("verbose", "true"); err != nil {
		t.Fatal(err)
	}
	versionCmd.Run(versionCmd, nil)
	for _, want := range []string{"Git Commit:", "Go Version:", "Rules:"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("verbose output missing %q", want)
		}
	}
}
