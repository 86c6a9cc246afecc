// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/annonymususer90/my99exch/internal/observability"
)

// resetForTest restores package state shared between command runs.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	envFile = ""
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
}

// createTempConfig writes a config file whose log file lives in a temp dir.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	base := "logger:\n  level: fatal\n  log_file: " + filepath.Join(dir, "test.log") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(base+content), 0o600))
	return path
}

// executeCommand runs a fresh command tree and returns its output.
func executeCommand(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
