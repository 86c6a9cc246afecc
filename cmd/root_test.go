// File: cmd/root_test.go
package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annonymususer90/my99exch/internal/config"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)
	out, err := executeCommand(t, NewRootCommand(), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "my99exch version "+Version)
}

func TestVersionCmd(t *testing.T) {
	resetForTest(t)
	out, err := executeCommand(t, NewRootCommand(), "version")
	require.NoError(t, err)
	assert.Equal(t, "my99exch "+Version+"\n", out)
}

func TestRootCmd_NoArgs(t *testing.T) {
	resetForTest(t)
	out, err := executeCommand(t, NewRootCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "one browser session per site")
	assert.Contains(t, out, "serve")
	assert.Contains(t, out, "export")
}

// probeCommand attaches a subcommand that captures the loaded config.
func probeCommand(root *cobra.Command, got **config.Config) {
	probe := &cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			*got = cfg
			return err
		},
	}
	probe.Flags().String("addr", "", "")
	root.AddCommand(probe)
}

func TestConfigFileAndOverrides(t *testing.T) {
	resetForTest(t)
	path := createTempConfig(t, `
server:
  addr: "127.0.0.1:4000"
  allowed_origins: ["https://panel.example"]
database:
  driver: none
session:
  admission_timeout: 45s
operations:
  account_prefix: zz
sites:
  - url: https://panel.example
    username: admin
    password: secret
`)
	t.Setenv("MY99EXCH_DEFAULT_SECRET", "FromEnv99")

	var cfg *config.Config
	root := NewRootCommand()
	probeCommand(root, &cfg)
	_, err := executeCommand(t, root, "--config", path, "probe")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://panel.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, config.DriverNone, cfg.Database.Driver)
	assert.Equal(t, 45*time.Second, cfg.Session.AdmissionTimeout)
	assert.Equal(t, "zz", cfg.Operations.AccountPrefix)
	assert.Equal(t, "FromEnv99", cfg.Operations.DefaultSecret)
	require.Len(t, cfg.Sites, 1)
	assert.Equal(t, "admin", cfg.Sites[0].Username)
	assert.Equal(t, "secret", cfg.Sites[0].Secret)
}

func TestFlagOverridesConfigFile(t *testing.T) {
	resetForTest(t)
	path := createTempConfig(t, "server:\n  addr: \"127.0.0.1:4000\"\n")

	var cfg *config.Config
	root := NewRootCommand()
	probeCommand(root, &cfg)
	_, err := executeCommand(t, root, "--config", path, "probe", "--addr", "127.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.Addr)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	resetForTest(t)
	path := createTempConfig(t, "database:\n  driver: mongo\n")

	_, err := executeCommand(t, NewRootCommand(), "--config", path, "export", "--from", "2024-01-01", "--to", "2024-01-02")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}

func TestMissingConfigFileIsAnError(t *testing.T) {
	resetForTest(t)
	_, err := executeCommand(t, NewRootCommand(), "--config", "/nonexistent/my99exch.yaml", "export", "--from", "2024-01-01", "--to", "2024-01-02")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestGetConfigFromContext(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.Error(t, err)
}
