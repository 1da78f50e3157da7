package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/internal/config"
)

func noEnv(string) (string, bool) { return "", false }

func TestParseRequiresDSNAndCommand(t *testing.T) {
	_, err := parse([]string{"up"}, noEnv)
	require.ErrorContains(t, err, "journal.dsn is required")

	_, err = parse([]string{"-database", "postgres://x"}, noEnv)
	require.ErrorContains(t, err, "command required")

	cmd, err := parse([]string{"-database", "postgres://x", "-quiet", "down", "2"}, noEnv)
	require.NoError(t, err)
	require.Equal(t, "postgres://x", cmd.dsn)
	require.True(t, cmd.quiet)
	require.Equal(t, []string{"down", "2"}, cmd.args)
	require.Equal(t, defaultTimeout, cmd.timeout)
}

func TestParseReadsDSNFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dualbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("journal:\n  dsn: postgres://cfg\n"), 0o600))

	cmd, err := parse([]string{"-config", path, "up"}, noEnv)
	require.NoError(t, err)
	require.Equal(t, "postgres://cfg", cmd.dsn)

	cmd, err = parse([]string{"version"}, func(key string) (string, bool) {
		if key == config.EnvConfig {
			return path, true
		}
		return "", false
	})
	require.NoError(t, err)
	require.Equal(t, "postgres://cfg", cmd.dsn)
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run([]string{"-database", "postgres://x", "-quiet", "sideways"}, os.Stdout, noEnv)
	require.ErrorContains(t, err, `unknown command "sideways"`)

	err = run([]string{"-database", "postgres://x", "-quiet", "down", "many"}, os.Stdout, noEnv)
	require.ErrorContains(t, err, "invalid down steps")
}
