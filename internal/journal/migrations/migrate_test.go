package migrations

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	dbmigrations "github.com/namn-grg/dual-channel-bot/db/migrations"
)

func TestResolveDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db", "migrations")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	resolved, err := resolveDir(dir)
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(resolved))

	_, err = resolveDir(filepath.Join(t.TempDir(), "missing"))
	require.True(t, errors.Is(err, fs.ErrNotExist))

	file := filepath.Join(t.TempDir(), "file.sql")
	require.NoError(t, os.WriteFile(file, []byte("select 1"), 0o600))
	_, err = resolveDir(file)
	require.ErrorIs(t, err, errNotDirectory)

	_, err = resolveDir("  ")
	require.Error(t, err)
}

func TestFileURL(t *testing.T) {
	for _, path := range []string{"/tmp/migrations", "C:/tmp/migrations"} {
		got := fileURL(path)
		require.True(t, strings.HasPrefix(got, "file:///"), got)
	}
}

func TestRunValidatesInputsBeforeConnecting(t *testing.T) {
	ctx := context.Background()
	require.Error(t, Up(ctx, "postgresql://invalid", WithDir("does-not-exist")))
	require.ErrorContains(t, Up(ctx, ""), "dsn required")
	require.ErrorContains(t, Down(ctx, "postgresql://invalid", 0), "steps")
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.Glob(dbmigrations.Files, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range entries {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", name)
		}
	}
	require.Equal(t, ups, downs)
}
