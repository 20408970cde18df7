package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(context.Background(), Config{Workspace: dir})
	require.NoError(t, err)
	defer conn.Close()

	_, err = os.Stat(filepath.Join(dir, ".taskdash"))
	require.NoError(t, err)

	var fk int
	require.NoError(t, conn.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpenExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.db")
	conn, err := Open(context.Background(), Config{Path: path})
	require.NoError(t, err)
	defer conn.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join(".", ".taskdash", "taskdash.db"), Path(""))
	assert.Equal(t, filepath.Join("ws", ".taskdash", "taskdash.db"), Path("ws"))
}
