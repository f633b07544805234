package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsnap/internal/snapshot"
)

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.json")
	f := File{Path: path}

	snap := snapOn("2026-02-14", 182.8)
	snap.Windows.Y1 = fv(10.0)
	in := map[string][]snapshot.Snapshot{"NVDA": {snap}}

	require.NoError(t, f.Save(in))
	out, err := f.Load()
	require.NoError(t, err)

	require.Contains(t, out, "NVDA")
	require.Len(t, out["NVDA"], 1)
	assert.Equal(t, snap, out["NVDA"][0])
}

func TestFile_MissingFileIsEmpty(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "absent.json")}
	out, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFile_EmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	out, err := File{Path: path}.Load()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFile_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := File{Path: path}.Load()
	require.Error(t, err)
}

func TestFile_SaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "snapshots.json")
	f := File{Path: path}

	require.NoError(t, f.Save(map[string][]snapshot.Snapshot{}))
	_, err := os.Stat(path)
	require.NoError(t, err)
}
