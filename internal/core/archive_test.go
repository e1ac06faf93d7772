package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveToDoneCreatesFolder(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "IMG_0001.jpg")
	require.NoError(t, os.WriteFile(src, []byte("pixels"), 0o644))
	doneDir := filepath.Join(root, "archive", "2024")

	dest, err := MoveToDone(src, doneDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(doneDir, "IMG_0001.jpg"), dest)
	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))
}

func TestMoveToDoneOverwritesExisting(t *testing.T) {
	root := t.TempDir()
	doneDir := filepath.Join(root, "done")
	require.NoError(t, os.Mkdir(doneDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(doneDir, "IMG_0001.jpg"), []byte("old"), 0o644))

	src := filepath.Join(root, "IMG_0001.jpg")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	dest, err := MoveToDone(src, doneDir)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	entries, err := os.ReadDir(doneDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMoveToDoneMissingSource(t *testing.T) {
	root := t.TempDir()
	_, err := MoveToDone(filepath.Join(root, "gone.jpg"), filepath.Join(root, "done"))
	require.Error(t, err)
}

func TestCopyFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.jpg")
	dest := filepath.Join(root, "b.jpg")
	require.NoError(t, os.WriteFile(src, []byte("bytes"), 0o600))
	require.NoError(t, os.WriteFile(dest, []byte("longer previous content"), 0o600))

	require.NoError(t, copyFile(src, dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(data))
}
