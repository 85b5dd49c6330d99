package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinVariousSlashCombinations(t *testing.T) {
	require.Equal(t, "a/b", Join("a", "b"))
	require.Equal(t, "a/b", Join("a/", "b"))
	require.Equal(t, "a/b", Join("a", "/b"))
	require.Equal(t, "a/b", Join("a/", "/b"))
	require.Equal(t, "a", Join("a", ""))
	require.Equal(t, "b", Join("", "b"))
}

func TestExistsIsDirIsRegular(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("hi"), 0o644))

	require.True(t, Exists(dir))
	require.True(t, Exists(file))
	require.False(t, Exists(filepath.Join(dir, "nope")))

	require.True(t, IsDir(dir))
	require.False(t, IsDir(file))

	require.True(t, IsRegular(file))
	require.False(t, IsRegular(dir))
}

func TestSizeReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sub", "f.txt")
	require.NoError(t, WriteFile(file, []byte("hello")))

	data, err := ReadFile(file)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	size, err := Size(file)
	require.NoError(t, err)
	require.EqualValues(t, 5, size)
}

func TestUploadFilenamePattern(t *testing.T) {
	require.Equal(t, "upload_100_200_3.bin", UploadFilename(100, 200, 3))
}

func TestListDirReturnsEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	entries, err := ListDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestFastAbsHandlesAbsoluteAndRelative(t *testing.T) {
	abs, err := FastAbs("/already/absolute")
	require.NoError(t, err)
	require.Equal(t, "/already/absolute", abs)

	rel, err := FastAbs("relative/path")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(rel))
}
