package fsops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NewAssignsMonotonicIDs(t *testing.T) {
	reg := NewRegistry()
	a := reg.New(KindRead, "/tmp/a", nil)
	b := reg.New(KindWrite, "/tmp/b", nil)
	assert.Less(t, a.ID, b.ID)
	assert.Same(t, a, reg.Lookup(a.ID))
	reg.Release(a.ID)
	assert.Nil(t, reg.Lookup(a.ID))
}

func TestRecord_CancelIsObservable(t *testing.T) {
	reg := NewRegistry()
	rec := reg.New(KindReadGenerator, "/tmp/a", nil)
	assert.False(t, rec.IsCancelled())
	rec.Cancel()
	assert.True(t, rec.IsCancelled())
}

func TestReadWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	n, err := Write(p, []byte("hello world"), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 11, n)

	data, err := Read(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestRead_OffsetAndLength(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	_, err := Write(p, []byte("0123456789"), nil)
	require.NoError(t, err)

	data, err := Read(p, map[string]any{"offset": int64(3), "length": int64(4)})
	require.NoError(t, err)
	assert.Equal(t, "3456", string(data))
}

func TestWrite_CreateDirectories(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a", "b", "f.txt")
	_, err := Write(p, []byte("x"), map[string]any{"create_directories": true})
	require.NoError(t, err)
	_, statErr := os.Stat(p)
	assert.NoError(t, statErr)
}

func TestAppend_CreatesThenAppends(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "log.txt")
	_, err := Append(p, []byte("line1\n"))
	require.NoError(t, err)
	_, err = Append(p, []byte("line2\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(data))
}

func TestExists_EmptyPathReturnsFalseNotError(t *testing.T) {
	ok, err := Exists("")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExists_TrueAndFalse(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	ok, err := Exists(p)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	ok, err = Exists(p)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetStats_ReportsSize(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(p, []byte("12345"), 0o644))

	stats, err := GetStats(p)
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.Size)
	assert.False(t, stats.IsDir)
}

func TestDelete_RemovesFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	require.NoError(t, Delete(p))
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))
}

func TestCopy_DuplicatesContentAndPermissions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))
	require.NoError(t, Copy(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRename_MovesFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))
	require.NoError(t, Rename(src, dst))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCreateDirectory_RecursiveAndNonRecursive(t *testing.T) {
	dir := t.TempDir()
	flat := filepath.Join(dir, "flat")
	require.NoError(t, CreateDirectory(flat, 0o755, false))

	nested := filepath.Join(dir, "a", "b", "c")
	err := CreateDirectory(nested, 0o755, false)
	assert.Error(t, err)
	require.NoError(t, CreateDirectory(nested, 0o755, true))
	info, statErr := os.Stat(nested)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestRemoveDirectory_Recursive(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "nested", "f.txt"), []byte("x"), 0o644))

	require.NoError(t, RemoveDirectory(target))
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}
