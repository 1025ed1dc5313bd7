package ferrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_NotFoundOnRead(t *testing.T) {
	raw := errors.New("open /tmp/x: no such file or directory")
	err := Classify("read", "/tmp/x", raw)
	require.NotNil(t, err)
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Equal(t, "/tmp/x", err.Path)
	assert.ErrorIs(t, err, raw)
}

func TestClassify_WriteFailedNeverNotFound(t *testing.T) {
	raw := errors.New("no such file or directory")
	err := Classify("write", "/tmp/x", raw)
	require.NotNil(t, err)
	assert.Equal(t, KindWriteFailed, err.Kind, "a missing-path error on a write-class op classifies as WriteFailed, not NotFound")
}

func TestClassify_AlreadyExists(t *testing.T) {
	err := Classify("mkdir", "/tmp/d", errors.New("mkdir /tmp/d: file exists"))
	require.NotNil(t, err)
	assert.Equal(t, KindAlreadyExists, err.Kind)
}

func TestClassify_PermissionDenied(t *testing.T) {
	err := Classify("delete", "/tmp/x", errors.New("remove /tmp/x: permission denied"))
	require.NotNil(t, err)
	assert.Equal(t, KindPermissionDenied, err.Kind)
}

func TestClassify_GenericFallback(t *testing.T) {
	err := Classify("stat", "/tmp/x", errors.New("some unexpected condition"))
	require.NotNil(t, err)
	assert.Equal(t, KindGeneric, err.Kind)
}

func TestClassifyCopy_PrefersNotFound(t *testing.T) {
	err := ClassifyCopy("copy", "/src", "/dst", errors.New("open /src: no such file or directory"))
	require.NotNil(t, err)
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Equal(t, "/src", err.Path)
	assert.Equal(t, "/dst", err.Dest)
}

func TestClassifyCopy_FallsBackToCopyFailed(t *testing.T) {
	err := ClassifyCopy("copy", "/src", "/dst", errors.New("cross-device link"))
	require.NotNil(t, err)
	assert.Equal(t, KindCopyFailed, err.Kind)
}

func TestClassifyStream_AnnotatesBytesHandled(t *testing.T) {
	err := ClassifyStream("writeStream", "/tmp/big", 4096, errors.New("input/output error"))
	require.NotNil(t, err)
	assert.Equal(t, KindStreamFailed, err.Kind)
	assert.True(t, err.HasBytes)
	assert.EqualValues(t, 4096, err.BytesHandled)
}

func TestErrorIsMatchesByKindOnly(t *testing.T) {
	a := New(KindNotFound, "read", "/a", errors.New("x"))
	b := New(KindNotFound, "write", "/b", errors.New("y"))
	assert.True(t, errors.Is(a, b))

	c := New(KindWriteFailed, "write", "/b", errors.New("y"))
	assert.False(t, errors.Is(a, c))
}

func TestClassifyNilReturnsNil(t *testing.T) {
	assert.Nil(t, Classify("read", "/x", nil))
}
