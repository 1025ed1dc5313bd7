package streaming

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name string, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestChunkedReader_YieldsExactOneChunkWhenSmallerThanChunkSize(t *testing.T) {
	p := writeTemp(t, "small.txt", "hello")
	r, err := OpenChunkedReader(p, ChunkedReaderOptions{ChunkSize: 8192})
	require.NoError(t, err)
	defer r.Close()

	chunk, end, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(chunk))

	if !end {
		chunk2, end2, err2 := r.Next()
		require.NoError(t, err2)
		assert.Empty(t, chunk2)
		assert.True(t, end2)
	}
}

func TestChunkedReader_OffsetAndLength(t *testing.T) {
	p := writeTemp(t, "ol.txt", "Hello, World!")
	r, err := OpenChunkedReader(p, ChunkedReaderOptions{Offset: 7, Length: 5, HasLength: true, ChunkSize: 8192})
	require.NoError(t, err)
	defer r.Close()

	var got []byte
	for {
		chunk, end, err := r.Next()
		require.NoError(t, err)
		got = append(got, chunk...)
		if end {
			break
		}
	}
	assert.Equal(t, "World", string(got))
}

func TestChunkedReader_MultipleChunks(t *testing.T) {
	content := make([]byte, 10)
	for i := range content {
		content[i] = byte('a' + i)
	}
	p := writeTemp(t, "multi.txt", string(content))
	r, err := OpenChunkedReader(p, ChunkedReaderOptions{ChunkSize: 3})
	require.NoError(t, err)
	defer r.Close()

	var got []byte
	for {
		chunk, end, err := r.Next()
		require.NoError(t, err)
		got = append(got, chunk...)
		if end {
			break
		}
	}
	assert.Equal(t, content, got)
}

func TestChunkedWriter_WritesAndFsyncs(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.txt")
	w, err := OpenChunkedWriter(p, ChunkedWriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.WriteChunk([]byte("chunk0\n")))
	require.NoError(t, w.WriteChunk([]byte("chunk1\n")))
	require.NoError(t, w.Close())

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "chunk0\nchunk1\n", string(got))
	assert.EqualValues(t, len("chunk0\nchunk1\n"), w.BytesWritten())
}

func TestChunkedWriter_CreateDirectories(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "deep", "out.txt")
	w, err := OpenChunkedWriter(p, ChunkedWriterOptions{CreateDirectories: true})
	require.NoError(t, err)
	require.NoError(t, w.WriteChunk([]byte("x")))
	require.NoError(t, w.Close())
	_, err = os.Stat(p)
	assert.NoError(t, err)
}

func TestChunkedWriter_AbortRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "partial.txt")
	w, err := OpenChunkedWriter(p, ChunkedWriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.WriteChunk([]byte("partial data")))
	require.NoError(t, w.Abort())

	_, statErr := os.Stat(p)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLineReader_MixedEndings(t *testing.T) {
	content := "Line 1\rLine 2\r\nLine 3\n"
	var pos int
	data := []byte(content)
	next := Puller(func() ([]byte, bool, error) {
		if pos >= len(data) {
			return nil, true, nil
		}
		end := pos + 4
		if end > len(data) {
			end = len(data)
		}
		chunk := data[pos:end]
		pos = end
		return chunk, pos >= len(data), nil
	})
	lr := NewLineReader(next, LineReaderOptions{})
	var lines []string
	for {
		line, ok, err := lr.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	require.GreaterOrEqual(t, len(lines), 3)
	joined := ""
	for _, l := range lines {
		joined += l + "|"
	}
	assert.Contains(t, joined, "Line 1")
	assert.Contains(t, joined, "Line 2")
	assert.Contains(t, joined, "Line 3")
}

func TestLineReader_OnlyNewlineYieldsEmptyLineUnlessSkipped(t *testing.T) {
	called := false
	next := Puller(func() ([]byte, bool, error) {
		if called {
			return nil, true, nil
		}
		called = true
		return []byte("\n"), true, nil
	})
	lr := NewLineReader(next, LineReaderOptions{})
	line, ok, err := lr.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", line)

	called = false
	lr2 := NewLineReader(Puller(func() ([]byte, bool, error) {
		if called {
			return nil, true, nil
		}
		called = true
		return []byte("\n"), true, nil
	}), LineReaderOptions{SkipEmpty: true})
	_, ok2, err2 := lr2.Next()
	require.NoError(t, err2)
	assert.False(t, ok2)
}

func TestAutoBuffer_CoalescesSmallYields(t *testing.T) {
	parts := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}
	i := 0
	upstream := Puller(func() ([]byte, bool, error) {
		if i >= len(parts) {
			return nil, true, nil
		}
		p := parts[i]
		i++
		return p, i >= len(parts), nil
	})
	buffered := AutoBuffer(upstream, 3)
	var yields [][]byte
	for {
		chunk, end, err := buffered()
		require.NoError(t, err)
		if len(chunk) > 0 {
			yields = append(yields, chunk)
		}
		if end {
			break
		}
	}
	var total []byte
	for _, y := range yields {
		total = append(total, y...)
	}
	assert.Equal(t, "abcde", string(total))
	assert.LessOrEqual(t, len(yields), 2)
}

func TestLazySequence_CollectConcatenatesChunks(t *testing.T) {
	p := writeTemp(t, "seq.txt", "0123456789")
	r, err := OpenChunkedReader(p, ChunkedReaderOptions{ChunkSize: 3})
	require.NoError(t, err)
	seq := NewLazySequence(1, r.Next, func() bool { return false })
	data, err := seq.Collect()
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestLazySequence_CancelledPullReturnsError(t *testing.T) {
	p := writeTemp(t, "seq2.txt", "data")
	r, err := OpenChunkedReader(p, ChunkedReaderOptions{ChunkSize: 2})
	require.NoError(t, err)
	cancelled := true
	seq := NewLazySequence(2, r.Next, func() bool { return cancelled })
	_, ok, err := seq.Pull()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrSequenceCancelled)
}
