package transfer

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerCountsBytes(t *testing.T) {
	tr := NewTracker()
	p := tr.Start("a.txt", Upload, 10)

	_, err := io.Copy(io.Discard, p.Reader(strings.NewReader("hello")))
	require.NoError(t, err)

	list := tr.List()
	require.Len(t, list, 1)
	require.Equal(t, int64(5), list[0].Bytes)
	require.Equal(t, int64(10), list[0].TotalBytes)
	require.Equal(t, Upload, list[0].Direction)

	got, ok := tr.Get(p.ID())
	require.True(t, ok)
	require.Same(t, p, got)

	final := p.Finish()
	require.Equal(t, int64(5), final.Bytes)
	require.Empty(t, tr.List())
	_, ok = tr.Get(p.ID())
	require.False(t, ok)
}

func TestProgressWriter(t *testing.T) {
	tr := NewTracker()
	p := tr.Start("b.bin", Download, 0)

	var buf bytes.Buffer
	w := p.Writer(&buf)
	_, err := w.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, int64(10), p.Snapshot().Bytes)
	require.True(t, strings.HasPrefix(p.Snapshot().String(), "download b.bin: 10 B"))
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "512 B", FormatBytes(512))
	require.Equal(t, "1.0 KiB", FormatBytes(1024))
	require.Equal(t, "1.5 MiB", FormatBytes(1536*1024))
}
