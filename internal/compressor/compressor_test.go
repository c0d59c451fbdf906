package compressor

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("stream me "), 10000)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	_, err := io.Copy(w, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out, err := io.ReadAll(NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestMediaTypes(t *testing.T) {
	m := NewMediaTypes(nil)
	require.True(t, m.IsCompressible("text/plain"))
	require.True(t, m.IsCompressible("text/html; charset=utf-8"))
	require.True(t, m.IsCompressible("Application/JSON"))
	require.False(t, m.IsCompressible("image/jpeg"))
	require.False(t, m.IsCompressible("application/zip"))
	require.False(t, m.IsCompressible(""))
	require.False(t, m.IsCompressible("not a type;;"))

	custom := NewMediaTypes([]string{"application/x-custom", "image/*"})
	require.True(t, custom.IsCompressible("application/x-custom"))
	require.True(t, custom.IsCompressible("image/png"))
	require.False(t, custom.IsCompressible("text/plain"))
}
