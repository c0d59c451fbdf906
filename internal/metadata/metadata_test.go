package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkArithmetic(t *testing.T) {
	cases := []struct {
		length    int64
		chunkSize int
		count     int
		last      int
	}{
		{0, 10, 0, 0},
		{1, 10, 1, 1},
		{10, 10, 1, 10},
		{11, 10, 2, 1},
		{35, 10, 4, 5},
		{40, 10, 4, 10},
	}
	for _, c := range cases {
		f := &FileMetadata{Length: c.length, ChunkSize: c.chunkSize}
		require.Equal(t, c.count, f.ChunkCount(), "length %d", c.length)
		if c.count > 0 {
			require.Equal(t, c.last, f.ChunkLength(c.count-1))
			if c.count > 1 {
				require.Equal(t, c.chunkSize, f.ChunkLength(0))
			}
		}
		require.Equal(t, 0, f.ChunkLength(c.count))
		require.Equal(t, 0, f.ChunkLength(-1))
	}
}

func TestQueryMatch(t *testing.T) {
	f := NewFileMetadata("id1", "report.pdf", 1024)
	f.ContentType = "application/pdf"
	f.Metadata["meta"] = 5

	// metadata values survive a JSON round trip as float64
	raw, err := json.Marshal(f)
	require.NoError(t, err)
	var stored FileMetadata
	require.NoError(t, json.Unmarshal(raw, &stored))

	for _, file := range []*FileMetadata{f, &stored} {
		require.True(t, Query{}.Match(file))
		require.True(t, Query{ID: "id1"}.Match(file))
		require.True(t, Query{FileName: "report.pdf", ContentType: "application/pdf"}.Match(file))
		require.True(t, Query{Metadata: map[string]string{"meta": "5"}}.Match(file))
		require.False(t, Query{Metadata: map[string]string{"meta": "6"}}.Match(file))
		require.False(t, Query{Metadata: map[string]string{"other": "5"}}.Match(file))
		require.False(t, Query{FileName: "report.doc"}.Match(file))
		require.False(t, Query{ID: "id2", FileName: "report.pdf"}.Match(file))
	}

	require.True(t, Query{}.IsZero())
	require.False(t, Query{FileName: "x"}.IsZero())
	require.False(t, Query{Metadata: map[string]string{"a": "b"}}.IsZero())
}
