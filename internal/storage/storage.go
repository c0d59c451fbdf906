package storage

import (
	"context"
	"errors"

	"github.com/jaywantadh/gridstore/internal/metadata"
)

var (
	// ErrNotFound is returned when a file record or chunk does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when inserting a document whose key is taken.
	ErrExists = errors.New("already exists")
)

// Store defines the document store holding the two collections a file
// lives in: file records and chunks.
type Store interface {
	// InsertFile stores a new file record.
	InsertFile(ctx context.Context, file *metadata.FileMetadata) error
	// FindFile retrieves a file record by id.
	FindFile(ctx context.Context, id string) (*metadata.FileMetadata, error)
	// FindFiles returns every file record matching q.
	FindFiles(ctx context.Context, q metadata.Query) ([]*metadata.FileMetadata, error)

	// InsertChunk stores a new chunk.
	InsertChunk(ctx context.Context, chunk metadata.ChunkMetadata) error
	// FindChunk retrieves chunk n of a file.
	FindChunk(ctx context.Context, fileID string, n int) (metadata.ChunkMetadata, error)

	// DeleteFile removes a file record together with all of its chunks.
	DeleteFile(ctx context.Context, id string) error
	// DeleteChunks removes every chunk of a file, leaving any record alone.
	DeleteChunks(ctx context.Context, fileID string) error

	// Stats counts the documents in both collections.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Stats holds document counts.
type Stats struct {
	Files  int `json:"files"`
	Chunks int `json:"chunks"`
}
