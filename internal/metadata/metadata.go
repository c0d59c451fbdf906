package metadata

import (
	"fmt"
	"time"
)

// FileMetadata is the file record: one per stored file.
type FileMetadata struct {
	ID          string                 `json:"_id"`
	FileName    string                 `json:"filename,omitempty"`
	Length      int64                  `json:"length"`
	ChunkSize   int                    `json:"chunkSize"`
	UploadDate  time.Time              `json:"uploadDate"`
	MD5         string                 `json:"md5"`
	ContentType string                 `json:"contentType,omitempty"`
	Aliases     []string               `json:"aliases,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	// Compression names the codec the content was passed through before
	// it was chunked. Empty means raw.
	Compression string          `json:"compression,omitempty"`
	Encryption  *EncryptionInfo `json:"encryption,omitempty"`
}

// EncryptionInfo describes how chunk data is sealed.
type EncryptionInfo struct {
	Algorithm string `json:"algorithm"`
	Salt      []byte `json:"salt"`
}

// ChunkCount is the number of chunks the record's length implies.
func (f *FileMetadata) ChunkCount() int {
	if f.Length == 0 || f.ChunkSize <= 0 {
		return 0
	}
	return int((f.Length + int64(f.ChunkSize) - 1) / int64(f.ChunkSize))
}

// ChunkLength is the expected plaintext size of chunk n.
func (f *FileMetadata) ChunkLength(n int) int {
	count := f.ChunkCount()
	if n < 0 || n >= count {
		return 0
	}
	if n < count-1 {
		return f.ChunkSize
	}
	return int(f.Length - int64(count-1)*int64(f.ChunkSize))
}

// ChunkMetadata is one chunk document.
type ChunkMetadata struct {
	FileID string `json:"files_id"`
	N      int    `json:"n"`
	Data   []byte `json:"data"`
}

// Query selects file records. Every non-empty field must match; the zero
// Query matches everything.
type Query struct {
	ID          string
	FileName    string
	ContentType string
	// Metadata values are compared against the fmt.Sprint rendering of the
	// stored value.
	Metadata map[string]string
}

// IsZero reports whether q has no conditions.
func (q Query) IsZero() bool {
	return q.ID == "" && q.FileName == "" && q.ContentType == "" && len(q.Metadata) == 0
}

// Match reports whether f satisfies q.
func (q Query) Match(f *FileMetadata) bool {
	if q.ID != "" && q.ID != f.ID {
		return false
	}
	if q.FileName != "" && q.FileName != f.FileName {
		return false
	}
	if q.ContentType != "" && q.ContentType != f.ContentType {
		return false
	}
	for k, want := range q.Metadata {
		v, ok := f.Metadata[k]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

// NewFileMetadata returns an empty record for a file about to be written.
func NewFileMetadata(id, fileName string, chunkSize int) *FileMetadata {
	return &FileMetadata{
		ID:        id,
		FileName:  fileName,
		ChunkSize: chunkSize,
		Metadata:  make(map[string]interface{}),
	}
}
