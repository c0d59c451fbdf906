package chunker

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/jaywantadh/gridstore/internal/encryptor"
	"github.com/jaywantadh/gridstore/internal/metadata"
	"github.com/jaywantadh/gridstore/internal/storage"
)

var (
	ErrInvalidChunkSize = errors.New("chunkSize must be greater than zero")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrWriteStarted     = errors.New("write already started")
	ErrClosed           = errors.New("writer is closed")
	ErrCorruptChunk     = errors.New("corrupt chunk")
)

type writerState int

const (
	stateOpen writerState = iota
	stateWriting
	stateFinalized
	stateAborted
)

// WriterOptions describes the file a Writer creates.
type WriterOptions struct {
	// ID of the file record. A random UUID is used when empty.
	ID          string
	FileName    string
	ChunkSize   int
	ContentType string
	Aliases     []string
	Metadata    map[string]interface{}
	Compression string

	// Sealer, when set, encrypts every chunk. Encryption is recorded on the
	// file record so readers can rebuild the Sealer.
	Sealer     encryptor.Sealer
	Encryption *metadata.EncryptionInfo
}

// Writer splits a byte stream into chunks and persists them as they fill.
// The file record is only stored by Finalize.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	ctx    context.Context
	store  storage.Store
	file   *metadata.FileMetadata
	sealer encryptor.Sealer

	buf     []byte // cap(buf) == file.ChunkSize
	n       int    // next chunk sequence number
	written int64
	md5     hash.Hash
	state   writerState
	err     error
}

var _ io.WriteCloser = (*Writer)(nil)
var _ io.ReaderFrom = (*Writer)(nil)

// NewWriter starts a new file in store. ctx is used for every store call
// the Writer makes.
func NewWriter(ctx context.Context, store storage.Store, opts WriterOptions) (*Writer, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, opts.ChunkSize)
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}

	file := metadata.NewFileMetadata(id, opts.FileName, opts.ChunkSize)
	file.ContentType = opts.ContentType
	file.Aliases = opts.Aliases
	file.Compression = opts.Compression
	file.Encryption = opts.Encryption
	for k, v := range opts.Metadata {
		file.Metadata[k] = v
	}

	return &Writer{
		ctx:    ctx,
		store:  store,
		file:   file,
		sealer: opts.Sealer,
		buf:    make([]byte, 0, opts.ChunkSize),
		md5:    md5.New(),
	}, nil
}

// ID returns the id the file will be stored under.
func (w *Writer) ID() string {
	return w.file.ID
}

// ChunkSize returns the current chunk size.
func (w *Writer) ChunkSize() int {
	return w.file.ChunkSize
}

// SetID replaces the generated id. It must be called before any byte is
// written.
func (w *Writer) SetID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidArgument)
	}
	if w.state != stateOpen {
		return fmt.Errorf("cannot set id of %s: %w", w.file.ID, ErrWriteStarted)
	}
	w.file.ID = id
	return nil
}

// SetChunkSize changes the chunk size before any byte is written.
func (w *Writer) SetChunkSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	if w.state != stateOpen {
		return fmt.Errorf("cannot change chunk size of %s: %w", w.file.ID, ErrWriteStarted)
	}
	w.file.ChunkSize = size
	w.buf = make([]byte, 0, size)
	return nil
}

// Put sets a free-form metadata attribute on the file record.
func (w *Writer) Put(key string, value interface{}) {
	w.file.Metadata[key] = value
}

func (w *Writer) writable() error {
	if w.state == stateFinalized || w.state == stateAborted {
		return ErrClosed
	}
	return w.err
}

// Write buffers p, persisting every chunk that fills up. A store error
// aborts the write: it is returned unchanged, and every later call returns
// it too.
func (w *Writer) Write(p []byte) (int, error) {
	if err := w.writable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	w.state = stateWriting
	w.md5.Write(p)
	w.written += int64(len(p))
	if err := w.fill(p); err != nil {
		return len(p), err
	}
	return len(p), nil
}

// ReadFrom reads r until EOF straight into the chunk buffer.
func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	if err := w.writable(); err != nil {
		return 0, err
	}
	var total int64
	for {
		free := w.buf[len(w.buf):w.file.ChunkSize]
		n, err := io.ReadFull(r, free)
		if n > 0 {
			w.state = stateWriting
			w.md5.Write(free[:n])
			w.written += int64(n)
			total += int64(n)
			w.buf = w.buf[:len(w.buf)+n]
			if len(w.buf) == w.file.ChunkSize {
				if ferr := w.flush(); ferr != nil {
					return total, ferr
				}
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// fill copies p into the chunk buffer, flushing whenever it is full.
func (w *Writer) fill(p []byte) error {
	for len(p) > 0 {
		k := copy(w.buf[len(w.buf):w.file.ChunkSize], p)
		w.buf = w.buf[:len(w.buf)+k]
		p = p[k:]
		if len(w.buf) == w.file.ChunkSize {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// flush persists the buffered bytes as the next chunk.
func (w *Writer) flush() error {
	data := w.buf
	w.buf = make([]byte, 0, w.file.ChunkSize)

	if w.sealer != nil {
		sealed, err := w.sealer.Seal(data)
		if err != nil {
			w.err = fmt.Errorf("failed to seal chunk %d of %s: %w", w.n, w.file.ID, err)
			return w.err
		}
		data = sealed
	}

	err := w.store.InsertChunk(w.ctx, metadata.ChunkMetadata{
		FileID: w.file.ID,
		N:      w.n,
		Data:   data,
	})
	if err != nil {
		w.err = err
		return err
	}
	w.n++
	return nil
}

// Close finalizes the file with its configured chunk size.
func (w *Writer) Close() error {
	return w.Finalize(w.file.ChunkSize)
}

// Finalize flushes the last (possibly short) chunk and stores the file
// record. chunkSize replaces the configured size when no chunk has been
// persisted yet, and is ignored otherwise. A zero-length file is stored
// with no chunks.
func (w *Writer) Finalize(chunkSize int) error {
	if w.state == stateFinalized || w.state == stateAborted {
		return ErrClosed
	}
	if w.err != nil {
		return w.err
	}
	if chunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}

	if chunkSize != w.file.ChunkSize && w.n == 0 {
		pending := w.buf
		w.file.ChunkSize = chunkSize
		w.buf = make([]byte, 0, chunkSize)
		if err := w.fill(pending); err != nil {
			return err
		}
	}

	if len(w.buf) > 0 {
		if err := w.flush(); err != nil {
			return err
		}
	}

	w.file.Length = w.written
	w.file.MD5 = hex.EncodeToString(w.md5.Sum(nil))
	w.file.UploadDate = time.Now().UTC()
	if err := w.store.InsertFile(w.ctx, w.file); err != nil {
		w.err = err
		return err
	}
	w.state = stateFinalized
	return nil
}

// Discard abandons an unfinalized file and removes the chunks already
// persisted for it. The writer is aborted even if the cleanup fails.
func (w *Writer) Discard() error {
	switch w.state {
	case stateFinalized:
		return ErrClosed
	case stateAborted:
		return nil
	}
	w.state = stateAborted
	w.buf = nil
	// Only chunks this writer stored are removed; a failed first insert may
	// have collided with another file's chunks.
	if w.n == 0 {
		return nil
	}
	if err := w.store.DeleteChunks(w.ctx, w.file.ID); err != nil {
		return fmt.Errorf("failed to discard chunks of %s: %w", w.file.ID, err)
	}
	return nil
}

// File returns the stored file record once Finalize has succeeded, and nil
// before.
func (w *Writer) File() *metadata.FileMetadata {
	if w.state != stateFinalized {
		return nil
	}
	f := *w.file
	return &f
}
