package chunker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jaywantadh/gridstore/internal/encryptor"
	"github.com/jaywantadh/gridstore/internal/metadata"
	"github.com/jaywantadh/gridstore/internal/storage"
)

// Reader is a random access byte stream over a finalized file. Chunks are
// fetched from the store on demand, one at a time, and never cached beyond
// the one being read.
//
// Implementation terminology: bytes have positions, chunks have indexes.
// A position maps to chunk position/chunkSize at offset
// position%chunkSize, which holds because only the last chunk may be
// short.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	ctx    context.Context
	store  storage.Store
	file   *metadata.FileMetadata
	sealer encryptor.Sealer

	pos  int64
	n    int    // index of the loaded chunk, -1 when none
	data []byte // plaintext of chunk n
	off  int    // cursor into data
}

var (
	_ io.ReadSeeker = (*Reader)(nil)
	_ io.ByteReader = (*Reader)(nil)
	_ io.WriterTo   = (*Reader)(nil)
)

// NewReader opens file for reading. sealer must be set when the file's
// chunks are encrypted.
func NewReader(ctx context.Context, store storage.Store, file *metadata.FileMetadata, sealer encryptor.Sealer) (*Reader, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: file cannot be nil", ErrInvalidArgument)
	}
	if file.Length > 0 && file.ChunkSize <= 0 {
		return nil, fmt.Errorf("file %s: %w: %d", file.ID, ErrInvalidChunkSize, file.ChunkSize)
	}
	if file.Encryption != nil && sealer == nil {
		return nil, fmt.Errorf("%w: file %s is encrypted and no sealer was given", ErrInvalidArgument, file.ID)
	}
	return &Reader{
		ctx:    ctx,
		store:  store,
		file:   file,
		sealer: sealer,
		n:      -1,
	}, nil
}

// File returns the record being read.
func (r *Reader) File() *metadata.FileMetadata {
	return r.file
}

// Size is the total length of the file.
func (r *Reader) Size() int64 {
	return r.file.Length
}

// Position is the offset of the next byte Read returns.
func (r *Reader) Position() int64 {
	return r.pos
}

// Len is the number of bytes left before EOF.
func (r *Reader) Len() int64 {
	return r.file.Length - r.pos
}

func (r *Reader) load(n int) error {
	chunk, err := r.store.FindChunk(r.ctx, r.file.ID, n)
	if err != nil {
		return err
	}
	data := chunk.Data
	if r.sealer != nil {
		data, err = r.sealer.Open(data)
		if err != nil {
			return fmt.Errorf("%w: chunk %d of %s: %v", ErrCorruptChunk, n, r.file.ID, err)
		}
	}
	if want := r.file.ChunkLength(n); len(data) != want {
		return fmt.Errorf("%w: chunk %d of %s has %d bytes, expected %d", ErrCorruptChunk, n, r.file.ID, len(data), want)
	}
	r.n = n
	r.data = data
	return nil
}

// locate makes sure the chunk holding pos is loaded and the cursor points
// at it. pos must be before EOF.
func (r *Reader) locate() error {
	size := int64(r.file.ChunkSize)
	if n := int(r.pos / size); n != r.n {
		if err := r.load(n); err != nil {
			return err
		}
	}
	r.off = int(r.pos % size)
	return nil
}

// Read reads up to len(p) bytes, crossing chunk boundaries as needed. It
// returns io.EOF exactly when the position has reached the file length.
func (r *Reader) Read(p []byte) (int, error) {
	if r.pos >= r.file.Length {
		return 0, io.EOF
	}
	total := 0
	for total < len(p) && r.pos < r.file.Length {
		if err := r.locate(); err != nil {
			return total, err
		}
		k := copy(p[total:], r.data[r.off:])
		r.off += k
		r.pos += int64(k)
		total += k
	}
	return total, nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteTo copies the rest of the file to w, one chunk at a time.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for r.pos < r.file.Length {
		if err := r.locate(); err != nil {
			return total, err
		}
		k, err := w.Write(r.data[r.off:])
		r.off += k
		r.pos += int64(k)
		total += int64(k)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Skip moves forward n bytes, stopping at EOF, and returns how far it
// went. n <= 0 does nothing. At most one chunk is fetched regardless of
// the distance; if that fetch fails the position is left unchanged.
func (r *Reader) Skip(n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	target := r.file.Length
	if n < r.file.Length-r.pos {
		target = r.pos + n
	}
	skipped := target - r.pos

	if target < r.file.Length {
		size := int64(r.file.ChunkSize)
		if idx := int(target / size); idx != r.n {
			if err := r.load(idx); err != nil {
				return 0, err
			}
		}
		r.off = int(target % size)
	}
	r.pos = target
	return skipped, nil
}

// Available returns the number of bytes left in the loaded chunk. It is
// not the number of bytes left in the file.
func (r *Reader) Available() int {
	if r.n < 0 || r.pos >= r.file.Length {
		return 0
	}
	size := int64(r.file.ChunkSize)
	if int(r.pos/size) != r.n {
		return 0
	}
	return len(r.data) - int(r.pos%size)
}

var errNegativePosition = errors.New("seek to a negative position")

// Seek implements io.Seeker. Positions past the end are clamped to the
// file length. The chunk is fetched by the next Read.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = r.pos
	case io.SeekEnd:
		base = r.file.Length
	default:
		return r.pos, fmt.Errorf("%w: whence %d", ErrInvalidArgument, whence)
	}
	// base is within [0, length], so only a positive offset can overflow.
	if offset > r.file.Length-base {
		r.pos = r.file.Length
		return r.pos, nil
	}
	abs := base + offset
	if abs < 0 {
		return r.pos, fmt.Errorf("%w: %d", errNegativePosition, abs)
	}
	r.pos = abs
	return abs, nil
}
