// Package gridfs stores files in a document store as ordered chunks and
// hands out locators for them.
package gridfs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/jaywantadh/gridstore/internal/chunker"
	"github.com/jaywantadh/gridstore/internal/chunksize"
	"github.com/jaywantadh/gridstore/internal/compressor"
	"github.com/jaywantadh/gridstore/internal/encryptor"
	"github.com/jaywantadh/gridstore/internal/locator"
	"github.com/jaywantadh/gridstore/internal/metadata"
	"github.com/jaywantadh/gridstore/internal/storage"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrPasswordRequired = errors.New("file is encrypted and no password is configured")
)

// Options configures an FS.
type Options struct {
	// ChunkSize for new files. Zero means chunksize.Default.
	ChunkSize int
	// Compress enables lz4 compression in Upload for compressible media
	// types.
	Compress   bool
	MediaTypes *compressor.MediaTypes
	// Password, when set, encrypts the chunks of every new file.
	Password string
	Logger   logrus.FieldLogger
}

// FS is a chunked file system over a storage.Store. It is safe for
// concurrent use as long as the store is; the Writers and Readers it
// returns are not.
type FS struct {
	store      storage.Store
	chunkSize  int
	compress   bool
	mediaTypes *compressor.MediaTypes
	password   string
	log        logrus.FieldLogger
}

// New returns an FS storing into store.
func New(store storage.Store, opts Options) *FS {
	fs := &FS{
		store:      store,
		chunkSize:  opts.ChunkSize,
		compress:   opts.Compress,
		mediaTypes: opts.MediaTypes,
		password:   opts.Password,
		log:        opts.Logger,
	}
	if fs.chunkSize <= 0 {
		fs.chunkSize = chunksize.Default.Bytes()
	}
	if fs.mediaTypes == nil {
		fs.mediaTypes = compressor.NewMediaTypes(nil)
	}
	if fs.log == nil {
		fs.log = logrus.StandardLogger()
	}
	return fs
}

// Store returns the underlying store.
func (fs *FS) Store() storage.Store {
	return fs.store
}

// ChunkSize is the chunk size new files get by default.
func (fs *FS) ChunkSize() int {
	return fs.chunkSize
}

// MediaTypes is the compressible media type table.
func (fs *FS) MediaTypes() *compressor.MediaTypes {
	return fs.mediaTypes
}

// CreateOptions describes a new file.
type CreateOptions struct {
	ID          string
	FileName    string
	ContentType string
	// ChunkSize overrides the FS chunk size when positive.
	ChunkSize int
	Aliases   []string
	Metadata  map[string]interface{}
}

// Create returns a Writer for a new file. The file becomes visible when
// the Writer is closed.
func (fs *FS) Create(ctx context.Context, opts CreateOptions) (*chunker.Writer, error) {
	return fs.create(ctx, opts, "")
}

func (fs *FS) create(ctx context.Context, opts CreateOptions, compression string) (*chunker.Writer, error) {
	if opts.ChunkSize < 0 {
		return nil, fmt.Errorf("%w: %d", chunker.ErrInvalidChunkSize, opts.ChunkSize)
	}
	wopts := chunker.WriterOptions{
		ID:          opts.ID,
		FileName:    opts.FileName,
		ChunkSize:   opts.ChunkSize,
		ContentType: opts.ContentType,
		Aliases:     opts.Aliases,
		Metadata:    opts.Metadata,
		Compression: compression,
	}
	if wopts.ChunkSize == 0 {
		wopts.ChunkSize = fs.chunkSize
	}

	if fs.password != "" {
		salt, err := encryptor.NewSalt()
		if err != nil {
			return nil, err
		}
		sealer, err := encryptor.NewSealer(fs.password, salt)
		if err != nil {
			return nil, err
		}
		wopts.Sealer = sealer
		wopts.Encryption = &metadata.EncryptionInfo{Algorithm: encryptor.Algorithm, Salt: salt}
	}

	return chunker.NewWriter(ctx, fs.store, wopts)
}

// Save writes everything r yields as a new file. Nothing is left behind
// when it fails.
func (fs *FS) Save(ctx context.Context, r io.Reader, opts CreateOptions) (*metadata.FileMetadata, error) {
	w, err := fs.Create(ctx, opts)
	if err != nil {
		return nil, err
	}
	if _, err := w.ReadFrom(r); err != nil {
		fs.discard(w, err)
		return nil, err
	}
	if err := w.Close(); err != nil {
		fs.discard(w, err)
		return nil, err
	}
	file := w.File()
	fs.log.WithFields(logrus.Fields{
		"file_id": file.ID,
		"length":  file.Length,
		"chunks":  file.ChunkCount(),
	}).Info("file stored")
	return file, nil
}

func (fs *FS) discard(w *chunker.Writer, cause error) {
	entry := fs.log.WithField("file_id", w.ID()).WithError(cause)
	if err := w.Discard(); err != nil {
		entry.WithField("discard_error", err).Error("failed to clean up aborted write")
		return
	}
	entry.Warn("write aborted")
}

// FindOne returns the file record with the given id.
func (fs *FS) FindOne(ctx context.Context, id string) (*metadata.FileMetadata, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidArgument)
	}
	return fs.store.FindFile(ctx, id)
}

// Find returns every file record matching q.
func (fs *FS) Find(ctx context.Context, q metadata.Query) ([]*metadata.FileMetadata, error) {
	return fs.store.FindFiles(ctx, q)
}

// FindByFilename returns the files stored under name.
func (fs *FS) FindByFilename(ctx context.Context, name string) ([]*metadata.FileMetadata, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: file name cannot be empty", ErrInvalidArgument)
	}
	return fs.store.FindFiles(ctx, metadata.Query{FileName: name})
}

// Resolve returns the file record a locator points at.
func (fs *FS) Resolve(ctx context.Context, loc locator.Locator) (*metadata.FileMetadata, error) {
	if loc.IsZero() {
		return nil, fmt.Errorf("%w: empty locator", ErrInvalidArgument)
	}
	return fs.FindOne(ctx, loc.StorageID())
}

// Open returns a Reader over the file with the given id.
func (fs *FS) Open(ctx context.Context, id string) (*chunker.Reader, error) {
	file, err := fs.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return fs.OpenFile(ctx, file)
}

// OpenLocator returns a Reader over the stored bytes of the file loc
// points at. Compressed content is returned as stored; see Download.
func (fs *FS) OpenLocator(ctx context.Context, loc locator.Locator) (*chunker.Reader, error) {
	file, err := fs.Resolve(ctx, loc)
	if err != nil {
		return nil, err
	}
	return fs.OpenFile(ctx, file)
}

// OpenFile returns a Reader over an already fetched record.
func (fs *FS) OpenFile(ctx context.Context, file *metadata.FileMetadata) (*chunker.Reader, error) {
	var sealer encryptor.Sealer
	if file.Encryption != nil {
		if fs.password == "" {
			return nil, fmt.Errorf("file %s: %w", file.ID, ErrPasswordRequired)
		}
		var err error
		sealer, err = encryptor.NewSealer(fs.password, file.Encryption.Salt)
		if err != nil {
			return nil, err
		}
	}
	return chunker.NewReader(ctx, fs.store, file, sealer)
}

// Stats returns the document counts of the store.
func (fs *FS) Stats(ctx context.Context) (storage.Stats, error) {
	return fs.store.Stats(ctx)
}
