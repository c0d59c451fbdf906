package gridfs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jaywantadh/gridstore/internal/compressor"
	"github.com/jaywantadh/gridstore/internal/locator"
)

// Upload stores r under the logical path and returns its locator. When
// compression is enabled and mediaType is compressible, the content is
// lz4-compressed before it is chunked and the locator is marked gz.
func (fs *FS) Upload(ctx context.Context, r io.Reader, path, mediaType string) (locator.Locator, error) {
	compress := fs.compress && fs.mediaTypes.IsCompressible(mediaType)
	var compression string
	if compress {
		compression = compressor.Name
	}

	w, err := fs.create(ctx, CreateOptions{
		FileName:    baseName(path),
		ContentType: mediaType,
	}, compression)
	if err != nil {
		return locator.Locator{}, err
	}

	loc, err := locator.Build(w.ID(), path, mediaType, compress)
	if err != nil {
		fs.discard(w, err)
		return locator.Locator{}, err
	}

	if compress {
		zw := compressor.NewWriter(w)
		if _, err = io.Copy(zw, r); err == nil {
			err = zw.Close()
		}
	} else {
		_, err = io.Copy(w, r)
	}
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		fs.discard(w, err)
		return locator.Locator{}, err
	}

	file := w.File()
	fs.log.WithFields(logrus.Fields{
		"file_id":    file.ID,
		"locator":    loc.String(),
		"length":     file.Length,
		"chunks":     file.ChunkCount(),
		"compressed": compress,
	}).Info("file uploaded")
	return loc, nil
}

// Download writes the original content of the file loc points at to w,
// decompressing it when the locator says it is stored compressed.
func (fs *FS) Download(ctx context.Context, loc locator.Locator, w io.Writer) (int64, error) {
	r, err := fs.OpenLocator(ctx, loc)
	if err != nil {
		return 0, err
	}
	if loc.IsStoredCompressed() {
		return io.Copy(w, compressor.NewReader(r))
	}
	return r.WriteTo(w)
}

// Verify reads a file back and compares its MD5 with the one recorded when
// it was written.
func (fs *FS) Verify(ctx context.Context, id string) error {
	r, err := fs.Open(ctx, id)
	if err != nil {
		return err
	}
	h := md5.New()
	if _, err := r.WriteTo(h); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if want := r.File().MD5; got != want {
		return fmt.Errorf("%w: file %s has md5 %s, recorded %s", ErrChecksumMismatch, id, got, want)
	}
	return nil
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
