package gridfs

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jaywantadh/gridstore/internal/locator"
	"github.com/jaywantadh/gridstore/internal/metadata"
)

// Remove deletes a file record and all of its chunks.
func (fs *FS) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidArgument)
	}
	if err := fs.store.DeleteFile(ctx, id); err != nil {
		return err
	}
	fs.log.WithField("file_id", id).Info("file removed")
	return nil
}

// RemoveLocator deletes the file loc points at.
func (fs *FS) RemoveLocator(ctx context.Context, loc locator.Locator) error {
	if loc.IsZero() {
		return fmt.Errorf("%w: empty locator", ErrInvalidArgument)
	}
	return fs.Remove(ctx, loc.StorageID())
}

// RemoveByFilename deletes every file stored under name and returns how
// many there were.
func (fs *FS) RemoveByFilename(ctx context.Context, name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: file name cannot be empty", ErrInvalidArgument)
	}
	return fs.RemoveWhere(ctx, metadata.Query{FileName: name})
}

// RemoveWhere deletes every file matching q. The zero Query is rejected
// rather than treated as "everything".
func (fs *FS) RemoveWhere(ctx context.Context, q metadata.Query) (int, error) {
	if q.IsZero() {
		return 0, fmt.Errorf("%w: query cannot be empty", ErrInvalidArgument)
	}
	files, err := fs.store.FindFiles(ctx, q)
	if err != nil {
		return 0, err
	}
	for i, f := range files {
		if err := fs.store.DeleteFile(ctx, f.ID); err != nil {
			return i, err
		}
	}
	fs.log.WithFields(logrus.Fields{
		"filename": q.FileName,
		"removed":  len(files),
	}).Info("files removed")
	return len(files), nil
}
