package storage

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/jaywantadh/gridstore/internal/metadata"
)

const (
	filePrefix  = "file:"
	chunkPrefix = "chunk:"
)

// BadgerStore implements Store on top of BadgerDB. File records are kept
// as JSON under "file:<hex id>", chunk data raw under
// "chunk:<hex id>:<hex n>".
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// Option adjusts the badger options a store is opened with.
type Option func(badger.Options) badger.Options

// OpenBadgerStore opens (or creates) a BadgerDB at the given path. An
// empty path opens an in-memory database.
func OpenBadgerStore(dbPath string, options ...Option) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dbPath).WithLogger(nil)
	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}
	for _, o := range options {
		opts = o(opts)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the BadgerDB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func fileKey(id string) []byte {
	return []byte(filePrefix + hex.EncodeToString([]byte(id)))
}

func chunkKeyPrefix(fileID string) []byte {
	return []byte(chunkPrefix + hex.EncodeToString([]byte(fileID)) + ":")
}

// Sequence numbers are zero padded so chunks of a file iterate in order.
func chunkKey(fileID string, n int) []byte {
	return append(chunkKeyPrefix(fileID), fmt.Sprintf("%08x", n)...)
}

func (s *BadgerStore) insert(key, val []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
}

// InsertFile stores a file record.
func (s *BadgerStore) InsertFile(ctx context.Context, file *metadata.FileMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal file metadata: %w", err)
	}
	if err := s.insert(fileKey(file.ID), val); err != nil {
		return fmt.Errorf("failed to store file %s: %w", file.ID, err)
	}
	return nil
}

// FindFile retrieves a file record by id.
func (s *BadgerStore) FindFile(ctx context.Context, id string) (*metadata.FileMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var meta metadata.FileMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", id, err)
	}
	return &meta, nil
}

// FindFiles scans the file records and returns those matching q, ordered
// by key.
func (s *BadgerStore) FindFiles(ctx context.Context, q metadata.Query) ([]*metadata.FileMetadata, error) {
	if q.ID != "" {
		meta, err := s.FindFile(ctx, q.ID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !q.Match(meta) {
			return nil, nil
		}
		return []*metadata.FileMetadata{meta}, nil
	}

	var files []*metadata.FileMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(filePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var meta metadata.FileMetadata
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				return err
			}
			if q.Match(&meta) {
				files = append(files, &meta)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan files: %w", err)
	}
	return files, nil
}

// InsertChunk stores chunk data.
func (s *BadgerStore) InsertChunk(ctx context.Context, chunk metadata.ChunkMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.insert(chunkKey(chunk.FileID, chunk.N), chunk.Data); err != nil {
		return fmt.Errorf("failed to store chunk %d of %s: %w", chunk.N, chunk.FileID, err)
	}
	return nil
}

// FindChunk retrieves chunk n of a file.
func (s *BadgerStore) FindChunk(ctx context.Context, fileID string, n int) (metadata.ChunkMetadata, error) {
	chunk := metadata.ChunkMetadata{FileID: fileID, N: n}
	if err := ctx.Err(); err != nil {
		return chunk, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(fileID, n))
		if err != nil {
			return err
		}
		chunk.Data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chunk, fmt.Errorf("chunk %d of %s: %w", n, fileID, ErrNotFound)
	}
	if err != nil {
		return chunk, fmt.Errorf("failed to get chunk %d of %s: %w", n, fileID, err)
	}
	return chunk, nil
}

func (s *BadgerStore) chunkKeys(fileID string) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = chunkKeyPrefix(fileID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// DeleteFile removes the record and its chunks in one transaction. When
// the file has too many chunks for a single transaction the record goes
// first, so readers can never see it with chunks missing, and the chunks
// follow in batches.
func (s *BadgerStore) DeleteFile(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys, err := s.chunkKeys(id)
	if err != nil {
		return fmt.Errorf("failed to list chunks of %s: %w", id, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(fileKey(id)); err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if !errors.Is(err, badger.ErrTxnTooBig) {
		if err != nil {
			return fmt.Errorf("failed to delete file %s: %w", id, err)
		}
		return nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(fileKey(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	return s.deleteKeys(keys)
}

// DeleteChunks removes every chunk of a file.
func (s *BadgerStore) DeleteChunks(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys, err := s.chunkKeys(fileID)
	if err != nil {
		return fmt.Errorf("failed to list chunks of %s: %w", fileID, err)
	}
	return s.deleteKeys(keys)
}

func (s *BadgerStore) deleteKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("failed to delete chunk %q: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush chunk deletes: %w", err)
	}
	return nil
}

func (s *BadgerStore) count(txn *badger.Txn, prefix string) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}

// Stats counts file records and chunks.
func (s *BadgerStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := ctx.Err(); err != nil {
		return st, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		st.Files = s.count(txn, filePrefix)
		st.Chunks = s.count(txn, chunkPrefix)
		return nil
	})
	return st, err
}
