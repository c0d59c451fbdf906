package gridfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/jaywantadh/gridstore/internal/compressor"
	"github.com/jaywantadh/gridstore/internal/locator"
	"github.com/jaywantadh/gridstore/internal/metadata"
	"github.com/jaywantadh/gridstore/internal/storage"
)

func openStore(t *testing.T) *storage.BadgerStore {
	t.Helper()
	store, err := storage.OpenBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newFS(t *testing.T, store storage.Store, opts Options) (*FS, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	opts.Logger = logger
	return New(store, opts), hook
}

// flippingStore corrupts every chunk it returns without changing its length.
type flippingStore struct {
	storage.Store
}

func (s flippingStore) FindChunk(ctx context.Context, fileID string, n int) (metadata.ChunkMetadata, error) {
	c, err := s.Store.FindChunk(ctx, fileID, n)
	if err != nil {
		return c, err
	}
	data := append([]byte(nil), c.Data...)
	data[0] ^= 0xff
	c.Data = data
	return c, nil
}

func patterned(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestSaveAndOpen(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t, openStore(t), Options{ChunkSize: 1024})

	data := patterned(1024*3 + 512)
	file, err := fs.Save(ctx, bytes.NewReader(data), CreateOptions{FileName: "report.bin"})
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), file.Length)
	require.Equal(t, 1024, file.ChunkSize)
	require.Equal(t, 4, file.ChunkCount())

	found, err := fs.FindOne(ctx, file.ID)
	require.NoError(t, err)
	require.Equal(t, file.MD5, found.MD5)
	require.Equal(t, "report.bin", found.FileName)

	r, err := fs.Open(ctx, file.ID)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, data, out)

	require.NoError(t, fs.Verify(ctx, file.ID))
}

func TestDefaultChunkSize(t *testing.T) {
	fs, _ := newFS(t, openStore(t), Options{})
	require.Equal(t, 256*1024-100, fs.ChunkSize())

	file, err := fs.Save(context.Background(), strings.NewReader("hello"), CreateOptions{})
	require.NoError(t, err)
	require.Equal(t, fs.ChunkSize(), file.ChunkSize)
}

func TestCreateRejectsNegativeChunkSize(t *testing.T) {
	fs, _ := newFS(t, openStore(t), Options{})
	_, err := fs.Create(context.Background(), CreateOptions{ChunkSize: -1})
	require.Error(t, err)
}

func TestSaveCustomIDAndMetadata(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t, openStore(t), Options{ChunkSize: 16})

	file, err := fs.Save(ctx, strings.NewReader("custom id content"), CreateOptions{
		ID:          "fixed-id",
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Aliases:     []string{"n"},
		Metadata:    map[string]interface{}{"owner": "ops"},
	})
	require.NoError(t, err)
	require.Equal(t, "fixed-id", file.ID)

	found, err := fs.Find(ctx, metadata.Query{Metadata: map[string]string{"owner": "ops"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "fixed-id", found[0].ID)
	require.Equal(t, "text/plain", found[0].ContentType)
	require.Equal(t, []string{"n"}, found[0].Aliases)

	_, err = fs.Save(ctx, strings.NewReader("again"), CreateOptions{ID: "fixed-id"})
	require.True(t, errors.Is(err, storage.ErrExists))

	// the existing file is untouched
	require.NoError(t, fs.Verify(ctx, "fixed-id"))
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	fs, hook := newFS(t, openStore(t), Options{ChunkSize: 1024})

	before, err := fs.Stats(ctx)
	require.NoError(t, err)

	file, err := fs.Save(ctx, bytes.NewReader(patterned(4*1024)), CreateOptions{FileName: "aligned"})
	require.NoError(t, err)
	require.Equal(t, 4, file.ChunkCount())

	during, err := fs.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, before.Files+1, during.Files)
	require.Equal(t, before.Chunks+4, during.Chunks)

	require.NoError(t, fs.Remove(ctx, file.ID))
	after, err := fs.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	_, err = fs.FindOne(ctx, file.ID)
	require.True(t, errors.Is(err, storage.ErrNotFound))

	// removing again is not an error
	require.NoError(t, fs.Remove(ctx, file.ID))
}

func TestRemoveInvalidArguments(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t, openStore(t), Options{})

	require.True(t, errors.Is(fs.Remove(ctx, ""), ErrInvalidArgument))
	require.True(t, errors.Is(fs.RemoveLocator(ctx, locator.Locator{}), ErrInvalidArgument))

	_, err := fs.RemoveByFilename(ctx, "")
	require.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = fs.RemoveWhere(ctx, metadata.Query{})
	require.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = fs.FindOne(ctx, "")
	require.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestRemoveByFilename(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t, openStore(t), Options{ChunkSize: 8})

	for _, content := range []string{"first version", "second version"} {
		_, err := fs.Save(ctx, strings.NewReader(content), CreateOptions{FileName: "a.txt"})
		require.NoError(t, err)
	}
	other, err := fs.Save(ctx, strings.NewReader("keep me"), CreateOptions{FileName: "b.txt"})
	require.NoError(t, err)

	files, err := fs.FindByFilename(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, files, 2)

	n, err := fs.RemoveByFilename(ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	files, err = fs.FindByFilename(ctx, "a.txt")
	require.NoError(t, err)
	require.Empty(t, files)

	stats, err := fs.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Files)
	require.Equal(t, other.ChunkCount(), stats.Chunks)
}

func TestUploadCompressible(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t, openStore(t), Options{ChunkSize: 1024, Compress: true})

	text := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 500)
	loc, err := fs.Upload(ctx, strings.NewReader(text), "docs/fox.txt", "text/plain")
	require.NoError(t, err)
	require.True(t, loc.IsStoredCompressed())
	require.True(t, strings.HasPrefix(loc.String(), "mongofile://gz@docs/fox.txt?"))
	require.Equal(t, "fox.txt", loc.FileName())

	parsed, err := locator.Parse(loc.String())
	require.NoError(t, err)
	require.Equal(t, loc, parsed)

	file, err := fs.Resolve(ctx, parsed)
	require.NoError(t, err)
	require.Equal(t, compressor.Name, file.Compression)
	require.Equal(t, "fox.txt", file.FileName)
	require.Equal(t, "text/plain", file.ContentType)
	require.Less(t, file.Length, int64(len(text)))

	var out bytes.Buffer
	n, err := fs.Download(ctx, parsed, &out)
	require.NoError(t, err)
	require.Equal(t, int64(len(text)), n)
	require.Equal(t, text, out.String())

	require.NoError(t, fs.RemoveLocator(ctx, parsed))
	_, err = fs.Resolve(ctx, parsed)
	require.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestUploadIncompressible(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t, openStore(t), Options{ChunkSize: 1024, Compress: true})

	data := patterned(5000)
	loc, err := fs.Upload(ctx, bytes.NewReader(data), "img/photo.jpg", "image/jpeg")
	require.NoError(t, err)
	require.False(t, loc.IsStoredCompressed())
	require.Equal(t, "jpg", loc.Extension())

	file, err := fs.Resolve(ctx, loc)
	require.NoError(t, err)
	require.Empty(t, file.Compression)
	require.Equal(t, int64(len(data)), file.Length)

	var out bytes.Buffer
	_, err = fs.Download(ctx, loc, &out)
	require.NoError(t, err)
	require.Equal(t, data, out.Bytes())
}

func TestUploadCompressionDisabled(t *testing.T) {
	fs, _ := newFS(t, openStore(t), Options{ChunkSize: 1024})
	loc, err := fs.Upload(context.Background(), strings.NewReader("plain"), "a.txt", "text/plain")
	require.NoError(t, err)
	require.False(t, loc.IsStoredCompressed())
	require.True(t, loc.IsContentCompressible(fs.MediaTypes().IsCompressible))
}

func TestUploadInvalidPath(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fs, hook := newFS(t, store, Options{ChunkSize: 4})

	_, err := fs.Upload(ctx, strings.NewReader("data"), "bad?path", "text/plain")
	require.True(t, errors.Is(err, locator.ErrInvalidLocator))
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	stats, err := fs.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, storage.Stats{}, stats)
}

func TestEncryptedFiles(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fs, _ := newFS(t, store, Options{ChunkSize: 1024, Password: "s3cret"})

	data := patterned(3000)
	file, err := fs.Save(ctx, bytes.NewReader(data), CreateOptions{FileName: "secret.bin"})
	require.NoError(t, err)
	require.NotNil(t, file.Encryption)

	raw, err := store.FindChunk(ctx, file.ID, 0)
	require.NoError(t, err)
	require.NotEqual(t, data[:1024], raw.Data)

	r, err := fs.Open(ctx, file.ID)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, data, out)
	require.NoError(t, fs.Verify(ctx, file.ID))

	locked, _ := newFS(t, store, Options{})
	_, err = locked.Open(ctx, file.ID)
	require.True(t, errors.Is(err, ErrPasswordRequired))

	wrong, _ := newFS(t, store, Options{Password: "guess"})
	r, err = wrong.Open(ctx, file.ID)
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	require.Error(t, err)
}

func TestVerifyDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fs, _ := newFS(t, store, Options{ChunkSize: 64})

	file, err := fs.Save(ctx, bytes.NewReader(patterned(200)), CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, fs.Verify(ctx, file.ID))

	corrupted, _ := newFS(t, flippingStore{store}, Options{ChunkSize: 64})
	err = corrupted.Verify(ctx, file.ID)
	require.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestSaveFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	fs, hook := newFS(t, openStore(t), Options{ChunkSize: 8})

	boom := errors.New("source failed")
	r := io.MultiReader(bytes.NewReader(patterned(40)), &failingReader{err: boom})
	_, err := fs.Save(ctx, r, CreateOptions{FileName: "partial"})
	require.True(t, errors.Is(err, boom))
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	stats, err := fs.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, storage.Stats{}, stats)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
