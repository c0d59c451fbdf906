package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/jaywantadh/gridstore/config"
	"github.com/jaywantadh/gridstore/internal/gridfs"
	"github.com/jaywantadh/gridstore/internal/storage"
	"github.com/jaywantadh/gridstore/pkg/logging"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// sample returns the file named on the command line, or 3.5 chunks of
// random bytes.
func sample(chunkSize int) ([]byte, string, error) {
	if len(os.Args) > 1 {
		b, err := os.ReadFile(os.Args[1])
		return b, os.Args[1], err
	}
	b := make([]byte, chunkSize*7/2)
	_, err := rand.Read(b)
	return b, "random.bin", err
}

func main() {
	ctx := context.Background()
	logging.InitLogger(true)

	cfg, err := config.LoadConfig("./config")
	if err != nil {
		fmt.Printf("❌ Config failed: %v\n", err)
		return
	}
	preset, err := cfg.ChunkPreset()
	if err != nil {
		fmt.Printf("❌ Config failed: %v\n", err)
		return
	}

	dir, err := os.MkdirTemp("", "gridstore_manual")
	if err != nil {
		fmt.Printf("❌ Temp dir failed: %v\n", err)
		return
	}
	defer os.RemoveAll(dir)

	store, err := storage.OpenBadgerStore(dir)
	if err != nil {
		fmt.Printf("❌ Store init failed: %v\n", err)
		return
	}
	defer store.Close()

	fs := gridfs.New(store, gridfs.Options{
		ChunkSize: preset.Bytes(),
		Compress:  cfg.CompressionEnabled,
		Password:  cfg.Password,
		Logger:    logging.Log,
	})

	data, name, err := sample(fs.ChunkSize())
	if err != nil {
		fmt.Printf("❌ Sample not available: %v\n", err)
		return
	}
	origHash := sha256Hex(data)
	fmt.Printf("📄 Original file: %s (%d bytes)\n", name, len(data))
	fmt.Printf("🔑 Original SHA256: %s\n", origHash)

	loc, err := fs.Upload(ctx, bytes.NewReader(data), "manual/"+name, "application/octet-stream")
	if err != nil {
		fmt.Printf("❌ Upload failed: %v\n", err)
		return
	}
	file, err := fs.Resolve(ctx, loc)
	if err != nil {
		fmt.Printf("❌ Resolve failed: %v\n", err)
		return
	}
	fmt.Printf("🧩 Chunks created: %d | Locator: %s\n", file.ChunkCount(), loc)

	var out bytes.Buffer
	if _, err := fs.Download(ctx, loc, &out); err != nil {
		fmt.Printf("❌ Download failed: %v\n", err)
		return
	}
	reHash := sha256Hex(out.Bytes())
	fmt.Printf("🔑 Reassembled SHA256: %s\n", reHash)

	if reHash == origHash {
		fmt.Println("✅ SUCCESS: Reassembled file matches original")
	} else {
		fmt.Println("❌ MISMATCH: Reassembled file differs from original")
	}

	// skip to the middle of the last chunk and read the tail
	r, err := fs.Open(ctx, file.ID)
	if err != nil {
		fmt.Printf("❌ Open failed: %v\n", err)
		return
	}
	if file.ChunkCount() > 0 && file.Compression == "" {
		last := int64(file.ChunkCount()-1) * int64(file.ChunkSize)
		skipped, err := r.Skip(last + (file.Length-last)/2)
		if err != nil {
			fmt.Printf("❌ Skip failed: %v\n", err)
			return
		}
		tail, err := io.ReadAll(r)
		if err != nil {
			fmt.Printf("❌ Read after skip failed: %v\n", err)
			return
		}
		if bytes.Equal(tail, data[skipped:]) {
			fmt.Printf("✅ SUCCESS: skipped %d bytes, tail of %d bytes matches\n", skipped, len(tail))
		} else {
			fmt.Println("❌ MISMATCH: tail after skip differs")
		}
	}

	if err := fs.Remove(ctx, file.ID); err != nil {
		fmt.Printf("❌ Remove failed: %v\n", err)
		return
	}
	stats, err := fs.Stats(ctx)
	if err != nil {
		fmt.Printf("❌ Stats failed: %v\n", err)
		return
	}
	fmt.Printf("🧹 After remove: %d files, %d chunks\n", stats.Files, stats.Chunks)
}
