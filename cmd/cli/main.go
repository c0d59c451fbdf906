package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/jaywantadh/gridstore/config"
	"github.com/jaywantadh/gridstore/internal/compressor"
	"github.com/jaywantadh/gridstore/internal/gridfs"
	"github.com/jaywantadh/gridstore/internal/locator"
	"github.com/jaywantadh/gridstore/internal/metadata"
	"github.com/jaywantadh/gridstore/internal/storage"
	"github.com/jaywantadh/gridstore/internal/transfer"
	"github.com/jaywantadh/gridstore/pkg/env"
	"github.com/jaywantadh/gridstore/pkg/httpserver"
	"github.com/jaywantadh/gridstore/pkg/logging"
)

// openFS loads the configuration and opens the store it points at.
func openFS(c *cli.Context) (*gridfs.FS, func(), error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logging.InitLogger(cfg.Debug || c.Bool("debug"))

	preset, err := cfg.ChunkPreset()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.OpenBadgerStore(cfg.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	fs := gridfs.New(store, gridfs.Options{
		ChunkSize:  preset.Bytes(),
		Compress:   cfg.CompressionEnabled,
		MediaTypes: compressor.NewMediaTypes(cfg.CompressibleMediaTypes),
		Password:   cfg.Password,
		Logger:     logging.Log,
	})
	closeFn := func() {
		if err := store.Close(); err != nil {
			logging.Log.WithError(err).Error("failed to close store")
		}
	}
	return fs, closeFn, nil
}

// withFS runs fn against an opened FS.
func withFS(fn func(c *cli.Context, fs *gridfs.FS) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		fs, closeFn, err := openFS(c)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(c, fs)
	}
}

// resolveID accepts either a bare file id or a locator.
func resolveID(arg string) string {
	if loc, err := locator.Parse(arg); err == nil {
		return loc.StorageID()
	}
	return arg
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func putAction(c *cli.Context, fs *gridfs.FS) error {
	src := c.Args().First()
	if src == "" {
		return cli.Exit("put needs a file to store", 1)
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	path := c.String("path")
	if path == "" {
		path = filepath.ToSlash(filepath.Base(src))
	}
	mediaType := c.String("type")
	if mediaType == "" {
		mediaType = mime.TypeByExtension(filepath.Ext(src))
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	progress := transfer.NewTracker().Start(path, transfer.Upload, size)
	loc, err := fs.Upload(c.Context, progress.Reader(f), path, mediaType)
	if err != nil {
		return err
	}
	logging.Log.Info(progress.Finish().String())
	fmt.Println(loc.String())
	return nil
}

func getAction(c *cli.Context, fs *gridfs.FS) error {
	if c.NArg() < 2 {
		return cli.Exit("get needs a locator and a destination", 1)
	}
	loc, err := locator.Parse(c.Args().Get(0))
	if err != nil {
		return err
	}
	snap, err := downloadTo(c.Context, fs, loc, c.Args().Get(1))
	if err != nil {
		return err
	}
	logging.Log.Infof("✅ %s -> %s", snap, c.Args().Get(1))
	return nil
}

// downloadTo writes the file loc points at to dest. A failed download
// leaves no partial file behind.
func downloadTo(ctx context.Context, fs *gridfs.FS, loc locator.Locator, dest string) (transfer.Snapshot, error) {
	out, err := os.Create(dest)
	if err != nil {
		return transfer.Snapshot{}, err
	}
	progress := transfer.NewTracker().Start(loc.Path(), transfer.Download, 0)
	_, err = fs.Download(ctx, loc, progress.Writer(out))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	snap := progress.Finish()
	if err != nil {
		if rerr := os.Remove(dest); rerr != nil {
			logging.Log.WithError(rerr).WithField("path", dest).Warn("failed to remove partial download")
		}
		return snap, err
	}
	return snap, nil
}

func catAction(c *cli.Context, fs *gridfs.FS) error {
	arg := c.Args().First()
	if arg == "" {
		return cli.Exit("cat needs a locator or file id", 1)
	}
	if loc, err := locator.Parse(arg); err == nil {
		_, err = fs.Download(c.Context, loc, os.Stdout)
		return err
	}
	r, err := fs.Open(c.Context, arg)
	if err != nil {
		return err
	}
	if _, err := r.Seek(c.Int64("offset"), io.SeekStart); err != nil {
		return err
	}
	_, err = r.WriteTo(os.Stdout)
	return err
}

func rmAction(c *cli.Context, fs *gridfs.FS) error {
	if name := c.String("name"); name != "" {
		n, err := fs.RemoveByFilename(c.Context, name)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d file(s)\n", n)
		return nil
	}
	if c.NArg() == 0 {
		return cli.Exit("rm needs a locator, a file id or --name", 1)
	}
	for _, arg := range c.Args().Slice() {
		if err := fs.Remove(c.Context, resolveID(arg)); err != nil {
			return err
		}
	}
	return nil
}

func lsAction(c *cli.Context, fs *gridfs.FS) error {
	q := metadata.Query{
		FileName:    c.String("name"),
		ContentType: c.String("type"),
	}
	files, err := fs.Find(c.Context, q)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Printf("%s\t%10d\t%-8d\t%s\t%s\n", f.ID, f.Length, f.ChunkCount(), f.UploadDate.Format("2006-01-02 15:04:05"), f.FileName)
	}
	return nil
}

func statAction(c *cli.Context, fs *gridfs.FS) error {
	arg := c.Args().First()
	if arg == "" {
		stats, err := fs.Stats(c.Context)
		if err != nil {
			return err
		}
		return printJSON(stats)
	}
	file, err := fs.FindOne(c.Context, resolveID(arg))
	if err != nil {
		return err
	}
	return printJSON(file)
}

func verifyAction(c *cli.Context, fs *gridfs.FS) error {
	if c.NArg() == 0 {
		return cli.Exit("verify needs at least one locator or file id", 1)
	}
	for _, arg := range c.Args().Slice() {
		id := resolveID(arg)
		if err := fs.Verify(c.Context, id); err != nil {
			return err
		}
		fmt.Printf("%s ok\n", id)
	}
	return nil
}

func serveAction(c *cli.Context, fs *gridfs.FS) error {
	addr := c.String("addr")
	if addr == "" {
		addr = config.Config.ListenAddr
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return httpserver.New(fs, logging.Log).ListenAndServe(ctx, addr)
}

func main() {
	env.LoadEnv()
	logging.InitLogger(false)

	app := &cli.App{
		Name:  "gridstore",
		Usage: "Store files as chunks in an embedded document store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "directory holding config.yaml",
				Value: env.GetEnv("GRIDSTORE_CONFIG_DIR", "./config"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "Store a file and print its locator",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Usage: "logical path recorded in the locator"},
					&cli.StringFlag{Name: "type", Usage: "media type, guessed from the extension by default"},
				},
				Action: withFS(putAction),
			},
			{
				Name:      "get",
				Usage:     "Write the file a locator points at to disk",
				ArgsUsage: "<locator> <destination>",
				Action:    withFS(getAction),
			},
			{
				Name:      "cat",
				Usage:     "Write a file to stdout",
				ArgsUsage: "<locator|id>",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "offset", Usage: "start at this byte (file ids only)"},
				},
				Action: withFS(catAction),
			},
			{
				Name:      "rm",
				Aliases:   []string{"remove"},
				Usage:     "Remove files and their chunks",
				ArgsUsage: "<locator|id>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "remove every file with this file name"},
				},
				Action: withFS(rmAction),
			},
			{
				Name:  "ls",
				Usage: "List stored files",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "only files with this file name"},
					&cli.StringFlag{Name: "type", Usage: "only files with this content type"},
				},
				Action: withFS(lsAction),
			},
			{
				Name:      "stat",
				Usage:     "Show a file record, or store counts without arguments",
				ArgsUsage: "[locator|id]",
				Action:    withFS(statAction),
			},
			{
				Name:      "verify",
				Usage:     "Check stored files against their MD5",
				ArgsUsage: "<locator|id>...",
				Action:    withFS(verifyAction),
			},
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Usage:   "Serve the store over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address, listen_addr from the config by default"},
				},
				Action: withFS(serveAction),
			},
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		logging.Log.Fatal(err)
	}
}
