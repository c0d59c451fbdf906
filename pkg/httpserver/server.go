package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jaywantadh/gridstore/internal/chunker"
	"github.com/jaywantadh/gridstore/internal/compressor"
	"github.com/jaywantadh/gridstore/internal/gridfs"
	"github.com/jaywantadh/gridstore/internal/locator"
	"github.com/jaywantadh/gridstore/internal/metadata"
	"github.com/jaywantadh/gridstore/internal/storage"
	"github.com/jaywantadh/gridstore/internal/transfer"
)

// Server exposes a gridfs.FS over HTTP.
type Server struct {
	fs        *gridfs.FS
	log       logrus.FieldLogger
	router    *mux.Router
	transfers *transfer.Tracker
}

// UploadResponse is the body returned by POST /files.
type UploadResponse struct {
	Locator string                 `json:"locator"`
	File    *metadata.FileMetadata `json:"file"`
}

func New(fs *gridfs.FS, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{fs: fs, log: logger, router: mux.NewRouter(), transfers: transfer.NewTracker()}
	s.router.HandleFunc("/files", s.handleUpload).Methods(http.MethodPost)
	s.router.HandleFunc("/files/{id}", s.handleGet).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/files/{id}", s.handleDelete).Methods(http.MethodDelete)
	s.router.HandleFunc("/locators", s.handleLocator).Methods(http.MethodGet)
	s.router.HandleFunc("/transfers", s.handleTransfers).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return s
}

// Handler returns the routes wrapped in request metrics.
func (s *Server) Handler() http.Handler {
	return instrument(s.router)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rd, err := s.fs.Open(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	file := rd.File()
	if file.ContentType != "" {
		w.Header().Set("Content-Type", file.ContentType)
	}
	if file.MD5 != "" {
		w.Header().Set("ETag", `"`+file.MD5+`"`)
	}

	if file.Compression == compressor.Name {
		// the stored length is not the content length, so no ranges
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		if _, err := io.Copy(w, compressor.NewReader(rd)); err != nil {
			s.log.WithError(err).WithField("file_id", id).Error("failed to stream file")
		}
		return
	}
	http.ServeContent(w, r, file.FileName, file.UploadDate, rd)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	mediaType := r.URL.Query().Get("type")
	if mediaType == "" {
		mediaType = r.Header.Get("Content-Type")
	}

	progress := s.transfers.Start(path, transfer.Upload, r.ContentLength)
	loc, err := s.fs.Upload(r.Context(), progress.Reader(r.Body), path, mediaType)
	snap := progress.Finish()
	observeTransfer(snap)
	s.log.WithField("transfer", snap.String()).Debug("upload finished")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	file, err := s.fs.Resolve(r.Context(), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, UploadResponse{Locator: loc.String(), File: file})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.fs.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLocator(w http.ResponseWriter, r *http.Request) {
	loc, err := locator.Parse(r.URL.Query().Get("l"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// resolve first so a missing file is still a clean 404
	if _, err := s.fs.Resolve(r.Context(), loc); err != nil {
		s.writeError(w, r, err)
		return
	}
	if loc.MediaType() != "" {
		w.Header().Set("Content-Type", loc.MediaType())
	}
	progress := s.transfers.Start(loc.Path(), transfer.Download, 0)
	defer func() { observeTransfer(progress.Finish()) }()
	if _, err := s.fs.Download(r.Context(), loc, progress.Writer(w)); err != nil {
		s.log.WithError(err).WithField("locator", loc.String()).Error("failed to stream file")
	}
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.transfers.List())
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	entry := s.log.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": code,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	http.Error(w, err.Error(), code)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrExists):
		return http.StatusConflict
	case errors.Is(err, gridfs.ErrPasswordRequired):
		return http.StatusForbidden
	case errors.Is(err, gridfs.ErrInvalidArgument),
		errors.Is(err, locator.ErrInvalidArgument),
		errors.Is(err, locator.ErrInvalidLocator),
		errors.Is(err, chunker.ErrInvalidChunkSize):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
