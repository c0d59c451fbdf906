package compressor

import (
	"io"
	"mime"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// Name is recorded on file records whose content went through NewWriter.
const Name = "lz4"

// NewWriter returns a WriteCloser that lz4-compresses into w. Close must
// be called to flush the final frame.
func NewWriter(w io.Writer) io.WriteCloser {
	return lz4.NewWriter(w)
}

// NewReader returns a Reader that decompresses lz4 data from r.
func NewReader(r io.Reader) io.Reader {
	return lz4.NewReader(r)
}

// MediaTypes answers whether content of a media type is worth compressing.
// Entries are full types ("application/json") or wildcards ("text/*").
type MediaTypes struct {
	compressible map[string]bool
}

// DefaultCompressible lists the media types compressed when nothing is
// configured. Images, audio, video and archives are already compressed.
var DefaultCompressible = []string{
	"text/*",
	"application/json",
	"application/xml",
	"application/javascript",
	"application/x-javascript",
	"application/xhtml+xml",
	"application/rtf",
	"application/x-sh",
	"application/x-tar",
	"application/sql",
	"application/msword",
	"application/vnd.ms-excel",
	"application/vnd.ms-powerpoint",
	"application/postscript",
	"application/pdf",
	"image/svg+xml",
	"image/bmp",
	"image/tiff",
}

// NewMediaTypes builds a table from types. A nil or empty list uses
// DefaultCompressible.
func NewMediaTypes(types []string) *MediaTypes {
	if len(types) == 0 {
		types = DefaultCompressible
	}
	m := &MediaTypes{compressible: make(map[string]bool, len(types))}
	for _, t := range types {
		m.compressible[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return m
}

// IsCompressible reports whether content of mediaType should be
// compressed. Parameters such as charset are ignored.
func (m *MediaTypes) IsCompressible(mediaType string) bool {
	if mediaType == "" {
		return false
	}
	t, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	if m.compressible[t] {
		return true
	}
	major, _, _ := strings.Cut(t, "/")
	return m.compressible[major+"/*"]
}
