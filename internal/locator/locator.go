// Package locator implements the file locator string that identifies a
// stored file:
//
//	mongofile:<path>?<storageId>#<mediaType>
//	mongofile://gz@<path>?<storageId>#<mediaType>
//
// The gz authority marks files whose content was compressed before it was
// chunked into the store.
package locator

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Scheme is the only scheme a locator may carry.
	Scheme = "mongofile"
	// GZ is the authority marker for content stored compressed.
	GZ = "gz"

	compressedPrefix = "//" + GZ + "@"
)

var (
	ErrInvalidLocator  = errors.New("invalid locator")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Locator is a parsed file locator. The zero value is not valid; use Build
// or Parse.
type Locator struct {
	storageID  string
	path       string
	mediaType  string
	compressed bool
}

// Build assembles a locator from its parts.
func Build(storageID, path, mediaType string, compressed bool) (Locator, error) {
	if storageID == "" {
		return Locator{}, fmt.Errorf("%w: storage id cannot be empty", ErrInvalidArgument)
	}
	if strings.ContainsAny(path, "?#") {
		return Locator{}, fmt.Errorf("%w: path %q contains a reserved character", ErrInvalidLocator, path)
	}
	// "//" would be read back as an authority.
	if strings.HasPrefix(path, "//") {
		return Locator{}, fmt.Errorf("%w: path %q cannot start with //", ErrInvalidLocator, path)
	}
	if strings.ContainsAny(storageID, "?#") {
		return Locator{}, fmt.Errorf("%w: storage id %q contains a reserved character", ErrInvalidLocator, storageID)
	}
	if strings.Contains(mediaType, "#") {
		return Locator{}, fmt.Errorf("%w: media type %q contains a reserved character", ErrInvalidLocator, mediaType)
	}
	return Locator{
		storageID:  storageID,
		path:       path,
		mediaType:  mediaType,
		compressed: compressed,
	}, nil
}

// Parse reads a locator string. Strings using any scheme other than
// Scheme are rejected.
func Parse(text string) (Locator, error) {
	rest, ok := strings.CutPrefix(text, Scheme+":")
	if !ok {
		return Locator{}, fmt.Errorf("%w: only the %s scheme is accepted: %q", ErrInvalidLocator, Scheme, text)
	}

	var compressed bool
	if strings.HasPrefix(rest, "//") {
		if !strings.HasPrefix(rest, compressedPrefix) {
			return Locator{}, fmt.Errorf("%w: unknown authority in %q", ErrInvalidLocator, text)
		}
		compressed = true
		rest = rest[len(compressedPrefix):]
	}

	path, rest, ok := strings.Cut(rest, "?")
	if !ok {
		return Locator{}, fmt.Errorf("%w: missing storage id in %q", ErrInvalidLocator, text)
	}
	if strings.Contains(path, "#") {
		return Locator{}, fmt.Errorf("%w: media type before storage id in %q", ErrInvalidLocator, text)
	}
	id, mediaType, ok := strings.Cut(rest, "#")
	if !ok {
		return Locator{}, fmt.Errorf("%w: missing media type in %q", ErrInvalidLocator, text)
	}
	if id == "" {
		return Locator{}, fmt.Errorf("%w: empty storage id in %q", ErrInvalidLocator, text)
	}
	if strings.Contains(id, "?") || strings.Contains(mediaType, "#") {
		return Locator{}, fmt.Errorf("%w: repeated delimiter in %q", ErrInvalidLocator, text)
	}

	return Locator{
		storageID:  id,
		path:       path,
		mediaType:  mediaType,
		compressed: compressed,
	}, nil
}

// IsValid reports whether Parse would accept text.
func IsValid(text string) bool {
	_, err := Parse(text)
	return err == nil
}

func (l Locator) String() string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteByte(':')
	if l.compressed {
		b.WriteString(compressedPrefix)
	}
	b.WriteString(l.path)
	b.WriteByte('?')
	b.WriteString(l.storageID)
	b.WriteByte('#')
	b.WriteString(l.mediaType)
	return b.String()
}

// IsZero reports whether l was never built or parsed.
func (l Locator) IsZero() bool {
	return l.storageID == ""
}

func (l Locator) Scheme() string { return Scheme }

// StorageID is the id of the file record in the store.
func (l Locator) StorageID() string { return l.storageID }

// Path is the full logical path.
func (l Locator) Path() string { return l.path }

// FileName is the last segment of the path.
func (l Locator) FileName() string {
	if i := strings.LastIndexByte(l.path, '/'); i >= 0 {
		return l.path[i+1:]
	}
	return l.path
}

// Extension returns the lower-cased suffix after the last dot of the file
// name, or "" when there is none.
func (l Locator) Extension() string {
	name := l.FileName()
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func (l Locator) MediaType() string { return l.mediaType }

// IsStoredCompressed reports whether the content was compressed before it
// was written to the store.
func (l Locator) IsStoredCompressed() bool { return l.compressed }

// IsContentCompressible asks isCompressible about the locator's media
// type. It says nothing about how the content is currently stored.
func (l Locator) IsContentCompressible(isCompressible func(mediaType string) bool) bool {
	if isCompressible == nil {
		return false
	}
	return isCompressible(l.mediaType)
}

// MarshalText implements encoding.TextMarshaler.
func (l Locator) MarshalText() ([]byte, error) {
	if l.IsZero() {
		return nil, fmt.Errorf("%w: empty locator", ErrInvalidLocator)
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Locator) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
