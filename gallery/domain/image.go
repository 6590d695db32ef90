package domain

import (
	"context"
	"io"
	"os"
	"strings"
)

// Association is one (image, tag) pair of the index.
type Association struct {
	Image string
	Tag   string
}

// SourceKind says where Acquire reads image bytes from.
type SourceKind int

const (
	SourcePath SourceKind = iota + 1
	SourceURL
	SourceBytes
)

// Source is the origin of an image being acquired.
type Source struct {
	Kind SourceKind
	Ref  string
	Data []byte
}

func PathSource(path string) Source {
	return Source{Kind: SourcePath, Ref: path}
}

func URLSource(url string) Source {
	return Source{Kind: SourceURL, Ref: url}
}

func BytesSource(data []byte) Source {
	return Source{Kind: SourceBytes, Ref: "<bytes>", Data: data}
}

// ParseSource classifies a reference string: http(s) URLs are fetched
// remotely, file:// URLs and anything else are read as local paths.
func ParseSource(ref string) Source {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return URLSource(ref)
	}
	return PathSource(ref)
}

func (s Source) String() string {
	return s.Ref
}

// ImageFiles is the flat directory holding image bytes, one file per identifier.
type ImageFiles interface {
	// Create opens a new file exclusively; ErrConflict if it already exists.
	Create(name string) (*os.File, error)
	// Remove deletes a file; a missing file is not an error.
	Remove(name string) error
	Exists(name string) (bool, error)
	Path(name string) (string, error)
	List() ([]string, error)
}

// Fetcher retrieves remote content. The caller closes the returned body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// DeleteConfirmer asks the user whether a non-forced deletion should proceed.
type DeleteConfirmer interface {
	ConfirmDelete(ctx context.Context, ids []string) (bool, error)
}
