package application

import (
	"bytes"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

type imageType struct {
	mime string
	ext  string
}

// imageTypes lists the content types accepted for acquisition and the
// extension each one is stored under.
var imageTypes = []imageType{
	{"image/webp", "webp"},
	{"image/gif", "gif"},
	{"image/x-icon", "ico"},
	{"image/vnd.microsoft.icon", "ico"},
	{"image/jpeg", "jpeg"},
	{"image/svg+xml", "svg"},
	{"image/vnd.mozilla.apng", "apng"},
	{"image/apng", "apng"},
	{"image/avif", "avif"},
	{"image/bmp", "bmp"},
	{"image/png", "png"},
}

// sniff inspects the head of r and returns its detected type together with a
// reader that replays the inspected bytes before the rest of r.
func sniff(r io.Reader) (*mimetype.MIME, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, nil, err
	}
	head = head[:n]

	return mimetype.Detect(head), io.MultiReader(bytes.NewReader(head), r), nil
}

// extensionFor returns the stored extension for a supported image type.
func extensionFor(mtype *mimetype.MIME) (string, bool) {
	for _, t := range imageTypes {
		if mtype.Is(t.mime) {
			return t.ext, true
		}
	}
	return "", false
}
