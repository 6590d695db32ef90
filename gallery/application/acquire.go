package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/ciel/gallery/domain"
)

const (
	opAcquire   = "acquire"
	copyBufSize = 32 * 1024
)

// AcquireResult is the outcome of an asynchronous acquisition.
type AcquireResult struct {
	ID  string
	Err error
}

// Acquire copies the content of src into the images directory under a fresh
// identifier and returns it. The image is not indexed until Register is
// called. On failure nothing is left behind.
func (s *LifecycleService) Acquire(ctx context.Context, src domain.Source) (string, error) {
	rc, err := s.open(ctx, src)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	mtype, body, err := sniff(rc)
	if err != nil {
		return "", domain.FetchError(opAcquire, src.String(), err)
	}

	ext, ok := extensionFor(mtype)
	if !ok {
		return "", domain.UnsupportedTypeError(opAcquire, src.String(), fmt.Errorf("detected %s", mtype.String()))
	}

	id := s.newID() + "." + ext
	f, err := s.files.Create(id)
	if err != nil {
		return "", err
	}

	if err := copyInto(ctx, f, body, src.String()); err != nil {
		if rmErr := s.files.Remove(id); rmErr != nil {
			log.Error().Err(rmErr).Str("id", id).Msg("Failed to remove partial image")
		}
		return "", err
	}

	log.Info().Str("id", id).Str("source", src.String()).Str("type", mtype.String()).Msg("Acquired image")
	return id, nil
}

// AcquireAsync runs Acquire on a background worker. The acquisition is
// cancelled when ctx is done or the service is closed; the channel receives
// exactly one result and is then closed.
func (s *LifecycleService) AcquireAsync(ctx context.Context, src domain.Source) <-chan AcquireResult {
	out := make(chan AcquireResult, 1)

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	s.wg.Go(func() {
		defer close(out)
		defer stop()
		defer cancel()

		id, err := s.Acquire(ctx, src)
		out <- AcquireResult{ID: id, Err: err}
	})

	return out
}

// open returns a reader over the source's bytes.
func (s *LifecycleService) open(ctx context.Context, src domain.Source) (io.ReadCloser, error) {
	switch src.Kind {
	case domain.SourceBytes:
		return io.NopCloser(bytes.NewReader(src.Data)), nil

	case domain.SourceURL:
		if s.fetcher == nil {
			return nil, domain.FetchError(opAcquire, src.Ref, fmt.Errorf("remote sources are not enabled"))
		}
		return s.fetcher.Fetch(ctx, src.Ref)

	case domain.SourcePath:
		path, err := localPath(src.Ref)
		if err != nil {
			return nil, domain.FetchError(opAcquire, src.Ref, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, domain.FetchError(opAcquire, src.Ref, err)
		}

		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, domain.FetchError(opAcquire, src.Ref, err)
		}
		if !info.Mode().IsRegular() {
			f.Close()
			return nil, domain.FetchError(opAcquire, src.Ref, fmt.Errorf("not a regular file"))
		}
		return f, nil
	}

	return nil, domain.FetchError(opAcquire, src.Ref, fmt.Errorf("unknown source kind %d", src.Kind))
}

// localPath accepts plain paths and file:// URLs.
func localPath(ref string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(ref), "file://") {
		return ref, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if u.Path == "" {
		return "", fmt.Errorf("file URL has no path")
	}
	return u.Path, nil
}

// copyInto streams body into f and closes it. Read failures are fetch errors,
// write failures are I/O errors. ctx is checked between chunks.
func copyInto(ctx context.Context, f *os.File, body io.Reader, subject string) (err error) {
	name := f.Name()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = domain.IOError(opAcquire, name, cerr)
		}
	}()

	buf := make([]byte, copyBufSize)
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", opAcquire, subject, ctxErr)
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return domain.IOError(opAcquire, name, writeErr)
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return domain.FetchError(opAcquire, subject, readErr)
		}
	}

	if err := f.Sync(); err != nil {
		return domain.IOError(opAcquire, name, err)
	}

	return nil
}
