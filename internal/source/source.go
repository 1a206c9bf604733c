// Package source loads statement bytes from local paths or Cloud Storage.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
)

// DefaultMaxBytes bounds how much of a statement is read.
const DefaultMaxBytes = 20 << 20

// File is a loaded statement.
type File struct {
	Name string
	Data []byte
}

// ObjectOpener opens a Cloud Storage object for reading.
type ObjectOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

// Loader reads statements from "gs://bucket/object" URIs or local paths.
type Loader struct {
	MaxBytes int64
	// ClientOptions are passed to storage.NewClient by the default opener.
	ClientOptions []option.ClientOption
	// Open overrides how objects are opened; nil uses a storage client.
	Open ObjectOpener
}

// ParseGCSURI splits "gs://bucket/path/to/object". ok is false for non-GCS URIs.
func ParseGCSURI(uri string) (bucket, object string, ok bool, err error) {
	rest, found := strings.CutPrefix(uri, "gs://")
	if !found {
		return "", "", false, nil
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", true, fmt.Errorf("invalid GCS URI %q: want gs://bucket/object", uri)
	}
	return bucket, object, true, nil
}

// Load reads the statement at uri.
func (l *Loader) Load(ctx context.Context, uri string) (*File, error) {
	bucket, object, isGCS, err := ParseGCSURI(uri)
	if err != nil {
		return nil, fetchError(uri, err)
	}

	var rc io.ReadCloser
	name := filepath.Base(uri)
	if isGCS {
		open := l.Open
		if open == nil {
			open = l.openObject
		}
		rc, err = open(ctx, bucket, object)
		name = path.Base(object)
	} else {
		rc, err = os.Open(uri)
	}
	if err != nil {
		return nil, fetchError(uri, err)
	}
	defer rc.Close()

	limit := l.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fetchError(uri, fmt.Errorf("read: %w", err))
	}
	if int64(len(data)) > limit {
		return nil, fetchError(uri, fmt.Errorf("file exceeds %d bytes", limit))
	}
	return &File{Name: name, Data: data}, nil
}

// openObject opens an object with a short-lived storage client.
func (l *Loader) openObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	client, err := storage.NewClient(ctx, l.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	return &objectReader{Reader: r, client: client}, nil
}

type objectReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *objectReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func fetchError(uri string, err error) *extraction.ExtractionError {
	return &extraction.ExtractionError{
		Code:    extraction.ErrSourceFetchFailed,
		Message: fmt.Sprintf("load %s", uri),
		Cause:   err,
	}
}
