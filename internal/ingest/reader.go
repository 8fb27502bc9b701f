package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/yaccii-voc/kbcore/internal/blobstore"
)

// blobReader adapts a blobstore.Store object to parser.Reader, reading the
// whole object into memory once so parsers (which need random access for
// PDF/DOCX libraries) never re-fetch.
type blobReader struct {
	content     []byte
	contentType string
	filename    string
}

func loadBlob(ctx context.Context, store blobstore.Store, storageURI, contentType, filename string) (*blobReader, error) {
	rc, err := store.Get(ctx, storageURI)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch blob %s: %w", storageURI, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ingest: read blob %s: %w", storageURI, err)
	}
	return &blobReader{content: b, contentType: contentType, filename: filename}, nil
}

func (r *blobReader) Bytes() ([]byte, error) { return r.content, nil }
func (r *blobReader) ContentType() string    { return r.contentType }
func (r *blobReader) Filename() string       { return r.filename }
