package quote

import (
	"context"
	"io"
	"time"
)

// Transport retrieves documents from the remote collection.
type Transport interface {
	// Fetch retrieves one identifier. Transport failures are *TransportError.
	Fetch(ctx context.Context, id int64) (FetchResult, error)
	// FetchLanding retrieves the collection's landing page.
	FetchLanding(ctx context.Context) ([]byte, error)
}

// Extractor turns raw markup into a Record. ID and SourceURL are left for the caller.
type Extractor interface {
	Extract(content []byte) (Record, error)
}

// Store persists quote rows and the watermark.
type Store interface {
	Upsert(ctx context.Context, record Record) error
	ReadWatermark(ctx context.Context) (int64, error)
	WriteWatermark(ctx context.Context, value int64) error
	Close() error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
