// Package blobstore persists binary payloads (PDF bytes) addressed by an
// opaque reference. References are generated by the store at upload time and
// only handed out once the full payload is durably written, so a reference
// never points at a partial object.
package blobstore

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound indicates the reference does not name a live object.
	ErrNotFound = errors.New("blobstore: object not found")

	// ErrWriteFailed indicates the payload write was interrupted before the
	// commit point. No reference exists for the attempted upload.
	ErrWriteFailed = errors.New("blobstore: write failed")

	// ErrReadFailed indicates an I/O failure while streaming a stored payload.
	ErrReadFailed = errors.New("blobstore: read failed")
)

// Store is the blob storage contract shared by the MinIO implementation and
// the in-memory one used in tests.
type Store interface {
	// Put streams the payload into storage and returns its reference.
	// A failed or interrupted write returns ErrWriteFailed and leaves no
	// visible object behind.
	Put(ctx context.Context, r io.Reader, filename, contentType string) (string, error)

	// Open returns a stream over the payload named by ref. The caller owns
	// the returned ReadCloser. Unknown or deleted references return
	// ErrNotFound.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes the payload. Deleting a reference that is not live
	// returns ErrNotFound; callers performing a wider teardown should log
	// and continue rather than abort.
	Delete(ctx context.Context, ref string) error
}
