package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestPutOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	payloads := [][]byte{
		{},
		[]byte("x"),
		bytes.Repeat([]byte("folio"), 10_000),
	}
	for _, payload := range payloads {
		ref, err := store.Put(ctx, bytes.NewReader(payload), "contrato.pdf", "application/pdf")
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if ref == "" {
			t.Fatal("expected non-empty reference")
		}
		rc, err := store.Open(ctx, ref)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
		}
	}
}

// errReader fails after yielding a prefix, simulating an interrupted upload.
type errReader struct {
	prefix []byte
	served bool
}

func (r *errReader) Read(p []byte) (int, error) {
	if !r.served {
		r.served = true
		return copy(p, r.prefix), nil
	}
	return 0, errors.New("connection reset")
}

func TestInterruptedPutLeavesNothingVisible(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	ref, err := store.Put(ctx, &errReader{prefix: []byte("partial")}, "roto.pdf", "application/pdf")
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if ref != "" {
		t.Fatalf("expected empty reference, got %q", ref)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no stored objects, found %d", store.Len())
	}
}

func TestDeleteIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	ref, err := store.Put(ctx, bytes.NewReader([]byte("%PDF-1.4")), "convenio.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.Open(ctx, ref); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	}
	if err := store.Delete(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should fail with ErrNotFound, got %v", err)
	}
}

func TestOpenUnknownReference(t *testing.T) {
	store := NewMemory()
	if _, err := store.Open(context.Background(), "uploads/nope/missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
