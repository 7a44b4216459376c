package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

type memoryObject struct {
	data        []byte
	filename    string
	contentType string
}

// MemoryStore is an in-memory Store used by tests and local development
// without MinIO. RWMutex differentiates read locks from write locks, which
// suits the read-heavy download path.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemory constructs an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put drains the reader fully before anything becomes visible; a read error
// mid-stream leaves the map untouched and returns no reference.
func (m *MemoryStore) Put(ctx context.Context, r io.Reader, filename, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	ref := fmt.Sprintf("uploads/%s/%s", uuid.NewString(), sanitizeFilename(filename))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[ref] = memoryObject{
		data:        append([]byte(nil), data...),
		filename:    filename,
		contentType: contentType,
	}
	return ref, nil
}

// Open returns a stream over a copy of the payload so callers cannot mutate
// stored bytes.
func (m *MemoryStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), obj.data...))), nil
}

// Delete removes the object; a second delete of the same reference fails.
func (m *MemoryStore) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[ref]; !ok {
		return ErrNotFound
	}
	delete(m.objects, ref)
	return nil
}

// Len reports how many objects are stored. Handy for orphan assertions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
