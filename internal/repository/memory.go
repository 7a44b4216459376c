package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dcervantes/foliovault/internal/agreements"
	"github.com/dcervantes/foliovault/internal/documents"
)

// MemoryDocumentStore implements documents.Store with a mutex-guarded map.
// It backs tests and Postgres-free local runs.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]documents.Document
}

// NewMemoryDocumentStore constructs an empty store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string]documents.Document)}
}

func (m *MemoryDocumentStore) Insert(ctx context.Context, doc *documents.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = *doc
	return nil
}

func (m *MemoryDocumentStore) Get(ctx context.Context, id string) (*documents.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	out := doc
	return &out, nil
}

func (m *MemoryDocumentStore) Search(ctx context.Context, query, sortField string, desc bool) ([]documents.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	var out []documents.Document
	for _, doc := range m.docs {
		if q == "" || documentMatches(doc, q) {
			out = append(out, doc)
		}
	}
	sortDocuments(out, sortField, desc)
	return out, nil
}

func (m *MemoryDocumentStore) Update(ctx context.Context, doc *documents.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		return documents.ErrNotFound
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *MemoryDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return documents.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryDocumentStore) SetContent(ctx context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return documents.ErrNotFound
	}
	doc.Content = content
	m.docs[id] = doc
	return nil
}

func (m *MemoryDocumentStore) ExpiringBetween(ctx context.Context, from, to time.Time) ([]documents.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []documents.Document
	for _, doc := range m.docs {
		if doc.VigenciaFin == nil {
			continue
		}
		if doc.VigenciaFin.Before(from) || doc.VigenciaFin.After(to) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].VigenciaFin.Before(*out[j].VigenciaFin)
	})
	return out, nil
}

func documentMatches(doc documents.Document, q string) bool {
	for _, field := range []string{
		doc.Titular, doc.Cargo, doc.Correo, doc.ApoderadoLegal, doc.Expediente,
		doc.Nacionalidad, doc.Codigo, doc.RFC, doc.Content, doc.FileName,
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func sortDocuments(docs []documents.Document, sortField string, desc bool) {
	less := func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	}
	switch sortField {
	case "titular":
		less = func(i, j int) bool { return docs[i].Titular < docs[j].Titular }
	case "fileName":
		less = func(i, j int) bool { return docs[i].FileName < docs[j].FileName }
	case "vigenciaFin":
		less = func(i, j int) bool {
			// records without an end date sort last
			switch {
			case docs[i].VigenciaFin == nil:
				return false
			case docs[j].VigenciaFin == nil:
				return true
			default:
				return docs[i].VigenciaFin.Before(*docs[j].VigenciaFin)
			}
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

// MemoryAgreementStore implements agreements.Store in memory.
type MemoryAgreementStore struct {
	mu    sync.RWMutex
	items map[string]agreements.Agreement
}

// NewMemoryAgreementStore constructs an empty store.
func NewMemoryAgreementStore() *MemoryAgreementStore {
	return &MemoryAgreementStore{items: make(map[string]agreements.Agreement)}
}

func (m *MemoryAgreementStore) Insert(ctx context.Context, a *agreements.Agreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[a.ID] = *a
	return nil
}

func (m *MemoryAgreementStore) Get(ctx context.Context, id string) (*agreements.Agreement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.items[id]
	if !ok {
		return nil, agreements.ErrNotFound
	}
	out := a
	return &out, nil
}

func (m *MemoryAgreementStore) Search(ctx context.Context, query string) ([]agreements.Agreement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	var out []agreements.Agreement
	for _, a := range m.items {
		if q == "" || strings.Contains(strings.ToLower(a.UnidadReceptora), q) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Anio != out[j].Anio {
			return out[i].Anio < out[j].Anio
		}
		return out[i].Numero < out[j].Numero
	})
	return out, nil
}

func (m *MemoryAgreementStore) Update(ctx context.Context, a *agreements.Agreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[a.ID]; !ok {
		return agreements.ErrNotFound
	}
	m.items[a.ID] = *a
	return nil
}

func (m *MemoryAgreementStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return agreements.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryAgreementStore) NextNumero(ctx context.Context, year int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, a := range m.items {
		if a.Anio == year && a.Numero > max {
			max = a.Numero
		}
	}
	return max + 1, nil
}

func (m *MemoryAgreementStore) UnitExists(ctx context.Context, unidad string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.items {
		if strings.EqualFold(a.UnidadReceptora, unidad) {
			return true, nil
		}
	}
	return false, nil
}
