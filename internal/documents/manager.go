package documents

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dcervantes/foliovault/internal/blobstore"
	"github.com/dcervantes/foliovault/internal/expiry"
)

// Extractor schedules best-effort text extraction for a stored payload.
// Implementations: the asynq queue client and the in-process pool. Extraction
// failure never fails the surrounding operation.
type Extractor interface {
	EnqueueExtract(ctx context.Context, documentID, blobRef, fileName string) error
}

// Manager coordinates metadata records with their blob payloads. All
// dependencies are injected by the composition root; there is no ambient
// bucket handle anywhere.
type Manager struct {
	store          Store
	blobs          blobstore.Store
	extractor      Extractor
	validate       *validator.Validate
	deleteReplaced bool
}

// NewManager constructs a Manager. extractor may be nil, in which case
// records keep empty content until something backfills it.
func NewManager(store Store, blobs blobstore.Store, extractor Extractor, deleteReplaced bool) *Manager {
	return &Manager{
		store:          store,
		blobs:          blobs,
		extractor:      extractor,
		validate:       validator.New(),
		deleteReplaced: deleteReplaced,
	}
}

// Create stores the payload first, then the metadata record pointing at it.
// If the metadata insert fails after a successful blob write the orphaned
// blob is left behind; that failure mode is accepted and logged, never
// silently retried.
func (m *Manager) Create(ctx context.Context, fields Fields, payload io.Reader, fileName, contentType string) (*Document, error) {
	if contentType != "application/pdf" {
		return nil, ErrUnsupportedMedia
	}
	if err := m.validate.Struct(fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	ref, err := m.blobs.Put(ctx, payload, fileName, contentType)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:             uuid.NewString(),
		Titular:        fields.Titular,
		Cargo:          fields.Cargo,
		Correo:         fields.Correo,
		ApoderadoLegal: fields.ApoderadoLegal,
		Expediente:     fields.Expediente,
		Firma:          fields.Firma,
		Nacionalidad:   fields.Nacionalidad,
		Codigo:         fields.Codigo,
		RFC:            fields.RFC,
		CuentaINE:      fields.CuentaINE,
		Comentarios:    fields.Comentarios,
		VigenciaInicio: fields.VigenciaInicio,
		VigenciaFin:    fields.VigenciaFin,
		FileName:       fileName,
		ContentType:    contentType,
		BlobRef:        ref,
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.store.Insert(ctx, doc); err != nil {
		log.Printf("metadata insert failed, blob %s orphaned: %v", ref, err)
		return nil, fmt.Errorf("insert document: %w", err)
	}

	m.scheduleExtract(ctx, doc)
	return doc, nil
}

// List searches records and augments each with its expiry badge at the
// supplied threshold.
func (m *Manager) List(ctx context.Context, query, sortField string, desc bool, now time.Time, thresholdDays int) ([]ListItem, error) {
	docs, err := m.store.Search(ctx, query, sortField, desc)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	items := make([]ListItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, ListItem{
			Document: doc,
			Expiry:   expiry.Classify(doc.VigenciaFin, now, thresholdDays),
		})
	}
	return items, nil
}

// Get returns one record by id.
func (m *Manager) Get(ctx context.Context, id string) (*Document, error) {
	return m.store.Get(ctx, id)
}

// Expiring returns records whose validity end falls within windowDays from
// now, soonest first.
func (m *Manager) Expiring(ctx context.Context, now time.Time, windowDays int) ([]ListItem, error) {
	docs, err := m.store.ExpiringBetween(ctx, now, now.AddDate(0, 0, windowDays))
	if err != nil {
		return nil, fmt.Errorf("expiring documents: %w", err)
	}
	items := make([]ListItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, ListItem{
			Document: doc,
			Expiry:   expiry.Classify(doc.VigenciaFin, now, windowDays),
		})
	}
	return items, nil
}

// Update merges the supplied fields into the record. When a replacement
// payload is provided it is stored first and the record repointed; the
// superseded blob is removed only when the manager was configured to do so,
// otherwise it stays behind as an orphan.
func (m *Manager) Update(ctx context.Context, id string, fields UpdateFields, payload io.Reader, fileName, contentType string) (*Document, error) {
	if err := m.validate.Struct(fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	doc, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applyUpdate(doc, fields)

	var oldRef string
	if payload != nil {
		if contentType != "application/pdf" {
			return nil, ErrUnsupportedMedia
		}
		ref, err := m.blobs.Put(ctx, payload, fileName, contentType)
		if err != nil {
			return nil, err
		}
		oldRef = doc.BlobRef
		doc.BlobRef = ref
		doc.FileName = fileName
		doc.ContentType = contentType
		doc.Content = ""
	}

	if err := m.store.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}

	if oldRef != "" {
		if m.deleteReplaced {
			if err := m.blobs.Delete(ctx, oldRef); err != nil {
				log.Printf("delete replaced blob %s: %v", oldRef, err)
			}
		} else {
			log.Printf("blob %s superseded by %s, kept in storage", oldRef, doc.BlobRef)
		}
		m.scheduleExtract(ctx, doc)
	}
	return doc, nil
}

// Delete removes the record, attempting blob removal first. A failed blob
// delete is logged and does not stop the metadata delete; an orphaned blob
// beats a dangling record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	doc, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.blobs.Delete(ctx, doc.BlobRef); err != nil {
		log.Printf("blob delete failed for %s, removing metadata anyway: %v", doc.BlobRef, err)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (m *Manager) scheduleExtract(ctx context.Context, doc *Document) {
	if m.extractor == nil {
		return
	}
	if err := m.extractor.EnqueueExtract(ctx, doc.ID, doc.BlobRef, doc.FileName); err != nil {
		log.Printf("enqueue extract for %s: %v", doc.ID, err)
	}
}

func applyUpdate(doc *Document, f UpdateFields) {
	if f.Titular != nil {
		doc.Titular = *f.Titular
	}
	if f.Cargo != nil {
		doc.Cargo = *f.Cargo
	}
	if f.Correo != nil {
		doc.Correo = *f.Correo
	}
	if f.ApoderadoLegal != nil {
		doc.ApoderadoLegal = *f.ApoderadoLegal
	}
	if f.Expediente != nil {
		doc.Expediente = *f.Expediente
	}
	if f.Firma != nil {
		doc.Firma = *f.Firma
	}
	if f.Nacionalidad != nil {
		doc.Nacionalidad = *f.Nacionalidad
	}
	if f.Codigo != nil {
		doc.Codigo = *f.Codigo
	}
	if f.RFC != nil {
		doc.RFC = *f.RFC
	}
	if f.CuentaINE != nil {
		doc.CuentaINE = *f.CuentaINE
	}
	if f.Comentarios != nil {
		doc.Comentarios = *f.Comentarios
	}
	if f.VigenciaInicio != nil {
		doc.VigenciaInicio = f.VigenciaInicio
	}
	if f.VigenciaFin != nil {
		doc.VigenciaFin = f.VigenciaFin
	}
}
