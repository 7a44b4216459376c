// Package documents owns the metadata records describing stored agreement
// PDFs: creation, search, merge-style edits, deletion fan-out into the blob
// store, and the derived expiry badge computed at read time.
package documents

import (
	"context"
	"time"

	"github.com/dcervantes/foliovault/internal/expiry"
)

// Document is the canonical metadata record for one stored PDF. Earlier
// iterations of the schema disagreed on field names (apoderado vs
// apoderadoLegal); this shape is the single surviving one.
type Document struct {
	ID             string     `json:"id"`
	Titular        string     `json:"titular"`
	Cargo          string     `json:"cargo"`
	Correo         string     `json:"correo"`
	ApoderadoLegal string     `json:"apoderadoLegal"`
	Expediente     string     `json:"expediente"`
	Firma          string     `json:"firma"`
	Nacionalidad   string     `json:"nacionalidad"`
	Codigo         string     `json:"codigo"`
	RFC            string     `json:"rfc"`
	CuentaINE      bool       `json:"cuentaINE"`
	Comentarios    string     `json:"comentarios,omitempty"`
	VigenciaInicio *time.Time `json:"vigenciaInicio,omitempty"`
	VigenciaFin    *time.Time `json:"vigenciaFin,omitempty"`
	FileName       string     `json:"fileName"`
	ContentType    string     `json:"contentType"`
	BlobRef        string     `json:"blobRef"`
	Content        string     `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// ListItem is a Document augmented with its expiry classification.
type ListItem struct {
	Document
	Expiry expiry.Classification `json:"expiry"`
}

// Fields carries the structured metadata supplied on upload.
type Fields struct {
	Titular        string     `json:"titular" validate:"max=200"`
	Cargo          string     `json:"cargo" validate:"max=200"`
	Correo         string     `json:"correo" validate:"omitempty,email"`
	ApoderadoLegal string     `json:"apoderadoLegal" validate:"max=200"`
	Expediente     string     `json:"expediente" validate:"max=200"`
	Firma          string     `json:"firma" validate:"max=200"`
	Nacionalidad   string     `json:"nacionalidad" validate:"max=100"`
	Codigo         string     `json:"codigo" validate:"max=100"`
	RFC            string     `json:"rfc" validate:"omitempty,min=10,max=13"`
	CuentaINE      bool       `json:"cuentaINE"`
	Comentarios    string     `json:"comentarios"`
	VigenciaInicio *time.Time `json:"vigenciaInicio"`
	VigenciaFin    *time.Time `json:"vigenciaFin"`
}

// UpdateFields uses pointers so omitted fields stay untouched: edits merge
// into the existing record rather than replacing it wholesale. Date fields
// follow the same rule, so a date cannot be cleared through an edit, only
// moved.
type UpdateFields struct {
	Titular        *string    `json:"titular" validate:"omitempty,max=200"`
	Cargo          *string    `json:"cargo" validate:"omitempty,max=200"`
	Correo         *string    `json:"correo" validate:"omitempty,email"`
	ApoderadoLegal *string    `json:"apoderadoLegal" validate:"omitempty,max=200"`
	Expediente     *string    `json:"expediente" validate:"omitempty,max=200"`
	Firma          *string    `json:"firma" validate:"omitempty,max=200"`
	Nacionalidad   *string    `json:"nacionalidad" validate:"omitempty,max=100"`
	Codigo         *string    `json:"codigo" validate:"omitempty,max=100"`
	RFC            *string    `json:"rfc" validate:"omitempty,min=10,max=13"`
	CuentaINE      *bool      `json:"cuentaINE"`
	Comentarios    *string    `json:"comentarios"`
	VigenciaInicio *time.Time `json:"vigenciaInicio"`
	VigenciaFin    *time.Time `json:"vigenciaFin"`
}

// Store is the persistence contract for metadata records. The pgx
// implementation lives in internal/repository alongside an in-memory one
// for tests.
type Store interface {
	Insert(ctx context.Context, doc *Document) error

	Get(ctx context.Context, id string) (*Document, error)

	// Search returns records whose indexed text fields contain query,
	// case-insensitively, ORed across fields. An empty query matches all.
	// sortField is a logical name (createdAt, titular, vigenciaFin)
	// resolved by the implementation; unknown names fall back to createdAt.
	Search(ctx context.Context, query, sortField string, desc bool) ([]Document, error)

	Update(ctx context.Context, doc *Document) error

	Delete(ctx context.Context, id string) error

	// SetContent stores the extracted text for an existing record.
	SetContent(ctx context.Context, id, content string) error

	// ExpiringBetween returns records with a validity end inside [from, to],
	// ascending by end date.
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]Document, error)
}
