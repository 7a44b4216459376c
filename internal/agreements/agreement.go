// Package agreements tracks convenios: flat agreement records with a
// year-scoped consecutive folio number and a derived status. Agreements have
// no blob payload; they share only the expiry rules with documents.
package agreements

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dcervantes/foliovault/internal/expiry"
)

// Status is the lifecycle state of an agreement.
type Status string

const (
	StatusCapturing Status = "capturing"
	StatusActive    Status = "active"
	StatusExpiring  Status = "expiring"
	StatusExpired   Status = "expired"
)

var (
	ErrNotFound      = errors.New("agreement not found")
	ErrDuplicateUnit = errors.New("receiving unit already registered")
	ErrMissingUnit   = errors.New("receiving unit name required")
)

// MapHTTPStatus converts agreement errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateUnit):
		return http.StatusConflict
	case errors.Is(err, ErrMissingUnit):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Agreement is one tracked convenio.
type Agreement struct {
	ID              string     `json:"id"`
	Numero          int        `json:"numero"`
	Anio            int        `json:"anio"`
	UnidadReceptora string     `json:"unidadReceptora"`
	Nombre          string     `json:"nombre"`
	FechaInicio     *time.Time `json:"fechaInicio,omitempty"`
	FechaFin        *time.Time `json:"fechaFin,omitempty"`
	Estatus         Status     `json:"estatus"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Folio renders the year-scoped consecutive identifier, e.g. "2026-003".
func (a Agreement) Folio() string {
	return fmt.Sprintf("%d-%03d", a.Anio, a.Numero)
}

// DeriveStatus recomputes the lifecycle state from the validity window.
// Agreements without an end date stay in capture.
func (a Agreement) DeriveStatus(now time.Time, windowDays int) Status {
	if a.FechaFin == nil {
		return StatusCapturing
	}
	switch expiry.Classify(a.FechaFin, now, windowDays).Status {
	case expiry.StatusExpired:
		return StatusExpired
	case expiry.StatusExpiringSoon:
		return StatusExpiring
	default:
		return StatusActive
	}
}

// Dashboard aggregates the home-view statistics.
type Dashboard struct {
	TotalActive       int         `json:"totalActive"`
	TotalExpiring     int         `json:"totalExpiring"`
	StartingThisMonth int         `json:"startingThisMonth"`
	Upcoming          []Agreement `json:"upcoming"`
}

// Store is the persistence contract for agreements.
type Store interface {
	Insert(ctx context.Context, a *Agreement) error

	Get(ctx context.Context, id string) (*Agreement, error)

	// Search matches the receiving-unit name case-insensitively as a
	// substring, empty query matching all, ordered by (anio, numero).
	Search(ctx context.Context, query string) ([]Agreement, error)

	Update(ctx context.Context, a *Agreement) error

	Delete(ctx context.Context, id string) error

	// NextNumero returns the next consecutive number for the given year,
	// starting at 1.
	NextNumero(ctx context.Context, year int) (int, error)

	// UnitExists reports whether a receiving unit is already registered,
	// case-insensitively.
	UnitExists(ctx context.Context, unidad string) (bool, error)
}
