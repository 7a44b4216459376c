package agreements

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Manager owns agreement numbering and the dashboard aggregation.
type Manager struct {
	store      Store
	windowDays int
}

// NewManager constructs a Manager. windowDays is the expiring-soon horizon
// used for derived statuses and the dashboard (30 in the default config).
func NewManager(store Store, windowDays int) *Manager {
	return &Manager{store: store, windowDays: windowDays}
}

// CreateCommand carries the data to register a new agreement.
type CreateCommand struct {
	UnidadReceptora string     `json:"unidadReceptora"`
	Nombre          string     `json:"nombre"`
	FechaInicio     *time.Time `json:"fechaInicio"`
	FechaFin        *time.Time `json:"fechaFin"`
}

// Create registers an agreement under the next consecutive folio for the
// current year. Duplicate receiving units are rejected.
func (m *Manager) Create(ctx context.Context, cmd CreateCommand, now time.Time) (*Agreement, error) {
	unidad := strings.TrimSpace(cmd.UnidadReceptora)
	if unidad == "" {
		return nil, ErrMissingUnit
	}
	exists, err := m.store.UnitExists(ctx, unidad)
	if err != nil {
		return nil, fmt.Errorf("check receiving unit: %w", err)
	}
	if exists {
		return nil, ErrDuplicateUnit
	}

	year := now.Year()
	numero, err := m.store.NextNumero(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("next folio number: %w", err)
	}

	a := &Agreement{
		ID:              uuid.NewString(),
		Numero:          numero,
		Anio:            year,
		UnidadReceptora: unidad,
		Nombre:          strings.TrimSpace(cmd.Nombre),
		FechaInicio:     cmd.FechaInicio,
		FechaFin:        cmd.FechaFin,
		CreatedAt:       now.UTC(),
	}
	a.Estatus = a.DeriveStatus(now, m.windowDays)
	if err := m.store.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("insert agreement: %w", err)
	}
	return a, nil
}

// List searches agreements by receiving unit, refreshing each derived status.
func (m *Manager) List(ctx context.Context, query string, now time.Time) ([]Agreement, error) {
	items, err := m.store.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search agreements: %w", err)
	}
	for i := range items {
		items[i].Estatus = items[i].DeriveStatus(now, m.windowDays)
	}
	return items, nil
}

// Get returns one agreement by id with a refreshed status.
func (m *Manager) Get(ctx context.Context, id string, now time.Time) (*Agreement, error) {
	a, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Estatus = a.DeriveStatus(now, m.windowDays)
	return a, nil
}

// Delete removes an agreement.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// Stats builds the home dashboard: active and soon-to-expire counts, how
// many agreements started this month, and the next five upcoming
// expirations ordered by end date.
func (m *Manager) Stats(ctx context.Context, now time.Time) (*Dashboard, error) {
	items, err := m.store.Search(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load agreements: %w", err)
	}

	d := &Dashboard{Upcoming: []Agreement{}}
	var upcoming []Agreement
	for _, a := range items {
		status := a.DeriveStatus(now, m.windowDays)
		switch status {
		case StatusActive:
			d.TotalActive++
		case StatusExpiring:
			d.TotalActive++
			d.TotalExpiring++
			a.Estatus = status
			upcoming = append(upcoming, a)
		}
		if a.FechaInicio != nil &&
			a.FechaInicio.Year() == now.Year() &&
			a.FechaInicio.Month() == now.Month() {
			d.StartingThisMonth++
		}
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].FechaFin.Before(*upcoming[j].FechaFin)
	})
	if len(upcoming) > 5 {
		upcoming = upcoming[:5]
	}
	d.Upcoming = append(d.Upcoming, upcoming...)
	return d, nil
}
