package agreements_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcervantes/foliovault/internal/agreements"
	"github.com/dcervantes/foliovault/internal/repository"
)

func ptr(t time.Time) *time.Time { return &t }

func newManager() (*agreements.Manager, *repository.MemoryAgreementStore) {
	store := repository.NewMemoryAgreementStore()
	return agreements.NewManager(store, 30), store
}

func TestCreateAssignsConsecutiveFolios(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	first, err := mgr.Create(ctx, agreements.CreateCommand{UnidadReceptora: "Facultad de Derecho"}, now)
	require.NoError(t, err)
	second, err := mgr.Create(ctx, agreements.CreateCommand{UnidadReceptora: "Hospital Central"}, now)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Numero)
	assert.Equal(t, 2, second.Numero)
	assert.Equal(t, "2026-001", first.Folio())
	assert.Equal(t, "2026-002", second.Folio())
}

func TestCreateNumberingIsPerYear(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()

	a, err := mgr.Create(ctx, agreements.CreateCommand{UnidadReceptora: "Unidad A"},
		time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	b, err := mgr.Create(ctx, agreements.CreateCommand{UnidadReceptora: "Unidad B"},
		time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "2025-001", a.Folio())
	assert.Equal(t, "2026-001", b.Folio())
}

func TestCreateRejectsDuplicateUnit(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()
	now := time.Now()

	_, err := mgr.Create(ctx, agreements.CreateCommand{UnidadReceptora: "Facultad de Derecho"}, now)
	require.NoError(t, err)
	_, err = mgr.Create(ctx, agreements.CreateCommand{UnidadReceptora: "facultad de derecho"}, now)
	assert.ErrorIs(t, err, agreements.ErrDuplicateUnit)
}

func TestCreateRequiresUnit(t *testing.T) {
	mgr, _ := newManager()
	_, err := mgr.Create(context.Background(), agreements.CreateCommand{UnidadReceptora: "   "}, time.Now())
	assert.ErrorIs(t, err, agreements.ErrMissingUnit)
}

func TestDerivedStatus(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	capturing := agreements.Agreement{}
	active := agreements.Agreement{FechaFin: ptr(now.AddDate(0, 6, 0))}
	expiring := agreements.Agreement{FechaFin: ptr(now.AddDate(0, 0, 10))}
	expired := agreements.Agreement{FechaFin: ptr(now.AddDate(0, 0, -1))}

	assert.Equal(t, agreements.StatusCapturing, capturing.DeriveStatus(now, 30))
	assert.Equal(t, agreements.StatusActive, active.DeriveStatus(now, 30))
	assert.Equal(t, agreements.StatusExpiring, expiring.DeriveStatus(now, 30))
	assert.Equal(t, agreements.StatusExpired, expired.DeriveStatus(now, 30))
}

func TestListSearchesReceivingUnit(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()
	now := time.Now()

	_, err := mgr.Create(ctx, agreements.CreateCommand{UnidadReceptora: "Facultad de Derecho"}, now)
	require.NoError(t, err)
	_, err = mgr.Create(ctx, agreements.CreateCommand{UnidadReceptora: "Hospital Central"}, now)
	require.NoError(t, err)

	items, err := mgr.List(ctx, "derecho", now)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Facultad de Derecho", items[0].UnidadReceptora)

	all, err := mgr.List(ctx, "", now)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStats(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()
	now := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

	mk := func(unidad string, inicio, fin *time.Time) {
		_, err := mgr.Create(ctx, agreements.CreateCommand{
			UnidadReceptora: unidad,
			FechaInicio:     inicio,
			FechaFin:        fin,
		}, now)
		require.NoError(t, err)
	}

	mk("Activa Larga", ptr(now.AddDate(0, -1, 0)), ptr(now.AddDate(1, 0, 0)))
	mk("Por Vencer A", ptr(now.AddDate(0, 0, -300)), ptr(now.AddDate(0, 0, 20)))
	mk("Por Vencer B", nil, ptr(now.AddDate(0, 0, 5)))
	mk("Vencida", nil, ptr(now.AddDate(0, 0, -10)))
	mk("En Captura", ptr(now.AddDate(0, 0, -3)), nil)

	stats, err := mgr.Stats(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalActive)
	assert.Equal(t, 2, stats.TotalExpiring)
	// "En Captura" started this month
	assert.Equal(t, 1, stats.StartingThisMonth)

	require.Len(t, stats.Upcoming, 2)
	assert.Equal(t, "Por Vencer B", stats.Upcoming[0].UnidadReceptora)
	assert.Equal(t, "Por Vencer A", stats.Upcoming[1].UnidadReceptora)
}

func TestGetAndDelete(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()
	now := time.Now()

	a, err := mgr.Create(ctx, agreements.CreateCommand{UnidadReceptora: "Facultad de Derecho"}, now)
	require.NoError(t, err)

	got, err := mgr.Get(ctx, a.ID, now)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	require.NoError(t, mgr.Delete(ctx, a.ID))
	_, err = mgr.Get(ctx, a.ID, now)
	assert.ErrorIs(t, err, agreements.ErrNotFound)

	err = mgr.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, agreements.ErrNotFound)
}
