package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dcervantes/foliovault/internal/agreements"
)

// AgreementRepository implements agreements.Store on Postgres.
type AgreementRepository struct {
	pool *pgxpool.Pool
}

// NewAgreementRepository constructs a repository.
func NewAgreementRepository(pool *pgxpool.Pool) *AgreementRepository {
	return &AgreementRepository{pool: pool}
}

const agreementColumns = `id, numero, anio, unidad_receptora, nombre,
	fecha_inicio, fecha_fin, estatus, created_at`

func (r *AgreementRepository) Insert(ctx context.Context, a *agreements.Agreement) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO agreements (id, numero, anio, unidad_receptora, nombre,
			fecha_inicio, fecha_fin, estatus, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, a.Numero, a.Anio, a.UnidadReceptora, a.Nombre,
		a.FechaInicio, a.FechaFin, a.Estatus, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert agreement: %w", err)
	}
	return nil
}

func (r *AgreementRepository) Get(ctx context.Context, id string) (*agreements.Agreement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE id=$1`, id)
	a, err := scanAgreement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, agreements.ErrNotFound
		}
		return nil, fmt.Errorf("select agreement: %w", err)
	}
	return a, nil
}

func (r *AgreementRepository) Search(ctx context.Context, query string) ([]agreements.Agreement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+agreementColumns+` FROM agreements
		WHERE $1 = '' OR `+ilike("unidad_receptora")+`
		ORDER BY anio ASC, numero ASC
	`, escapeLike(query))
	if err != nil {
		return nil, fmt.Errorf("search agreements: %w", err)
	}
	defer rows.Close()

	var out []agreements.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agreement: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agreements: %w", err)
	}
	return out, nil
}

func (r *AgreementRepository) Update(ctx context.Context, a *agreements.Agreement) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE agreements
		SET unidad_receptora=$2, nombre=$3, fecha_inicio=$4, fecha_fin=$5, estatus=$6
		WHERE id=$1
	`, a.ID, a.UnidadReceptora, a.Nombre, a.FechaInicio, a.FechaFin, a.Estatus)
	if err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return agreements.ErrNotFound
	}
	return nil
}

func (r *AgreementRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM agreements WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete agreement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return agreements.ErrNotFound
	}
	return nil
}

func (r *AgreementRepository) NextNumero(ctx context.Context, year int) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(numero), 0) FROM agreements WHERE anio=$1`, year).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max numero: %w", err)
	}
	return max + 1, nil
}

func (r *AgreementRepository) UnitExists(ctx context.Context, unidad string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM agreements WHERE LOWER(unidad_receptora)=LOWER($1))`,
		unidad).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("unit exists: %w", err)
	}
	return exists, nil
}

func scanAgreement(row pgx.Row) (*agreements.Agreement, error) {
	var a agreements.Agreement
	err := row.Scan(&a.ID, &a.Numero, &a.Anio, &a.UnidadReceptora, &a.Nombre,
		&a.FechaInicio, &a.FechaFin, &a.Estatus, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
