package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the tables if needed. Keeping the migration in code
// keeps the stack self-contained so docker-compose can bootstrap everything.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	titular TEXT NOT NULL DEFAULT '',
	cargo TEXT NOT NULL DEFAULT '',
	correo TEXT NOT NULL DEFAULT '',
	apoderado_legal TEXT NOT NULL DEFAULT '',
	expediente TEXT NOT NULL DEFAULT '',
	firma TEXT NOT NULL DEFAULT '',
	nacionalidad TEXT NOT NULL DEFAULT '',
	codigo TEXT NOT NULL DEFAULT '',
	rfc TEXT NOT NULL DEFAULT '',
	cuenta_ine BOOLEAN NOT NULL DEFAULT FALSE,
	comentarios TEXT,
	vigencia_inicio TIMESTAMPTZ,
	vigencia_fin TIMESTAMPTZ,
	file_name TEXT NOT NULL,
	content_type TEXT NOT NULL,
	blob_ref TEXT NOT NULL,
	content TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_vigencia_fin ON documents(vigencia_fin);

CREATE TABLE IF NOT EXISTS agreements (
	id TEXT PRIMARY KEY,
	numero INTEGER NOT NULL,
	anio INTEGER NOT NULL,
	unidad_receptora TEXT NOT NULL,
	nombre TEXT NOT NULL DEFAULT '',
	fecha_inicio TIMESTAMPTZ,
	fecha_fin TIMESTAMPTZ,
	estatus TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (anio, numero)
);
CREATE INDEX IF NOT EXISTS idx_agreements_unidad ON agreements(LOWER(unidad_receptora));`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
