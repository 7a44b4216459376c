// Package repository contains the pgx-backed persistence for documents and
// agreements, plus in-memory implementations used by tests and by local runs
// without Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dcervantes/foliovault/internal/documents"
)

// escapeLike escapes ILIKE pattern metacharacters so user queries match as
// literal substrings, keeping parity with the strings.Contains semantics of
// the in-memory store.
func escapeLike(q string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
}

// ilike builds a case-insensitive literal-substring predicate over $1.
func ilike(column string) string {
	return column + ` ILIKE '%'||$1||'%' ESCAPE '\'`
}

// DocumentRepository implements documents.Store on Postgres.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository constructs a repository.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

const documentColumns = `id, titular, cargo, correo, apoderado_legal, expediente,
	firma, nacionalidad, codigo, rfc, cuenta_ine, COALESCE(comentarios,''),
	vigencia_inicio, vigencia_fin, file_name, content_type, blob_ref,
	COALESCE(content,''), created_at`

// documentSortColumns whitelists logical sort names; everything else falls
// back to creation time.
var documentSortColumns = map[string]string{
	"createdAt":   "created_at",
	"titular":     "titular",
	"vigenciaFin": "vigencia_fin",
	"fileName":    "file_name",
}

// documentSearchColumns is the OR-match set for free-text queries.
var documentSearchColumns = []string{
	"titular", "cargo", "correo", "apoderado_legal", "expediente",
	"nacionalidad", "codigo", "rfc", "content", "file_name",
}

func (r *DocumentRepository) Insert(ctx context.Context, doc *documents.Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (id, titular, cargo, correo, apoderado_legal, expediente,
			firma, nacionalidad, codigo, rfc, cuenta_ine, comentarios,
			vigencia_inicio, vigencia_fin, file_name, content_type, blob_ref, content, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, doc.ID, doc.Titular, doc.Cargo, doc.Correo, doc.ApoderadoLegal, doc.Expediente,
		doc.Firma, doc.Nacionalidad, doc.Codigo, doc.RFC, doc.CuentaINE, doc.Comentarios,
		doc.VigenciaInicio, doc.VigenciaFin, doc.FileName, doc.ContentType, doc.BlobRef,
		doc.Content, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*documents.Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, documents.ErrNotFound
		}
		return nil, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) Search(ctx context.Context, query, sortField string, desc bool) ([]documents.Document, error) {
	col, ok := documentSortColumns[sortField]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	preds := make([]string, len(documentSearchColumns))
	for i, c := range documentSearchColumns {
		preds[i] = ilike(c)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE $1 = '' OR `+strings.Join(preds, " OR ")+`
		ORDER BY `+col+` `+dir, escapeLike(query))
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (r *DocumentRepository) Update(ctx context.Context, doc *documents.Document) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET titular=$2, cargo=$3, correo=$4, apoderado_legal=$5, expediente=$6,
			firma=$7, nacionalidad=$8, codigo=$9, rfc=$10, cuenta_ine=$11,
			comentarios=$12, vigencia_inicio=$13, vigencia_fin=$14,
			file_name=$15, content_type=$16, blob_ref=$17, content=$18
		WHERE id=$1
	`, doc.ID, doc.Titular, doc.Cargo, doc.Correo, doc.ApoderadoLegal, doc.Expediente,
		doc.Firma, doc.Nacionalidad, doc.Codigo, doc.RFC, doc.CuentaINE, doc.Comentarios,
		doc.VigenciaInicio, doc.VigenciaFin, doc.FileName, doc.ContentType, doc.BlobRef,
		doc.Content)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return documents.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return documents.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) SetContent(ctx context.Context, id, content string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET content=$2 WHERE id=$1`, id, content)
	if err != nil {
		return fmt.Errorf("set content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return documents.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) ExpiringBetween(ctx context.Context, from, to time.Time) ([]documents.Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE vigencia_fin IS NOT NULL AND vigencia_fin >= $1 AND vigencia_fin <= $2
		ORDER BY vigencia_fin ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("expiring documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func scanDocument(row pgx.Row) (*documents.Document, error) {
	var doc documents.Document
	err := row.Scan(&doc.ID, &doc.Titular, &doc.Cargo, &doc.Correo, &doc.ApoderadoLegal,
		&doc.Expediente, &doc.Firma, &doc.Nacionalidad, &doc.Codigo, &doc.RFC,
		&doc.CuentaINE, &doc.Comentarios, &doc.VigenciaInicio, &doc.VigenciaFin,
		&doc.FileName, &doc.ContentType, &doc.BlobRef, &doc.Content, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func collectDocuments(rows pgx.Rows) ([]documents.Document, error) {
	var out []documents.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
