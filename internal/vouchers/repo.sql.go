package vouchers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keystone-erp/keystone-erp/internal/lifecycle"
)

// Repository reads document headers outside coordinated transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DocumentsTxRepository exposes transactional document operations.
type DocumentsTxRepository interface {
	Insert(ctx context.Context, doc *Document) error
	GetForUpdate(ctx context.Context, doctype, name string) (Document, error)
	UpdateLifecycle(ctx context.Context, doc Document) error
}

type documentsTxRepository struct {
	tx pgx.Tx
}

// NewDocumentsTxRepository wraps an existing transaction for document access.
func NewDocumentsTxRepository(tx pgx.Tx) DocumentsTxRepository {
	return &documentsTxRepository{tx: tx}
}

const documentColumns = `id, doctype, name, company_id, posting_date, status, docstatus,
submitted_by, submitted_at, cancelled_by, cancelled_at, created_at, updated_at`

func (r *documentsTxRepository) Insert(ctx context.Context, doc *Document) error {
	return r.tx.QueryRow(ctx, `INSERT INTO documents
(doctype, name, company_id, posting_date, status, docstatus, submitted_by, submitted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id, created_at, updated_at`,
		doc.Doctype, doc.Name, doc.CompanyID, doc.PostingDate, doc.Status, int(doc.Docstatus),
		doc.SubmittedBy, doc.SubmittedAt).
		Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (r *documentsTxRepository) GetForUpdate(ctx context.Context, doctype, name string) (Document, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+documentColumns+`
FROM documents WHERE doctype=$1 AND name=$2 FOR UPDATE`, doctype, name)
	return scanDocument(row)
}

func (r *documentsTxRepository) UpdateLifecycle(ctx context.Context, doc Document) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE documents
SET status=$3, docstatus=$4, cancelled_by=$5, cancelled_at=$6, updated_at=NOW()
WHERE doctype=$1 AND name=$2`,
		doc.Doctype, doc.Name, doc.Status, int(doc.Docstatus), doc.CancelledBy, doc.CancelledAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Get loads one document header.
func (r *Repository) Get(ctx context.Context, doctype, name string) (Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+`
FROM documents WHERE doctype=$1 AND name=$2`, doctype, name)
	return scanDocument(row)
}

// List returns document headers newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, doctype string, status *lifecycle.DocStatus) ([]Document, error) {
	var statusArg *int
	if status != nil {
		v := int(*status)
		statusArg = &v
	}
	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+`
FROM documents
WHERE ($1::text IS NULL OR doctype=$1) AND ($2::int IS NULL OR docstatus=$2)
ORDER BY created_at DESC, id DESC`, nullStr(doctype), statusArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var docstatus int
	err := row.Scan(&d.ID, &d.Doctype, &d.Name, &d.CompanyID, &d.PostingDate, &d.Status, &docstatus,
		&d.SubmittedBy, &d.SubmittedAt, &d.CancelledBy, &d.CancelledAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, err
	}
	d.Docstatus = lifecycle.DocStatus(docstatus)
	return d, nil
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
