// Package catalog tracks ingested documents in the metadata database.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the document is not in the catalog.
var ErrNotFound = errors.New("document not found")

// Document is one catalog row describing an ingested document.
type Document struct {
	DocumentID  string    `json:"document_id"`
	OwnerID     string    `json:"-"`
	Filename    string    `json:"filename"`
	TotalChunks int       `json:"total_chunks"`
	TotalPages  int       `json:"total_pages"`
	OCRUsed     bool      `json:"ocr_used"`
	OCRPages    int       `json:"ocr_pages"`
	UploadDate  time.Time `json:"upload_date"`
}

// Catalog stores per-document ingest records keyed by document id. The
// vector index holds the chunks; the catalog is the cheap listing surface.
type Catalog struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	document_id  TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	filename     TEXT NOT NULL,
	total_chunks INTEGER NOT NULL,
	total_pages  INTEGER NOT NULL,
	ocr_used     INTEGER NOT NULL,
	ocr_pages    INTEGER NOT NULL,
	upload_date  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
`

// New creates a Catalog over the given database, creating the schema if
// needed.
func New(ctx context.Context, db *sql.DB) (*Catalog, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Record inserts or replaces a document entry.
func (c *Catalog) Record(ctx context.Context, doc Document) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, owner_id, filename, total_chunks, total_pages, ocr_used, ocr_pages, upload_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			owner_id = excluded.owner_id,
			filename = excluded.filename,
			total_chunks = excluded.total_chunks,
			total_pages = excluded.total_pages,
			ocr_used = excluded.ocr_used,
			ocr_pages = excluded.ocr_pages,
			upload_date = excluded.upload_date`,
		doc.DocumentID, doc.OwnerID, doc.Filename, doc.TotalChunks, doc.TotalPages,
		boolToInt(doc.OCRUsed), doc.OCRPages, doc.UploadDate.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording document %s: %w", doc.DocumentID, err)
	}
	return nil
}

// Get returns one document scoped to the owner.
func (c *Catalog) Get(ctx context.Context, ownerID, documentID string) (Document, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT document_id, owner_id, filename, total_chunks, total_pages, ocr_used, ocr_pages, upload_date
		FROM documents WHERE owner_id = ? AND document_id = ?`, ownerID, documentID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("loading document %s: %w", documentID, err)
	}
	return doc, nil
}

// List returns the owner's documents, newest first.
func (c *Catalog) List(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT document_id, owner_id, filename, total_chunks, total_pages, ocr_used, ocr_pages, upload_date
		FROM documents WHERE owner_id = ? ORDER BY upload_date DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes a document entry scoped to the owner and reports whether
// a row existed.
func (c *Catalog) Delete(ctx context.Context, ownerID, documentID string) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM documents WHERE owner_id = ? AND document_id = ?`, ownerID, documentID)
	if err != nil {
		return false, fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (Document, error) {
	var doc Document
	var ocrUsed int
	var uploaded string
	err := row.Scan(&doc.DocumentID, &doc.OwnerID, &doc.Filename, &doc.TotalChunks,
		&doc.TotalPages, &ocrUsed, &doc.OCRPages, &uploaded)
	if err != nil {
		return Document{}, err
	}
	doc.OCRUsed = ocrUsed != 0
	if ts, err := time.Parse(time.RFC3339Nano, uploaded); err == nil {
		doc.UploadDate = ts
	}
	return doc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
