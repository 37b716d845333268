package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/staydesk/internal/domain"
)

type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `d.id, d.property_id, d.name, d.document_type, d.storage_key, d.mime_type,
	d.size_bytes, d.uploaded_at, d.uploaded_by, d.notes`

func scanDocument(row interface{ Scan(...any) error }) (*domain.Document, error) {
	d := &domain.Document{}
	err := row.Scan(&d.ID, &d.PropertyID, &d.Name, &d.DocumentType, &d.StorageKey, &d.MimeType,
		&d.SizeBytes, &d.UploadedAt, &d.UploadedBy, &d.Notes)
	return d, err
}

func (s *DocumentStore) Create(ctx context.Context, d *domain.Document) (*domain.Document, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (property_id, name, document_type, storage_key, mime_type, size_bytes, uploaded_by, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.PropertyID, d.Name, string(d.DocumentType), d.StorageKey, d.MimeType, d.SizeBytes, d.UploadedBy, d.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, d.PropertyID, id)
}

func (s *DocumentStore) GetByID(ctx context.Context, propertyID, id int64) (*domain.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents d WHERE d.id = ? AND d.property_id = ?
	`, id, propertyID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

// List returns the property's documents, latest upload first.
func (s *DocumentStore) List(ctx context.Context, propertyID int64) ([]*domain.Document, error) {
	return s.query(ctx, `
		SELECT `+documentColumns+` FROM documents d
		WHERE d.property_id = ?
		ORDER BY d.uploaded_at DESC, d.id DESC
	`, propertyID)
}

func (s *DocumentStore) ListByStay(ctx context.Context, propertyID, stayID int64) ([]*domain.Document, error) {
	return s.query(ctx, `
		SELECT `+documentColumns+` FROM documents d
		JOIN stay_documents sd ON sd.document_id = d.id
		WHERE sd.stay_id = ? AND d.property_id = ?
		ORDER BY d.uploaded_at DESC, d.id DESC
	`, stayID, propertyID)
}

func (s *DocumentStore) query(ctx context.Context, query string, args ...any) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// Delete removes the document row and returns it so the caller can remove
// the stored file.
func (s *DocumentStore) Delete(ctx context.Context, propertyID, id int64) (*domain.Document, error) {
	d, err := s.GetByID(ctx, propertyID, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE id = ? AND property_id = ?
	`, id, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete document: %w", err)
	}
	if err := requireOneRow(result, "document", id); err != nil {
		return nil, err
	}
	return d, nil
}

// StorageKeysByProperty lists every stored file of a property, used to
// clean up blobs when the property is deleted.
func (s *DocumentStore) StorageKeysByProperty(ctx context.Context, propertyID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT storage_key FROM documents WHERE property_id = ?
	`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage keys: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan storage key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating storage keys: %w", err)
	}
	return keys, nil
}
