package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/staydesk/internal/domain"
)

type PropertyStore struct {
	db *sql.DB
}

func NewPropertyStore(db *sql.DB) *PropertyStore {
	return &PropertyStore{db: db}
}

const propertyColumns = `id, name, slug, address, location_url, phone, email, created_at`

func scanProperty(row interface{ Scan(...any) error }) (*domain.Property, error) {
	p := &domain.Property{}
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Address, &p.LocationURL, &p.Phone, &p.Email, &p.CreatedAt)
	return p, err
}

// Create inserts a property. A duplicate name or slug returns
// domain.ErrDuplicate.
func (s *PropertyStore) Create(ctx context.Context, p *domain.Property) (*domain.Property, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (name, slug, address, location_url, phone, email) VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, p.Slug, p.Address, p.LocationURL, p.Phone, p.Email)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("property %q: %w", p.Name, domain.ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *PropertyStore) GetByID(ctx context.Context, id int64) (*domain.Property, error) {
	p, err := scanProperty(s.db.QueryRowContext(ctx, `
		SELECT `+propertyColumns+` FROM properties WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return p, nil
}

// ListByMember returns the properties userID belongs to, ordered by name.
func (s *PropertyStore) ListByMember(ctx context.Context, userID int64) ([]*domain.Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.slug, p.address, p.location_url, p.phone, p.email, p.created_at
		FROM properties p
		JOIN memberships m ON m.property_id = p.id
		WHERE m.user_id = ?
		ORDER BY p.name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var properties []*domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating properties: %w", err)
	}

	return properties, nil
}

func (s *PropertyStore) Update(ctx context.Context, p *domain.Property) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties SET name = ?, slug = ?, address = ?, location_url = ?, phone = ?, email = ?
		WHERE id = ?
	`, p.Name, p.Slug, p.Address, p.LocationURL, p.Phone, p.Email, p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("property %q: %w", p.Name, domain.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to update property: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("property %d: %w", p.ID, domain.ErrNotFound)
	}

	return nil
}

func (s *PropertyStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM properties WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete property: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("property %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// AddMember grants userID access to propertyID. Adding an existing member
// is a no-op.
func (s *PropertyStore) AddMember(ctx context.Context, propertyID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (user_id, property_id) VALUES (?, ?)
		ON CONFLICT (user_id, property_id) DO NOTHING
	`, userID, propertyID)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (s *PropertyStore) IsMember(ctx context.Context, propertyID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memberships WHERE user_id = ? AND property_id = ?
	`, userID, propertyID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return n > 0, nil
}

// SlugTaken reports whether another property already uses slug.
func (s *PropertyStore) SlugTaken(ctx context.Context, slug string, exceptID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM properties WHERE slug = ? AND id != ?
	`, slug, exceptID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return n > 0, nil
}
