package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vbonduro/staydesk/internal/domain"
)

type GuestStore struct {
	db *sql.DB
}

func NewGuestStore(db *sql.DB) *GuestStore {
	return &GuestStore{db: db}
}

func (s *GuestStore) Create(ctx context.Context, propertyID int64, name string) (*domain.Guest, error) {
	return createGuest(ctx, s.db, propertyID, name)
}

func createGuest(ctx context.Context, q querier, propertyID int64, name string) (*domain.Guest, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO guests (property_id, name) VALUES (?, ?)
	`, propertyID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create guest: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &domain.Guest{ID: id, PropertyID: propertyID, Name: name}, nil
}

func (s *GuestStore) GetByID(ctx context.Context, propertyID, id int64) (*domain.Guest, error) {
	g := &domain.Guest{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, name FROM guests WHERE id = ? AND property_id = ?
	`, id, propertyID).Scan(&g.ID, &g.PropertyID, &g.Name)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}

	return g, nil
}

// List returns the property's guests, newest first.
func (s *GuestStore) List(ctx context.Context, propertyID int64) ([]*domain.Guest, error) {
	return s.query(ctx, `
		SELECT id, property_id, name FROM guests WHERE property_id = ? ORDER BY id DESC
	`, propertyID)
}

// Search matches guest names case-insensitively.
func (s *GuestStore) Search(ctx context.Context, propertyID int64, query string, limit int) ([]*domain.Guest, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	return s.query(ctx, `
		SELECT id, property_id, name FROM guests
		WHERE property_id = ? AND LOWER(name) LIKE ?
		ORDER BY name ASC
		LIMIT ?
	`, propertyID, pattern, limit)
}

func (s *GuestStore) ListByStay(ctx context.Context, propertyID, stayID int64) ([]*domain.Guest, error) {
	return listGuestsByStay(ctx, s.db, propertyID, stayID)
}

func listGuestsByStay(ctx context.Context, q querier, propertyID, stayID int64) ([]*domain.Guest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT g.id, g.property_id, g.name FROM guests g
		JOIN stay_guests sg ON sg.guest_id = g.id
		WHERE sg.stay_id = ? AND g.property_id = ?
		ORDER BY g.id ASC
	`, stayID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guests: %w", err)
	}
	return scanGuests(rows)
}

func (s *GuestStore) query(ctx context.Context, query string, args ...any) ([]*domain.Guest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list guests: %w", err)
	}
	return scanGuests(rows)
}

func scanGuests(rows *sql.Rows) ([]*domain.Guest, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var guests []*domain.Guest
	for rows.Next() {
		g := &domain.Guest{}
		if err := rows.Scan(&g.ID, &g.PropertyID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		guests = append(guests, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guests: %w", err)
	}

	return guests, nil
}

func (s *GuestStore) Count(ctx context.Context, propertyID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM guests WHERE property_id = ?
	`, propertyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count guests: %w", err)
	}
	return n, nil
}

func (s *GuestStore) Rename(ctx context.Context, propertyID, id int64, name string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE guests SET name = ? WHERE id = ? AND property_id = ?
	`, name, id, propertyID)
	if err != nil {
		return fmt.Errorf("failed to rename guest: %w", err)
	}
	return requireOneRow(result, "guest", id)
}

func (s *GuestStore) Delete(ctx context.Context, propertyID, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM guests WHERE id = ? AND property_id = ?
	`, id, propertyID)
	if err != nil {
		return fmt.Errorf("failed to delete guest: %w", err)
	}
	return requireOneRow(result, "guest", id)
}

// requireOneRow turns a zero-row write into domain.ErrNotFound.
func requireOneRow(result sql.Result, entity string, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
	}

	return nil
}
