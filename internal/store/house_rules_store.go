package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vbonduro/staydesk/internal/domain"
)

type HouseRulesStore struct {
	db *sql.DB
}

func NewHouseRulesStore(db *sql.DB) *HouseRulesStore {
	return &HouseRulesStore{db: db}
}

func (s *HouseRulesStore) GetByProperty(ctx context.Context, propertyID int64) (*domain.HouseRules, error) {
	hr := &domain.HouseRules{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, title, content, version, updated_at, updated_by
		FROM house_rules WHERE property_id = ?
	`, propertyID).Scan(&hr.ID, &hr.PropertyID, &hr.Title, &hr.Content, &hr.Version, &hr.UpdatedAt, &hr.UpdatedBy)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get house rules: %w", err)
	}

	return hr, nil
}

// Ensure returns the property's rules, inserting the given default first if
// the property has none. The insert relies on the unique property_id so
// concurrent callers converge on a single row.
func (s *HouseRulesStore) Ensure(ctx context.Context, propertyID int64, title, content string) (*domain.HouseRules, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO house_rules (property_id, title, content, version) VALUES (?, ?, ?, 1)
		ON CONFLICT (property_id) DO NOTHING
	`, propertyID, title, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create default house rules: %w", err)
	}

	hr, err := s.GetByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if hr == nil {
		return nil, fmt.Errorf("house rules for property %d: %w", propertyID, domain.ErrNotFound)
	}
	return hr, nil
}

// Update replaces title and content and bumps the version by one.
func (s *HouseRulesStore) Update(ctx context.Context, propertyID int64, title, content string, updatedBy *int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE house_rules
		SET title = ?, content = ?, version = version + 1, updated_at = ?, updated_by = ?
		WHERE property_id = ?
	`, title, content, time.Now().UTC(), updatedBy, propertyID)
	if err != nil {
		return fmt.Errorf("failed to update house rules: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("house rules for property %d: %w", propertyID, domain.ErrNotFound)
	}

	return nil
}
