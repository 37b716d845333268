package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vbonduro/staydesk/internal/domain"
)

type CodeStore struct {
	db *sql.DB
}

func NewCodeStore(db *sql.DB) *CodeStore {
	return &CodeStore{db: db}
}

const codeColumns = `id, code, stay_id, created_at, expires_at, accessed_count, last_accessed`

func scanCode(row interface{ Scan(...any) error }) (*domain.BookingCode, error) {
	c := &domain.BookingCode{}
	err := row.Scan(&c.ID, &c.Code, &c.StayID, &c.CreatedAt, &c.ExpiresAt, &c.AccessedCount, &c.LastAccessed)
	return c, err
}

// Replace stores code as the stay's only booking code. Any previous code is
// deleted with its counters and the new code gets a fresh row, so a code's
// access count never goes backwards. A code already used by another stay
// returns domain.ErrDuplicate and leaves the previous code in place.
func (s *CodeStore) Replace(ctx context.Context, stayID int64, code string, expiresAt *time.Time) (*domain.BookingCode, error) {
	var c *domain.BookingCode
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM booking_codes WHERE stay_id = ?`, stayID); err != nil {
			return fmt.Errorf("failed to delete booking code: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO booking_codes (code, stay_id, created_at, expires_at) VALUES (?, ?, ?, ?)
		`, code, stayID, time.Now().UTC(), expiresAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("booking code %q: %w", code, domain.ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("failed to create booking code: %w", err)
		}

		c, err = scanCode(tx.QueryRowContext(ctx, `
			SELECT `+codeColumns+` FROM booking_codes WHERE stay_id = ?
		`, stayID))
		if err != nil {
			return fmt.Errorf("failed to get booking code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CodeStore) GetByCode(ctx context.Context, code string) (*domain.BookingCode, error) {
	c, err := scanCode(s.db.QueryRowContext(ctx, `
		SELECT `+codeColumns+` FROM booking_codes WHERE code = ?
	`, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking code: %w", err)
	}
	return c, nil
}

func (s *CodeStore) GetByStay(ctx context.Context, stayID int64) (*domain.BookingCode, error) {
	c, err := scanCode(s.db.QueryRowContext(ctx, `
		SELECT `+codeColumns+` FROM booking_codes WHERE stay_id = ?
	`, stayID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking code: %w", err)
	}
	return c, nil
}

// RecordAccess increments the access counter in place and stamps the
// access time.
func (s *CodeStore) RecordAccess(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE booking_codes SET accessed_count = accessed_count + 1, last_accessed = ? WHERE id = ?
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}
	return requireOneRow(result, "booking code", id)
}

func (s *CodeStore) DeleteByStay(ctx context.Context, stayID int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM booking_codes WHERE stay_id = ?
	`, stayID)
	if err != nil {
		return fmt.Errorf("failed to delete booking code: %w", err)
	}
	return requireOneRow(result, "booking code for stay", stayID)
}

// Lookup finds a booking code together with the property its stay belongs
// to. A missing code returns (nil, 0, nil).
func (s *CodeStore) Lookup(ctx context.Context, code string) (*domain.BookingCode, int64, error) {
	c := &domain.BookingCode{}
	var propertyID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT bc.id, bc.code, bc.stay_id, bc.created_at, bc.expires_at, bc.accessed_count, bc.last_accessed,
			s.property_id
		FROM booking_codes bc JOIN stays s ON s.id = bc.stay_id
		WHERE bc.code = ?
	`, code).Scan(&c.ID, &c.Code, &c.StayID, &c.CreatedAt, &c.ExpiresAt, &c.AccessedCount, &c.LastAccessed, &propertyID)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to look up booking code: %w", err)
	}
	return c, propertyID, nil
}
