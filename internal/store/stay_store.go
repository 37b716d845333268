package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/staydesk/internal/domain"
)

type StayStore struct {
	db *sql.DB
}

func NewStayStore(db *sql.DB) *StayStore {
	return &StayStore{db: db}
}

const stayColumns = `id, property_id, guest_count, check_in_date, check_out_date, phone_number, email,
	coming_from, terms_agreed, terms_agreed_at, form_filled, form_filled_at, notes,
	created_at, updated_at, created_by`

func scanStay(row interface{ Scan(...any) error }) (*domain.Stay, error) {
	st := &domain.Stay{}
	err := row.Scan(&st.ID, &st.PropertyID, &st.GuestCount, &st.CheckInDate, &st.CheckOutDate,
		&st.PhoneNumber, &st.Email, &st.ComingFrom, &st.TermsAgreed, &st.TermsAgreedAt,
		&st.FormFilled, &st.FormFilledAt, &st.Notes, &st.CreatedAt, &st.UpdatedAt, &st.CreatedBy)
	return st, err
}

// Create inserts st and links guestIDs to it. Guest IDs that do not belong
// to the stay's property are ignored.
func (s *StayStore) Create(ctx context.Context, st *domain.Stay, guestIDs []int64) (*domain.Stay, error) {
	now := time.Now().UTC()
	var termsAt, filledAt *time.Time
	if st.TermsAgreed {
		termsAt = &now
	}
	if st.FormFilled {
		filledAt = &now
	}

	var id int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO stays (property_id, guest_count, check_in_date, check_out_date, phone_number, email,
				coming_from, terms_agreed, terms_agreed_at, form_filled, form_filled_at, notes,
				created_at, updated_at, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, st.PropertyID, st.GuestCount, st.CheckInDate, st.CheckOutDate, st.PhoneNumber, st.Email,
			st.ComingFrom, st.TermsAgreed, termsAt, st.FormFilled, filledAt, st.Notes,
			now, now, st.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to create stay: %w", err)
		}

		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		for _, guestID := range guestIDs {
			if err := linkGuest(ctx, tx, st.PropertyID, id, guestID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, st.PropertyID, id)
}

func (s *StayStore) GetByID(ctx context.Context, propertyID, id int64) (*domain.Stay, error) {
	st, err := scanStay(s.db.QueryRowContext(ctx, `
		SELECT `+stayColumns+` FROM stays WHERE id = ? AND property_id = ?
	`, id, propertyID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stay: %w", err)
	}
	return st, nil
}

// List returns the property's stays, latest check-in first. A limit of zero
// returns all of them.
func (s *StayStore) List(ctx context.Context, propertyID int64, limit int) ([]*domain.Stay, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stayColumns+` FROM stays
		WHERE property_id = ?
		ORDER BY check_in_date DESC, id DESC
		LIMIT ?
	`, propertyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stays: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var stays []*domain.Stay
	for rows.Next() {
		st, err := scanStay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stay: %w", err)
		}
		stays = append(stays, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stays: %w", err)
	}

	return stays, nil
}

// CountOpen counts stays without a check-out date.
func (s *StayStore) CountOpen(ctx context.Context, propertyID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM stays WHERE property_id = ? AND check_out_date IS NULL
	`, propertyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open stays: %w", err)
	}
	return n, nil
}

// Update writes the admin-editable fields of st. The form flags are owned by
// the guest submission flow and are left untouched.
func (s *StayStore) Update(ctx context.Context, st *domain.Stay) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE stays SET guest_count = ?, check_in_date = ?, check_out_date = ?, phone_number = ?,
			email = ?, coming_from = ?, notes = ?, updated_at = ?
		WHERE id = ? AND property_id = ?
	`, st.GuestCount, st.CheckInDate, st.CheckOutDate, st.PhoneNumber,
		st.Email, st.ComingFrom, st.Notes, time.Now().UTC(), st.ID, st.PropertyID)
	if err != nil {
		return fmt.Errorf("failed to update stay: %w", err)
	}
	return requireOneRow(result, "stay", st.ID)
}

func (s *StayStore) Delete(ctx context.Context, propertyID, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM stays WHERE id = ? AND property_id = ?
	`, id, propertyID)
	if err != nil {
		return fmt.Errorf("failed to delete stay: %w", err)
	}
	return requireOneRow(result, "stay", id)
}

// LinkGuest adds a guest of the same property to the stay.
func (s *StayStore) LinkGuest(ctx context.Context, propertyID, stayID, guestID int64) error {
	return linkGuest(ctx, s.db, propertyID, stayID, guestID)
}

func linkGuest(ctx context.Context, q querier, propertyID, stayID, guestID int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO stay_guests (stay_id, guest_id)
		SELECT s.id, g.id FROM stays s, guests g
		WHERE s.id = ? AND g.id = ? AND s.property_id = ? AND g.property_id = ?
		ON CONFLICT (stay_id, guest_id) DO NOTHING
	`, stayID, guestID, propertyID, propertyID)
	if err != nil {
		return fmt.Errorf("failed to link guest: %w", err)
	}
	return nil
}

// LinkDocument attaches a document of the same property to the stay.
func (s *StayStore) LinkDocument(ctx context.Context, propertyID, stayID, documentID int64) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO stay_documents (stay_id, document_id)
		SELECT s.id, d.id FROM stays s, documents d
		WHERE s.id = ? AND d.id = ? AND s.property_id = ? AND d.property_id = ?
		ON CONFLICT (stay_id, document_id) DO NOTHING
	`, stayID, documentID, propertyID, propertyID)
	if err != nil {
		return fmt.Errorf("failed to link document: %w", err)
	}

	// Zero rows means either a foreign id or an existing link; only the
	// former is an error.
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM stay_documents sd JOIN stays s ON s.id = sd.stay_id
			WHERE sd.stay_id = ? AND sd.document_id = ? AND s.property_id = ?
		`, stayID, documentID, propertyID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check document link: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("stay %d or document %d: %w", stayID, documentID, domain.ErrNotFound)
		}
	}
	return nil
}

// SubmitGuestForm records a guest's self-service submission. It succeeds at
// most once per stay; later calls return domain.ErrAlreadySubmitted and
// change nothing.
func (s *StayStore) SubmitGuestForm(ctx context.Context, propertyID, stayID int64, sub domain.GuestSubmission) error {
	now := time.Now().UTC()
	var termsAt *time.Time
	if sub.TermsAgreed {
		termsAt = &now
	}

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE stays SET guest_count = ?, phone_number = ?, email = ?, coming_from = ?,
				terms_agreed = ?, terms_agreed_at = ?, form_filled = 1, form_filled_at = ?, updated_at = ?
			WHERE id = ? AND property_id = ? AND form_filled = 0
		`, sub.GuestCount, sub.PhoneNumber, sub.Email, sub.ComingFrom,
			sub.TermsAgreed, termsAt, now, now, stayID, propertyID)
		if err != nil {
			return fmt.Errorf("failed to submit guest form: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return domain.ErrAlreadySubmitted
		}

		return replaceGuests(ctx, tx, propertyID, stayID, sub.GuestNames)
	})
}

// replaceGuests sets the stay's guest list to names, reusing guests already
// linked under the same name.
func replaceGuests(ctx context.Context, tx *sql.Tx, propertyID, stayID int64, names []string) error {
	existing, err := listGuestsByStay(ctx, tx, propertyID, stayID)
	if err != nil {
		return err
	}
	byName := make(map[string]*domain.Guest, len(existing))
	for _, g := range existing {
		byName[strings.ToLower(g.Name)] = g
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM stay_guests WHERE stay_id = ?`, stayID); err != nil {
		return fmt.Errorf("failed to clear stay guests: %w", err)
	}

	for _, name := range names {
		g, ok := byName[strings.ToLower(name)]
		if !ok {
			g, err = createGuest(ctx, tx, propertyID, name)
			if err != nil {
				return err
			}
			byName[strings.ToLower(name)] = g
		}
		if err := linkGuest(ctx, tx, propertyID, stayID, g.ID); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing when it returns nil and
// rolling back otherwise.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			slog.Error("failed to roll back transaction", "error", rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
