package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/tenant"
)

const (
	// maxCodeAttempts bounds the retries on booking code collisions.
	maxCodeAttempts = 16
	dashboardStays  = 10
	dateLayout      = "2006-01-02"
	expiryLayout    = "2006-01-02T15:04"
)

// stayRepository is the subset of store.StayStore that StayService requires.
type stayRepository interface {
	Create(ctx context.Context, st *domain.Stay, guestIDs []int64) (*domain.Stay, error)
	GetByID(ctx context.Context, propertyID, id int64) (*domain.Stay, error)
	List(ctx context.Context, propertyID int64, limit int) ([]*domain.Stay, error)
	CountOpen(ctx context.Context, propertyID int64) (int, error)
	Update(ctx context.Context, st *domain.Stay) error
	Delete(ctx context.Context, propertyID, id int64) error
	LinkGuest(ctx context.Context, propertyID, stayID, guestID int64) error
	LinkDocument(ctx context.Context, propertyID, stayID, documentID int64) error
}

// codeRepository is the subset of store.CodeStore that StayService requires.
type codeRepository interface {
	Replace(ctx context.Context, stayID int64, code string, expiresAt *time.Time) (*domain.BookingCode, error)
	GetByStay(ctx context.Context, stayID int64) (*domain.BookingCode, error)
	DeleteByStay(ctx context.Context, stayID int64) error
}

type stayGuestLister interface {
	ListByStay(ctx context.Context, propertyID, stayID int64) ([]*domain.Guest, error)
	Count(ctx context.Context, propertyID int64) (int, error)
}

type stayDocumentLister interface {
	ListByStay(ctx context.Context, propertyID, stayID int64) ([]*domain.Document, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

// StayInput is the admin stay form. Dates use the HTML date input layout.
type StayInput struct {
	GuestIDs     []int64 `form:"guest_ids"`
	GuestCount   int     `form:"guest_count" validate:"gte=0,lte=20"`
	CheckInDate  string  `form:"check_in_date" validate:"required,datetime=2006-01-02"`
	CheckOutDate string  `form:"check_out_date" validate:"omitempty,datetime=2006-01-02"`
	PhoneNumber  string  `form:"phone_number" validate:"max=15"`
	Email        string  `form:"email" validate:"omitempty,email,max=254"`
	ComingFrom   string  `form:"coming_from" validate:"max=200"`
	Notes        string  `form:"notes" validate:"max=5000"`
	TermsAgreed  bool    `form:"terms_agreed"`
	FormFilled   bool    `form:"form_filled"`
}

// CodeInput carries the optional expiry of a new booking code, in the HTML
// datetime-local layout, read as wall time in the service's location.
type CodeInput struct {
	ExpiresAt string `form:"expires_at" validate:"omitempty,datetime=2006-01-02T15:04"`
}

// Dashboard summarises a property for its landing page.
type Dashboard struct {
	RecentStays []*domain.StayDetails
	TotalGuests int
	OpenStays   int
}

type StayService struct {
	stays     stayRepository
	codes     codeRepository
	guests    stayGuestLister
	documents stayDocumentLister
	generator codeGenerator
	baseURL   string
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

func NewStayService(
	stays stayRepository,
	codes codeRepository,
	guests stayGuestLister,
	documents stayDocumentLister,
	generator codeGenerator,
	publicBaseURL string,
	loc *time.Location,
	logger *slog.Logger,
) *StayService {
	if loc == nil {
		loc = time.UTC
	}
	return &StayService{
		stays:     stays,
		codes:     codes,
		guests:    guests,
		documents: documents,
		generator: generator,
		baseURL:   strings.TrimRight(publicBaseURL, "/"),
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
}

// parse validates in and converts it into stay fields for propertyID.
func (in StayInput) parse(propertyID int64) (*domain.Stay, error) {
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Email = strings.TrimSpace(in.Email)
	in.ComingFrom = strings.TrimSpace(in.ComingFrom)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	checkIn, err := time.Parse(dateLayout, in.CheckInDate)
	if err != nil {
		return nil, invalid("check_in_date", "must be a date")
	}
	var checkOut *time.Time
	if in.CheckOutDate != "" {
		t, err := time.Parse(dateLayout, in.CheckOutDate)
		if err != nil {
			return nil, invalid("check_out_date", "must be a date")
		}
		if t.Before(checkIn) {
			return nil, invalid("check_out_date", "must not be before check-in")
		}
		checkOut = &t
	}

	guestCount := in.GuestCount
	if guestCount == 0 {
		guestCount = max(1, min(len(in.GuestIDs), 20))
	}

	return &domain.Stay{
		PropertyID:   propertyID,
		GuestCount:   guestCount,
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
		PhoneNumber:  in.PhoneNumber,
		Email:        in.Email,
		ComingFrom:   in.ComingFrom,
		TermsAgreed:  in.TermsAgreed,
		FormFilled:   in.FormFilled,
		Notes:        in.Notes,
	}, nil
}

func (s *StayService) Create(ctx context.Context, userID int64, in StayInput) (*domain.StayDetails, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	st, err := in.parse(propertyID)
	if err != nil {
		return nil, err
	}
	if userID > 0 {
		st.CreatedBy = &userID
	}

	st, err = s.stays.Create(ctx, st, in.GuestIDs)
	if err != nil {
		return nil, err
	}

	s.logger.Info("stay created", "property_id", propertyID, "stay_id", st.ID)
	return s.details(ctx, st)
}

// List returns the property's stays with their details, latest check-in
// first. A limit of zero returns every stay.
func (s *StayService) List(ctx context.Context, limit int) ([]*domain.StayDetails, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	stays, err := s.stays.List(ctx, propertyID, limit)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.StayDetails, 0, len(stays))
	for _, st := range stays {
		d, err := s.details(ctx, st)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

func (s *StayService) Dashboard(ctx context.Context) (*Dashboard, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.List(ctx, dashboardStays)
	if err != nil {
		return nil, err
	}
	guests, err := s.guests.Count(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	open, err := s.stays.CountOpen(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{RecentStays: recent, TotalGuests: guests, OpenStays: open}, nil
}

func (s *StayService) Get(ctx context.Context, id int64) (*domain.StayDetails, error) {
	st, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, st)
}

func (s *StayService) get(ctx context.Context, id int64) (*domain.Stay, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.stays.GetByID(ctx, propertyID, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("stay %d: %w", id, domain.ErrNotFound)
	}
	return st, nil
}

func (s *StayService) details(ctx context.Context, st *domain.Stay) (*domain.StayDetails, error) {
	guests, err := s.guests.ListByStay(ctx, st.PropertyID, st.ID)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByStay(ctx, st.PropertyID, st.ID)
	if err != nil {
		return nil, err
	}
	code, err := s.codes.GetByStay(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	return &domain.StayDetails{Stay: st, Guests: guests, Documents: docs, Code: code}, nil
}

// Update edits the admin fields of a stay. Guest form state and guest links
// are not changed.
func (s *StayService) Update(ctx context.Context, id int64, in StayInput) (*domain.StayDetails, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	st, err := in.parse(current.PropertyID)
	if err != nil {
		return nil, err
	}
	st.ID = current.ID
	if in.GuestCount == 0 {
		st.GuestCount = current.GuestCount
	}

	if err := s.stays.Update(ctx, st); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *StayService) Delete(ctx context.Context, id int64) error {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.stays.Delete(ctx, propertyID, id); err != nil {
		return err
	}
	s.logger.Info("stay deleted", "property_id", propertyID, "stay_id", id)
	return nil
}

func (s *StayService) LinkGuest(ctx context.Context, stayID, guestID int64) error {
	st, err := s.get(ctx, stayID)
	if err != nil {
		return err
	}
	return s.stays.LinkGuest(ctx, st.PropertyID, st.ID, guestID)
}

func (s *StayService) LinkDocument(ctx context.Context, stayID, documentID int64) error {
	st, err := s.get(ctx, stayID)
	if err != nil {
		return err
	}
	return s.stays.LinkDocument(ctx, st.PropertyID, st.ID, documentID)
}

// IssueCode mints a fresh booking code for the stay, replacing any previous
// one. Collisions with existing codes are retried with a new code; running
// out of attempts returns domain.ErrCodeSpaceExhausted.
func (s *StayService) IssueCode(ctx context.Context, stayID int64, in CodeInput) (*domain.BookingCode, error) {
	st, err := s.get(ctx, stayID)
	if err != nil {
		return nil, err
	}

	in.ExpiresAt = strings.TrimSpace(in.ExpiresAt)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	var expiresAt *time.Time
	if in.ExpiresAt != "" {
		t, err := time.ParseInLocation(expiryLayout, in.ExpiresAt, s.loc)
		if err != nil {
			return nil, invalid("expires_at", "must be a date and time")
		}
		if !t.After(s.now()) {
			return nil, invalid("expires_at", "must be in the future")
		}
		t = t.UTC()
		expiresAt = &t
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.generator.Generate()
		if err != nil {
			return nil, err
		}

		bc, err := s.codes.Replace(ctx, st.ID, code, expiresAt)
		if errors.Is(err, domain.ErrDuplicate) {
			s.logger.Warn("booking code collision", "stay_id", st.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("booking code issued", "property_id", st.PropertyID, "stay_id", st.ID, "code_id", bc.ID)
		return bc, nil
	}

	s.logger.Error("booking code space exhausted", "stay_id", st.ID, "attempts", maxCodeAttempts)
	return nil, domain.ErrCodeSpaceExhausted
}

func (s *StayService) RevokeCode(ctx context.Context, stayID int64) error {
	st, err := s.get(ctx, stayID)
	if err != nil {
		return err
	}
	if err := s.codes.DeleteByStay(ctx, st.ID); err != nil {
		return err
	}
	s.logger.Info("booking code revoked", "property_id", st.PropertyID, "stay_id", st.ID)
	return nil
}

// PublicURL returns the absolute guest link for a code.
func (s *StayService) PublicURL(c *domain.BookingCode) string {
	return s.baseURL + c.URL()
}

// CodeQR renders the stay's guest link as a PNG QR code of size pixels.
func (s *StayService) CodeQR(ctx context.Context, stayID int64, size int) ([]byte, error) {
	st, err := s.get(ctx, stayID)
	if err != nil {
		return nil, err
	}
	c, err := s.codes.GetByStay(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("booking code for stay %d: %w", st.ID, domain.ErrNotFound)
	}

	qr, err := qrcode.New(s.PublicURL(c), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to build qr code: %w", err)
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(size)); err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return buf.Bytes(), nil
}
