package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/tenant"
)

// CodeState is what a booking code resolves to on the public form.
type CodeState int

const (
	CodeUnknown CodeState = iota
	CodeExpired
	CodeActiveUnfilled
	CodeActiveFilled
)

func (s CodeState) String() string {
	switch s {
	case CodeExpired:
		return "expired"
	case CodeActiveUnfilled:
		return "active-unfilled"
	case CodeActiveFilled:
		return "active-filled"
	default:
		return "unknown"
	}
}

// publicCodeRepository is the subset of store.CodeStore that PublicService requires.
type publicCodeRepository interface {
	Lookup(ctx context.Context, code string) (*domain.BookingCode, int64, error)
	RecordAccess(ctx context.Context, id int64, at time.Time) error
}

// publicStayRepository is the subset of store.StayStore that PublicService requires.
type publicStayRepository interface {
	GetByID(ctx context.Context, propertyID, id int64) (*domain.Stay, error)
	SubmitGuestForm(ctx context.Context, propertyID, stayID int64, sub domain.GuestSubmission) error
}

type publicGuestLister interface {
	ListByStay(ctx context.Context, propertyID, stayID int64) ([]*domain.Guest, error)
}

type propertyGetter interface {
	GetByID(ctx context.Context, id int64) (*domain.Property, error)
}

type rulesProvider interface {
	Get(ctx context.Context) (*domain.HouseRules, error)
}

// GuestFormInput is the public guest self-service form.
type GuestFormInput struct {
	GuestNames  []string `form:"guest_names" validate:"min=1,max=20,dive,required,max=200"`
	GuestCount  int      `form:"guest_count" validate:"gte=0,lte=20"`
	PhoneNumber string   `form:"phone_number" validate:"max=15"`
	Email       string   `form:"email" validate:"omitempty,email,max=254"`
	ComingFrom  string   `form:"coming_from" validate:"max=200"`
	TermsAgreed bool     `form:"terms_agreed" validate:"eq=true"`
}

func (in *GuestFormInput) normalize() {
	names := make([]string, 0, len(in.GuestNames))
	for _, n := range in.GuestNames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	in.GuestNames = names
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Email = strings.TrimSpace(in.Email)
	in.ComingFrom = strings.TrimSpace(in.ComingFrom)
}

// Redemption is everything the public form needs to render a code.
// Property, Stay, Guests and Rules are only set for active codes.
type Redemption struct {
	State    CodeState
	Code     *domain.BookingCode
	Property *domain.Property
	Stay     *domain.Stay
	Guests   []*domain.Guest
	Rules    *domain.HouseRules
}

type PublicService struct {
	codes      publicCodeRepository
	stays      publicStayRepository
	guests     publicGuestLister
	properties propertyGetter
	rules      rulesProvider
	now        func() time.Time
	logger     *slog.Logger
}

func NewPublicService(
	codes publicCodeRepository,
	stays publicStayRepository,
	guests publicGuestLister,
	properties propertyGetter,
	rules rulesProvider,
	logger *slog.Logger,
) *PublicService {
	return &PublicService{
		codes:      codes,
		stays:      stays,
		guests:     guests,
		properties: properties,
		rules:      rules,
		now:        time.Now,
		logger:     logger,
	}
}

// View resolves code for a guest opening the form. Every view of an
// unexpired code is counted; unknown and expired codes are not.
func (s *PublicService) View(ctx context.Context, code string) (*Redemption, error) {
	r, ctx, err := s.resolve(ctx, code)
	if err != nil || r.State == CodeUnknown || r.State == CodeExpired {
		return r, err
	}

	now := s.now()
	if err := s.codes.RecordAccess(ctx, r.Code.ID, now); err != nil {
		return nil, err
	}
	r.Code.AccessedCount++
	r.Code.LastAccessed = &now

	if err := s.load(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve classifies code and loads its booking without counting a view.
func (s *PublicService) Resolve(ctx context.Context, code string) (*Redemption, error) {
	r, ctx, err := s.resolve(ctx, code)
	if err != nil || r.State == CodeUnknown || r.State == CodeExpired {
		return r, err
	}
	if err := s.load(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Submit stores a guest's form for code. It returns domain.ErrNotFound for
// unknown codes, domain.ErrCodeExpired for expired ones and
// domain.ErrAlreadySubmitted once the form has been filled. The returned
// Redemption is set whenever the code exists so the caller can re-render.
func (s *PublicService) Submit(ctx context.Context, code string, in GuestFormInput) (*Redemption, error) {
	r, ctx, err := s.resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	switch r.State {
	case CodeUnknown:
		return r, fmt.Errorf("booking code: %w", domain.ErrNotFound)
	case CodeExpired:
		return r, domain.ErrCodeExpired
	}

	if err := s.load(ctx, r); err != nil {
		return nil, err
	}
	if r.State == CodeActiveFilled {
		return r, domain.ErrAlreadySubmitted
	}

	in.normalize()
	if err := validateStruct(in); err != nil {
		return r, err
	}

	guestCount := in.GuestCount
	if guestCount == 0 {
		guestCount = len(in.GuestNames)
	}

	err = s.stays.SubmitGuestForm(ctx, r.Stay.PropertyID, r.Stay.ID, domain.GuestSubmission{
		GuestNames:  in.GuestNames,
		GuestCount:  guestCount,
		PhoneNumber: in.PhoneNumber,
		Email:       in.Email,
		ComingFrom:  in.ComingFrom,
		TermsAgreed: in.TermsAgreed,
	})
	if errors.Is(err, domain.ErrAlreadySubmitted) {
		r.State = CodeActiveFilled
		return r, err
	}
	if err != nil {
		return nil, err
	}

	if err := s.load(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("guest form submitted", "property_id", r.Stay.PropertyID, "stay_id", r.Stay.ID, "guests", len(in.GuestNames))
	return r, nil
}

// resolve finds the code and classifies it by expiry. Active codes come
// back with a context scoped to the code's property.
func (s *PublicService) resolve(ctx context.Context, code string) (*Redemption, context.Context, error) {
	c, propertyID, err := s.codes.Lookup(ctx, code)
	if err != nil {
		return nil, ctx, err
	}
	if c == nil {
		return &Redemption{State: CodeUnknown}, ctx, nil
	}
	if c.Expired(s.now()) {
		return &Redemption{State: CodeExpired, Code: c}, ctx, nil
	}
	return &Redemption{State: CodeActiveUnfilled, Code: c}, tenant.WithProperty(ctx, propertyID), nil
}

// load fills in the stay, guests, property and rules of an active code and
// sets the filled state from the stay.
func (s *PublicService) load(ctx context.Context, r *Redemption) error {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	st, err := s.stays.GetByID(ctx, propertyID, r.Code.StayID)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("stay %d: %w", r.Code.StayID, domain.ErrNotFound)
	}
	r.Stay = st
	if st.FormFilled {
		r.State = CodeActiveFilled
	} else {
		r.State = CodeActiveUnfilled
	}

	if r.Guests, err = s.guests.ListByStay(ctx, propertyID, st.ID); err != nil {
		return err
	}
	if r.Property, err = s.properties.GetByID(ctx, propertyID); err != nil {
		return err
	}
	if r.Rules, err = s.rules.Get(ctx); err != nil {
		return err
	}
	return nil
}
