package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/tenant"
)

const guestSearchLimit = 10

// guestRepository is the subset of store.GuestStore that GuestService requires.
type guestRepository interface {
	Create(ctx context.Context, propertyID int64, name string) (*domain.Guest, error)
	GetByID(ctx context.Context, propertyID, id int64) (*domain.Guest, error)
	List(ctx context.Context, propertyID int64) ([]*domain.Guest, error)
	Search(ctx context.Context, propertyID int64, query string, limit int) ([]*domain.Guest, error)
	Count(ctx context.Context, propertyID int64) (int, error)
	Rename(ctx context.Context, propertyID, id int64, name string) error
	Delete(ctx context.Context, propertyID, id int64) error
}

type GuestInput struct {
	Name string `form:"name" validate:"required,max=100"`
}

type GuestService struct {
	guests guestRepository
	logger *slog.Logger
}

func NewGuestService(guests guestRepository, logger *slog.Logger) *GuestService {
	return &GuestService{guests: guests, logger: logger}
}

func (s *GuestService) Create(ctx context.Context, in GuestInput) (*domain.Guest, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	return s.guests.Create(ctx, propertyID, in.Name)
}

func (s *GuestService) Get(ctx context.Context, id int64) (*domain.Guest, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	g, err := s.guests.GetByID(ctx, propertyID, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("guest %d: %w", id, domain.ErrNotFound)
	}
	return g, nil
}

func (s *GuestService) List(ctx context.Context) ([]*domain.Guest, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.guests.List(ctx, propertyID)
}

// Search matches guest names case-insensitively. An empty query returns no
// guests.
func (s *GuestService) Search(ctx context.Context, query string) ([]*domain.Guest, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.Guest{}, nil
	}
	return s.guests.Search(ctx, propertyID, query, guestSearchLimit)
}

func (s *GuestService) Count(ctx context.Context) (int, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, err
	}
	return s.guests.Count(ctx, propertyID)
}

func (s *GuestService) Rename(ctx context.Context, id int64, in GuestInput) (*domain.Guest, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.guests.Rename(ctx, propertyID, id, in.Name); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *GuestService) Delete(ctx context.Context, id int64) error {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.guests.Delete(ctx, propertyID, id); err != nil {
		return err
	}
	s.logger.Info("guest deleted", "property_id", propertyID, "guest_id", id)
	return nil
}
