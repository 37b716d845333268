package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gosimple/slug"
	"github.com/vbonduro/staydesk/internal/docstore"
	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/tenant"
)

// propertyRepository is the subset of store.PropertyStore that PropertyService requires.
type propertyRepository interface {
	Create(ctx context.Context, p *domain.Property) (*domain.Property, error)
	GetByID(ctx context.Context, id int64) (*domain.Property, error)
	ListByMember(ctx context.Context, userID int64) ([]*domain.Property, error)
	Update(ctx context.Context, p *domain.Property) error
	Delete(ctx context.Context, id int64) error
	AddMember(ctx context.Context, propertyID, userID int64) error
	IsMember(ctx context.Context, propertyID, userID int64) (bool, error)
	SlugTaken(ctx context.Context, slug string, exceptID int64) (bool, error)
}

// storageKeyLister is the subset of store.DocumentStore needed to clean up
// files of a deleted property.
type storageKeyLister interface {
	StorageKeysByProperty(ctx context.Context, propertyID int64) ([]string, error)
}

type PropertyInput struct {
	Name        string `form:"name" validate:"required,max=200"`
	Address     string `form:"address" validate:"max=1000"`
	LocationURL string `form:"location_url" validate:"omitempty,http_url,max=500"`
	Phone       string `form:"phone" validate:"max=15"`
	Email       string `form:"email" validate:"omitempty,email,max=254"`
}

func (in *PropertyInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.LocationURL = strings.TrimSpace(in.LocationURL)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
}

type PropertyService struct {
	properties propertyRepository
	documents  storageKeyLister
	files      docstore.DocStore
	logger     *slog.Logger
}

func NewPropertyService(properties propertyRepository, documents storageKeyLister, files docstore.DocStore, logger *slog.Logger) *PropertyService {
	return &PropertyService{
		properties: properties,
		documents:  documents,
		files:      files,
		logger:     logger,
	}
}

// Create adds a property and makes ownerID its first member.
func (s *PropertyService) Create(ctx context.Context, ownerID int64, in PropertyInput) (*domain.Property, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	propertySlug, err := s.uniqueSlug(ctx, in.Name, 0)
	if err != nil {
		return nil, err
	}

	p, err := s.properties.Create(ctx, &domain.Property{
		Name:        in.Name,
		Slug:        propertySlug,
		Address:     in.Address,
		LocationURL: in.LocationURL,
		Phone:       in.Phone,
		Email:       in.Email,
	})
	if errors.Is(err, domain.ErrDuplicate) {
		return nil, invalid("name", "is already used by another property")
	}
	if err != nil {
		return nil, err
	}

	if ownerID > 0 {
		if err := s.properties.AddMember(ctx, p.ID, ownerID); err != nil {
			return nil, fmt.Errorf("failed to add owner to property %d: %w", p.ID, err)
		}
	}

	s.logger.Info("property created", "property_id", p.ID, "slug", p.Slug, "owner_id", ownerID)
	return p, nil
}

// uniqueSlug derives a slug from name, suffixing -1, -2, ... on collision.
func (s *PropertyService) uniqueSlug(ctx context.Context, name string, exceptID int64) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "property"
	}
	candidate := base
	for i := 1; ; i++ {
		taken, err := s.properties.SlugTaken(ctx, candidate, exceptID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *PropertyService) ListForUser(ctx context.Context, userID int64) ([]*domain.Property, error) {
	return s.properties.ListByMember(ctx, userID)
}

// Authorize reports whether userID may act on propertyID.
func (s *PropertyService) Authorize(ctx context.Context, userID, propertyID int64) (bool, error) {
	return s.properties.IsMember(ctx, propertyID, userID)
}

func (s *PropertyService) AddMember(ctx context.Context, propertyID, userID int64) error {
	p, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("property %d: %w", propertyID, domain.ErrNotFound)
	}
	return s.properties.AddMember(ctx, propertyID, userID)
}

// Get returns the property the context is scoped to.
func (s *PropertyService) Get(ctx context.Context) (*domain.Property, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("property %d: %w", propertyID, domain.ErrNotFound)
	}
	return p, nil
}

func (s *PropertyService) Update(ctx context.Context, in PropertyInput) (*domain.Property, error) {
	p, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	if in.Name != p.Name {
		p.Slug, err = s.uniqueSlug(ctx, in.Name, p.ID)
		if err != nil {
			return nil, err
		}
	}
	p.Name = in.Name
	p.Address = in.Address
	p.LocationURL = in.LocationURL
	p.Phone = in.Phone
	p.Email = in.Email

	err = s.properties.Update(ctx, p)
	if errors.Is(err, domain.ErrDuplicate) {
		return nil, invalid("name", "is already used by another property")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the scoped property with everything it owns, then
// best-effort removes its document files.
func (s *PropertyService) Delete(ctx context.Context) error {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	keys, err := s.documents.StorageKeysByProperty(ctx, propertyID)
	if err != nil {
		return err
	}

	if err := s.properties.Delete(ctx, propertyID); err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Error("failed to delete document file", "property_id", propertyID, "storage_key", key, "error", err)
		}
	}

	s.logger.Info("property deleted", "property_id", propertyID, "files", len(keys))
	return nil
}
