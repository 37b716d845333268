package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/tenant"
)

const DefaultHouseRulesTitle = "Terms and Conditions"

// DefaultHouseRulesContent is provisioned for a property the first time its
// rules are read.
const DefaultHouseRulesContent = `<h3>Check-in &amp; Check-out</h3>
<ul>
<li>Valid government ID is required at check-in</li>
<li>Check-in time is after 2:00 PM</li>
<li>Check-out time is before 11:00 AM</li>
</ul>

<h3>House Policies</h3>
<ul>
<li>No smoking inside the property</li>
<li>Quiet hours after 10:00 PM</li>
<li>Additional guests may incur extra charges</li>
<li>Damage to property will be charged accordingly</li>
</ul>`

// houseRulesRepository is the subset of store.HouseRulesStore that HouseRulesService requires.
type houseRulesRepository interface {
	Ensure(ctx context.Context, propertyID int64, title, content string) (*domain.HouseRules, error)
	Update(ctx context.Context, propertyID int64, title, content string, updatedBy *int64) error
}

type HouseRulesInput struct {
	Title   string `form:"title" validate:"max=200"`
	Content string `form:"content" validate:"max=100000"`
}

type HouseRulesService struct {
	rules  houseRulesRepository
	logger *slog.Logger
}

func NewHouseRulesService(rules houseRulesRepository, logger *slog.Logger) *HouseRulesService {
	return &HouseRulesService{rules: rules, logger: logger}
}

// Get returns the scoped property's house rules, creating the defaults if
// the property has none yet.
func (s *HouseRulesService) Get(ctx context.Context) (*domain.HouseRules, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.forProperty(ctx, propertyID)
}

func (s *HouseRulesService) forProperty(ctx context.Context, propertyID int64) (*domain.HouseRules, error) {
	return s.rules.Ensure(ctx, propertyID, DefaultHouseRulesTitle, SanitizeHTML(DefaultHouseRulesContent))
}

// Update saves a new version of the rules. A blank title falls back to the
// default one. Content is sanitized before it is stored.
func (s *HouseRulesService) Update(ctx context.Context, userID int64, in HouseRulesInput) (*domain.HouseRules, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		in.Title = DefaultHouseRulesTitle
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	in.Content = SanitizeHTML(in.Content)

	if _, err := s.forProperty(ctx, propertyID); err != nil {
		return nil, err
	}

	var updatedBy *int64
	if userID > 0 {
		updatedBy = &userID
	}
	if err := s.rules.Update(ctx, propertyID, in.Title, in.Content, updatedBy); err != nil {
		return nil, err
	}

	hr, err := s.forProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("house rules updated", "property_id", propertyID, "version", hr.Version, "user_id", userID)
	return hr, nil
}
