package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vbonduro/staydesk/internal/auth"
	"github.com/vbonduro/staydesk/internal/domain"
)

// ErrBadCredentials is returned for an unknown user or a wrong password.
var ErrBadCredentials = errors.New("invalid username or password")

// userRepository is the subset of store.UserStore that AuthService requires.
type userRepository interface {
	Create(ctx context.Context, username, passwordHash string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type LoginInput struct {
	Username string `form:"username" validate:"required,max=150"`
	Password string `form:"password" validate:"required,max=72"`
}

type UserInput struct {
	Username string `form:"username" validate:"required,printascii,max=150"`
	Password string `form:"password" validate:"required,min=8,max=72"`
}

type AuthService struct {
	users  userRepository
	tokens *auth.TokenIssuer
	logger *slog.Logger
}

func NewAuthService(users userRepository, tokens *auth.TokenIssuer, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// Login checks the credentials and returns a signed session token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (string, auth.Principal, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return "", auth.Principal{}, err
	}

	u, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return "", auth.Principal{}, err
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, in.Password) {
		s.logger.Warn("failed login", "username", in.Username)
		return "", auth.Principal{}, ErrBadCredentials
	}

	p := auth.Principal{UserID: u.ID, Username: u.Username}
	token, err := s.tokens.Issue(p)
	if err != nil {
		return "", auth.Principal{}, err
	}
	s.logger.Info("user logged in", "user_id", u.ID)
	return token, p, nil
}

// Authenticate returns the principal of a session token.
func (s *AuthService) Authenticate(token string) (auth.Principal, error) {
	return s.tokens.Parse(token)
}

func (s *AuthService) CreateUser(ctx context.Context, in UserInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Create(ctx, in.Username, hash)
	if errors.Is(err, domain.ErrDuplicate) {
		return nil, invalid("username", "is already taken")
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// SetPassword replaces the password of an existing user.
func (s *AuthService) SetPassword(ctx context.Context, username, password string) error {
	if err := validateStruct(UserInput{Username: username, Password: password}); err != nil {
		return err
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, u.ID, hash)
}

// UserByName looks up a user for administrative commands.
func (s *AuthService) UserByName(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	return u, nil
}
