package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/congdinh/todo-backend/internal/domain"
)

// Repository defines persistence operations for users and refresh tokens.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, id string) (*domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, id string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error
}

// TokenPair is an issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}

// Authenticator issues and validates tokens.
type Authenticator interface {
	GenerateTokens(ctx context.Context, user *domain.User) (*TokenPair, error)
	ValidateAccessToken(ctx context.Context, token string) (string, domain.Role, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	Type() string
}

// UserCreatedHandler is notified after a user registers. Failures are
// logged but never fail the registration.
type UserCreatedHandler interface {
	OnUserCreated(ctx context.Context, user *domain.User) error
}

// Service implements identity business logic.
type Service struct {
	repo               Repository
	auth               Authenticator
	userCreatedHandler UserCreatedHandler
}

// NewService creates a new identity service. The handler may be nil.
func NewService(repo Repository, auth Authenticator, handler UserCreatedHandler) *Service {
	return &Service{
		repo:               repo,
		auth:               auth,
		userCreatedHandler: handler,
	}
}

// RegisterInput contains data for registering a new user.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// Register creates a new user account with the user role.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	}

	hash, err := HashPassword(input.Password, 0)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Role:         domain.RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if s.userCreatedHandler != nil {
		if err := s.userCreatedHandler.OnUserCreated(ctx, user); err != nil {
			slog.Warn("user created handler failed", "user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

// LoginInput contains credentials for login.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and issues a token pair. Unknown emails,
// wrong passwords, and deactivated accounts all map to
// ErrInvalidCredentials so responses don't leak which one failed.
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, nil, ErrInvalidCredentials
	}

	if err := CheckPassword(user.PasswordHash, input.Password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.auth.GenerateTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generating tokens: %w", err)
	}

	return user, tokens, nil
}

// RefreshTokens rotates a refresh token: the presented token is consumed
// and a fresh pair is issued.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.auth.RefreshTokens(ctx, refreshToken)
}

// Logout revokes the presented refresh token. Revoking an already
// consumed token is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.auth.RevokeRefreshToken(ctx, refreshToken)
}

// GetUserByID returns a user by id.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ValidateToken validates an access token and returns the subject's id
// and role. It satisfies the middleware's token validator contract.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, domain.Role, error) {
	return s.auth.ValidateAccessToken(ctx, token)
}

// EnsureAdmin guarantees an active admin account with the given email
// exists, creating it on first startup and repairing the role if a
// regular account already holds the address.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, displayName string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		if existing.Role == domain.RoleAdmin && existing.Active {
			return nil
		}
		existing.Role = domain.RoleAdmin
		existing.Active = true
		existing.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateUser(ctx, existing); err != nil {
			return fmt.Errorf("updating admin user: %w", err)
		}
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("looking up admin user: %w", err)
	}

	hash, err := HashPassword(password, 0)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
		Role:         domain.RoleAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("seeded admin account", "email", email)
	return nil
}

// PromoteUser grants the admin role to a user.
func (s *Service) PromoteUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.Role == domain.RoleAdmin {
		return user, nil
	}

	user.Role = domain.RoleAdmin
	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	return user, nil
}

// DeactivateUser disables an account and revokes its refresh tokens.
// Outstanding access tokens expire on their own.
func (s *Service) DeactivateUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !user.Active {
		return user, nil
	}

	user.Active = false
	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	if err := s.repo.DeleteUserRefreshTokens(ctx, id); err != nil {
		slog.Warn("failed to revoke refresh tokens", "user_id", id, "error", err)
	}

	return user, nil
}
