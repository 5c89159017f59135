// Package jwt implements token issuance and validation with signed JWTs.
// Access tokens are stateless; refresh tokens are additionally tracked in
// storage by their JTI so each one can be consumed exactly once.
package jwt

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/congdinh/todo-backend/internal/domain"
	"github.com/congdinh/todo-backend/internal/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Config holds signing settings.
type Config struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// Claims carried by both access and refresh tokens. The user id is the
// registered subject; the JTI is the registered ID.
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenStore is the storage the authenticator needs: refresh token rows
// plus user lookup so rotation can re-check the account.
type TokenStore interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, id string) (*domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, id string) error
}

// Authenticator issues HS256-signed token pairs.
type Authenticator struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      TokenStore
}

// NewAuthenticator creates a JWT authenticator backed by the given store.
func NewAuthenticator(cfg Config, store TokenStore) *Authenticator {
	return &Authenticator{
		secret:     []byte(cfg.SecretKey),
		accessTTL:  cfg.AccessTokenDuration,
		refreshTTL: cfg.RefreshTokenDuration,
		store:      store,
	}
}

// Type returns the authenticator type.
func (a *Authenticator) Type() string {
	return "jwt"
}

// GenerateTokens issues a new access/refresh pair for the user and
// records the refresh token's digest for later rotation.
func (a *Authenticator) GenerateTokens(ctx context.Context, user *domain.User) (*identity.TokenPair, error) {
	now := time.Now().UTC()

	access, err := a.sign(user, tokenTypeAccess, uuid.NewString(), now, now.Add(a.accessTTL))
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	jti := uuid.NewString()
	refreshExpiry := now.Add(a.refreshTTL)
	refresh, err := a.sign(user, tokenTypeRefresh, jti, now, refreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}

	if err := a.store.SaveRefreshToken(ctx, &domain.RefreshToken{
		ID:        jti,
		UserID:    user.ID,
		TokenHash: a.hashToken(refresh),
		ExpiresAt: refreshExpiry,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("saving refresh token: %w", err)
	}

	return &identity.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(a.accessTTL.Seconds()),
	}, nil
}

// ValidateAccessToken verifies signature, expiry, and token type, and
// returns the subject's id and role.
func (a *Authenticator) ValidateAccessToken(_ context.Context, token string) (string, domain.Role, error) {
	claims, err := a.parse(token, tokenTypeAccess)
	if err != nil {
		return "", "", err
	}

	role := domain.Role(claims.Role)
	if !role.IsValid() {
		return "", "", identity.ErrInvalidToken
	}

	return claims.Subject, role, nil
}

// RefreshTokens rotates a refresh token. The stored row is deleted
// before new tokens are issued, so a token can only be redeemed once;
// a replayed token finds no row and is rejected.
func (a *Authenticator) RefreshTokens(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	claims, err := a.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	stored, err := a.store.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}

	if stored.IsExpired(time.Now().UTC()) || !a.matchesHash(refreshToken, stored.TokenHash) {
		return nil, identity.ErrInvalidToken
	}

	if err := a.store.DeleteRefreshToken(ctx, claims.ID); err != nil {
		return nil, identity.ErrInvalidToken
	}

	user, err := a.store.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}
	if !user.Active {
		return nil, identity.ErrInvalidToken
	}

	return a.GenerateTokens(ctx, user)
}

// RevokeRefreshToken deletes the stored row for the token. Revoking an
// unknown or already consumed token is not an error.
func (a *Authenticator) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	claims, err := a.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return identity.ErrInvalidToken
	}

	if err := a.store.DeleteRefreshToken(ctx, claims.ID); err != nil {
		if errors.Is(err, identity.ErrTokenNotFound) {
			return nil
		}
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

func (a *Authenticator) sign(user *domain.User, tokenType, jti string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		Email:     user.Email,
		Role:      string(user.Role),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) parse(token, wantType string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, identity.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.TokenType != wantType {
		return nil, identity.ErrInvalidToken
	}

	return claims, nil
}

// hashToken computes the stored digest for a refresh token. Only the
// HMAC digest is persisted; a leaked database cannot mint valid tokens.
func (a *Authenticator) hashToken(token string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *Authenticator) matchesHash(token, storedHash string) bool {
	return hmac.Equal([]byte(a.hashToken(token)), []byte(storedHash))
}
