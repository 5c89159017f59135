package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/congdinh/todo-backend/internal/domain"
	"github.com/congdinh/todo-backend/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory TokenStore.
type memStore struct {
	users  map[string]*domain.User
	tokens map[string]*domain.RefreshToken
}

func newMemStore(users ...*domain.User) *memStore {
	s := &memStore{
		users:  make(map[string]*domain.User),
		tokens: make(map[string]*domain.RefreshToken),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func (s *memStore) SaveRefreshToken(_ context.Context, token *domain.RefreshToken) error {
	s.tokens[token.ID] = token
	return nil
}

func (s *memStore) GetRefreshToken(_ context.Context, id string) (*domain.RefreshToken, error) {
	if t, ok := s.tokens[id]; ok {
		return t, nil
	}
	return nil, identity.ErrTokenNotFound
}

func (s *memStore) DeleteRefreshToken(_ context.Context, id string) error {
	if _, ok := s.tokens[id]; !ok {
		return identity.ErrTokenNotFound
	}
	delete(s.tokens, id)
	return nil
}

func testUser() *domain.User {
	return &domain.User{
		ID:     "user-1",
		Email:  "test@example.com",
		Role:   domain.RoleUser,
		Active: true,
	}
}

func newTestAuthenticator(store TokenStore) *Authenticator {
	return NewAuthenticator(Config{
		SecretKey:            "test-secret-key-of-sufficient-length",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
	}, store)
}

func TestGenerateTokens_AccessTokenValidates(t *testing.T) {
	user := testUser()
	store := newMemStore(user)
	auth := newTestAuthenticator(store)

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	userID, role, err := auth.ValidateAccessToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, domain.RoleUser, role)
}

func TestGenerateTokens_StoresOnlyDigest(t *testing.T) {
	user := testUser()
	store := newMemStore(user)
	auth := newTestAuthenticator(store)

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	require.Len(t, store.tokens, 1)
	for _, stored := range store.tokens {
		assert.NotEqual(t, pair.RefreshToken, stored.TokenHash)
		assert.Equal(t, "user-1", stored.UserID)
	}
}

func TestValidateAccessToken_RejectsRefreshToken(t *testing.T) {
	user := testUser()
	auth := newTestAuthenticator(newMemStore(user))

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	_, _, err = auth.ValidateAccessToken(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestValidateAccessToken_RejectsTampered(t *testing.T) {
	user := testUser()
	auth := newTestAuthenticator(newMemStore(user))

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	other := NewAuthenticator(Config{
		SecretKey:            "another-secret-key-entirely",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
	}, newMemStore(user))

	_, _, err = other.ValidateAccessToken(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestValidateAccessToken_RejectsExpired(t *testing.T) {
	user := testUser()
	auth := NewAuthenticator(Config{
		SecretKey:            "test-secret-key-of-sufficient-length",
		AccessTokenDuration:  -time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
	}, newMemStore(user))

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	_, _, err = auth.ValidateAccessToken(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestRefreshTokens_RotatesAndConsumesOldToken(t *testing.T) {
	user := testUser()
	store := newMemStore(user)
	auth := newTestAuthenticator(store)

	first, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	second, err := auth.RefreshTokens(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// the consumed token must be rejected on replay
	_, err = auth.RefreshTokens(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)

	// the rotated token still works
	_, err = auth.RefreshTokens(context.Background(), second.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshTokens_RejectsAccessToken(t *testing.T) {
	user := testUser()
	auth := newTestAuthenticator(newMemStore(user))

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	_, err = auth.RefreshTokens(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestRefreshTokens_RejectsDeactivatedUser(t *testing.T) {
	user := testUser()
	store := newMemStore(user)
	auth := newTestAuthenticator(store)

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	user.Active = false

	_, err = auth.RefreshTokens(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestRevokeRefreshToken_Idempotent(t *testing.T) {
	user := testUser()
	store := newMemStore(user)
	auth := newTestAuthenticator(store)

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	require.NoError(t, auth.RevokeRefreshToken(context.Background(), pair.RefreshToken))
	assert.Empty(t, store.tokens)

	// second revoke is a no-op
	assert.NoError(t, auth.RevokeRefreshToken(context.Background(), pair.RefreshToken))

	// revoked token can no longer be redeemed
	_, err = auth.RefreshTokens(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}
