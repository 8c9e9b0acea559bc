package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T, store *memStore) *AuthService {
	t.Helper()
	return NewAuthService(accountRepoFake{store}, "test-secret", time.Hour, testLogger())
}

func TestRegisterAndLogin(t *testing.T) {
	store := newMemStore()
	auth := newTestAuth(t, store)
	ctx := context.Background()

	account, err := auth.Register(ctx, RegisterInput{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, account.PasswordHash)
	assert.NotEqual(t, "correct horse", account.PasswordHash)

	token, got, err := auth.Login(ctx, LoginInput{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	parsedID, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, parsedID)
}

func TestRegisterValidation(t *testing.T) {
	store := newMemStore()
	auth := newTestAuth(t, store)
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterInput{Username: "ab", Password: "long enough"})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = auth.Register(ctx, RegisterInput{Username: "alice", Password: "short"})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	store := newMemStore()
	auth := newTestAuth(t, store)
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterInput{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)

	_, err = auth.Register(ctx, RegisterInput{Username: "alice", Password: "battery staple"})
	assert.ErrorIs(t, err, ErrAuthUsernameTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newMemStore()
	auth := newTestAuth(t, store)
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterInput{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, LoginInput{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)

	// несуществующий логин неотличим от неверного пароля
	_, _, err = auth.Login(ctx, LoginInput{Username: "bob", Password: "whatever"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	store := newMemStore()
	auth := newTestAuth(t, store)

	_, err := auth.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)

	other := NewAuthService(accountRepoFake{store}, "other-secret", time.Hour, testLogger())
	ctx := context.Background()
	_, err = auth.Register(ctx, RegisterInput{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	token, _, err := auth.Login(ctx, LoginInput{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)

	// токен, подписанный другим секретом, не принимается
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)
}
