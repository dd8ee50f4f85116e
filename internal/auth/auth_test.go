package auth

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
)

func newTestTokenService(t *testing.T, duration time.Duration) *TokenService {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	svc, err := NewTokenService(key, duration)
	require.NoError(t, err)
	return svc
}

func testUser() *domain.User {
	u := &domain.User{Username: "mluukkai", FavoriteGenre: "refactoring"}
	u.ID = "user-abc123"
	return u
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	token, err := svc.Issue(testUser())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-abc123", claims.UserID)
	assert.Equal(t, "user-abc123", claims.Subject)
	assert.Equal(t, "mluukkai", claims.Username)
	assert.True(t, claims.Expires())
	assert.True(t, strings.HasPrefix(claims.TokenID, "tok-"))
}

func TestTokenService_NoExpiry(t *testing.T) {
	svc := newTestTokenService(t, 0)

	token, err := svc.Issue(testUser())
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.False(t, claims.Expires())
}

func TestTokenService_Rejects(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)
	other := newTestTokenService(t, time.Hour)

	foreign, err := other.Issue(testUser())
	require.NoError(t, err)

	valid, err := svc.Issue(testUser())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong key", foreign},
		{"truncated", valid[:len(valid)-4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenService_RejectsExpired(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	svc, err := NewTokenService(key, time.Hour)
	require.NoError(t, err)

	symmetricKey, err := paseto.V4SymmetricKeyFromBytes(key)
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetSubject("user-abc123")
	token.SetIssuedAt(past)
	token.SetNotBefore(past)
	token.SetExpiration(past.Add(time.Hour))
	require.NoError(t, token.Set("user_id", "user-abc123"))

	_, err = svc.Verify(token.V4Encrypt(symmetricKey, nil))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsWrongAudience(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	svc, err := NewTokenService(key, 0)
	require.NoError(t, err)

	symmetricKey, err := paseto.V4SymmetricKeyFromBytes(key)
	require.NoError(t, err)

	now := time.Now()
	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience("someone-else")
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	require.NoError(t, token.Set("user_id", "user-abc123"))

	_, err = svc.Verify(token.V4Encrypt(symmetricKey, nil))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenService_Validation(t *testing.T) {
	_, err := NewTokenService(make([]byte, 16), time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(make([]byte, keyLength), -time.Second)
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, first, keyLength)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrGenerateKey_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte("zz"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	assert.Error(t, err)
}

func TestSharedPassword(t *testing.T) {
	pw, err := NewSharedPassword("secret")
	require.NoError(t, err)

	assert.True(t, pw.Matches("secret"))
	assert.False(t, pw.Matches("Secret"))
	assert.False(t, pw.Matches(""))
	assert.False(t, pw.Matches(strings.Repeat("a", maxPasswordLength+1)))
}

func TestHashPassword_Validation(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)

	_, err = HashPassword(strings.Repeat("a", maxPasswordLength+1))
	assert.Error(t, err)

	assert.False(t, VerifyPassword("$argon2id$broken", "secret"))
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, UserFromContext(ctx))
	assert.Equal(t, ctx, WithUser(ctx, nil))

	user := testUser()
	assert.Same(t, user, UserFromContext(WithUser(ctx, user)))
}
