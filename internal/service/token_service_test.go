package service

import (
	"context"
	"testing"
	"time"

	"agora/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret-that-is-long-enough-for-hs256",
		JWTIssuer:       "agora-api",
		JWTAudience:     "agora-app",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func newTestTokenService(t *testing.T) (*TokenService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTokenService(testTokenConfig(), rdb), mr
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(42)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	userID, err := svc.VerifyAccess(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	_, err = svc.VerifyAccess(ctx, pair.Refresh)
	assertAppErrorCode(t, err, "UNAUTHORIZED")

	access, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	userID, err = svc.VerifyAccess(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	_, err = svc.Refresh(ctx, pair.Access)
	assertAppErrorCode(t, err, "UNAUTHORIZED")
}

func TestTokenService_RejectsForeignTokens(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	otherCfg := testTokenConfig()
	otherCfg.JWTSecret = "a-completely-different-secret-value-000"
	other := NewTokenService(otherCfg, nil)
	pair, err := other.Issue(1)
	require.NoError(t, err)
	_, err = svc.VerifyAccess(ctx, pair.Access)
	assertAppErrorCode(t, err, "UNAUTHORIZED")

	audCfg := testTokenConfig()
	audCfg.JWTAudience = "someone-else"
	pair, err = NewTokenService(audCfg, nil).Issue(1)
	require.NoError(t, err)
	_, err = svc.VerifyAccess(ctx, pair.Access)
	assertAppErrorCode(t, err, "UNAUTHORIZED")

	_, err = svc.VerifyAccess(ctx, "not-a-jwt")
	assertAppErrorCode(t, err, "UNAUTHORIZED")
}

func TestTokenService_Expiry(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	issuedAt := time.Now()
	svc.now = func() time.Time { return issuedAt }
	pair, err := svc.Issue(7)
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(16 * time.Minute) }
	_, err = svc.VerifyAccess(ctx, pair.Access)
	assertAppErrorCode(t, err, "UNAUTHORIZED")

	_, err = svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
}

func TestTokenService_Revoke(t *testing.T) {
	svc, mr := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(9)
	require.NoError(t, err)

	userID, err := svc.Revoke(ctx, pair.Refresh, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, uint(9), userID)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], blacklistPrefix)
	assert.True(t, mr.TTL(keys[0]) > 23*time.Hour)

	_, err = svc.Refresh(ctx, pair.Refresh)
	assertAppErrorCode(t, err, "UNAUTHORIZED")

	// The access token is independent of the refresh token.
	_, err = svc.VerifyAccess(ctx, pair.Access)
	require.NoError(t, err)
}

func TestTokenService_RevocationFailsOpen(t *testing.T) {
	svc, mr := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(3)
	require.NoError(t, err)

	mr.Close()
	userID, err := svc.VerifyAccess(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, uint(3), userID)
}

func TestTokenService_WithoutRedis(t *testing.T) {
	svc := NewTokenService(testTokenConfig(), nil)
	ctx := context.Background()

	pair, err := svc.Issue(5)
	require.NoError(t, err)
	_, err = svc.Revoke(ctx, pair.Refresh, TokenTypeRefresh)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
}

func TestTokenService_DefaultTTLs(t *testing.T) {
	cfg := testTokenConfig()
	cfg.AccessTokenTTL = 0
	cfg.RefreshTokenTTL = 0
	svc := NewTokenService(cfg, nil)
	assert.Equal(t, 15*time.Minute, svc.accessTTL)
	assert.Equal(t, 24*time.Hour, svc.refreshTTL)
}
