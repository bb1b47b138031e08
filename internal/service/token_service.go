package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Token kinds carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const blacklistPrefix = "blacklist:"

// TokenPair is the result of a successful login or registration.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type tokenClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 JWTs and keeps the revocation list in Redis.
type TokenService struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	rdb        *redis.Client
	now        func() time.Time
}

// NewTokenService builds a TokenService from cfg; rdb may be nil, in which
// case revocation is unavailable.
func NewTokenService(cfg *config.Config, rdb *redis.Client) *TokenService {
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	return &TokenService{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		rdb:        rdb,
		now:        time.Now,
	}
}

// Issue creates a fresh access/refresh pair for userID.
func (s *TokenService) Issue(userID uint) (TokenPair, error) {
	access, err := s.sign(userID, TokenTypeAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(userID, TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *TokenService) sign(userID uint, typ string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", models.NewInternalError(errors.New("JWT secret not configured"))
	}
	now := s.now()
	claims := tokenClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return signed, nil
}

// parse validates signature, issuer, audience, lifetime and kind.
func (s *TokenService) parse(tokenString, typ string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	if claims.Type != typ {
		return nil, models.NewUnauthorizedError("Invalid token type")
	}
	if claims.ID == "" {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	return claims, nil
}

func subjectID(claims *tokenClaims) (uint, error) {
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewUnauthorizedError("Invalid subject claim")
	}
	return uint(id), nil
}

// verify parses a token of kind typ and rejects revoked ones.
func (s *TokenService) verify(ctx context.Context, tokenString, typ string) (*tokenClaims, uint, error) {
	claims, err := s.parse(tokenString, typ)
	if err != nil {
		return nil, 0, err
	}
	userID, err := subjectID(claims)
	if err != nil {
		return nil, 0, err
	}
	if s.isRevoked(ctx, claims.ID) {
		return nil, 0, models.NewUnauthorizedError("Token has been revoked")
	}
	return claims, userID, nil
}

// VerifyAccess returns the user an access token was issued to.
func (s *TokenService) VerifyAccess(ctx context.Context, tokenString string) (uint, error) {
	_, userID, err := s.verify(ctx, tokenString, TokenTypeAccess)
	return userID, err
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	_, userID, err := s.verify(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	return s.sign(userID, TokenTypeAccess, s.accessTTL)
}

// Revoke blacklists a token of kind typ until it would have expired anyway.
// It returns the user the token belonged to.
func (s *TokenService) Revoke(ctx context.Context, tokenString, typ string) (uint, error) {
	claims, userID, err := s.verify(ctx, tokenString, typ)
	if err != nil {
		return 0, err
	}
	if s.rdb == nil {
		middleware.Logger.WarnContext(ctx, "token revocation skipped: redis unavailable")
		return userID, nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return userID, nil
	}
	if err := s.rdb.Set(ctx, blacklistPrefix+claims.ID, "1", ttl).Err(); err != nil {
		return 0, models.NewInternalError(err)
	}
	return userID, nil
}

// isRevoked fails open: a Redis outage must not log every user out.
func (s *TokenService) isRevoked(ctx context.Context, jti string) bool {
	if s.rdb == nil {
		return false
	}
	n, err := s.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "blacklist lookup failed", slog.String("error", err.Error()))
		return false
	}
	return n > 0
}
