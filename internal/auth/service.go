package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/swift-pay/swift_pay/internal/account"
	"github.com/swift-pay/swift_pay/internal/config"
)

var (
	// ErrInvalidToken covers malformed, expired, or mis-signed tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenRevoked indicates the refresh token no longer matches the one
	// stored for the account (rotated or logged out).
	ErrTokenRevoked = errors.New("refresh token is expired or used")
)

// Claims carried in both access and refresh tokens.
type Claims struct {
	Phone string `json:"phone"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenPair bundles the tokens returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Service issues and verifies session tokens. The transfer core never sees
// tokens; it receives the already-authenticated actor identity.
type Service struct {
	cfg      config.Config
	accounts account.Repository
}

// NewService creates an auth service.
func NewService(cfg config.Config, accounts account.Repository) *Service {
	return &Service{cfg: cfg, accounts: accounts}
}

// Login issues a token pair for an authenticated account and stores the
// refresh token so it can be rotated and revoked.
func (s *Service) Login(ctx context.Context, acct account.Account) (TokenPair, error) {
	access, err := s.sign(acct, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(acct, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.accounts.UpdateRefreshToken(ctx, acct.Phone, refresh); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// Refresh rotates a valid refresh token into a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.Verify(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	acct, err := s.accounts.FindByPhone(ctx, claims.Phone)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if acct.RefreshToken == "" || acct.RefreshToken != refreshToken {
		return TokenPair{}, ErrTokenRevoked
	}
	return s.Login(ctx, acct)
}

// Logout invalidates the stored refresh token.
func (s *Service) Logout(ctx context.Context, phone string) error {
	return s.accounts.UpdateRefreshToken(ctx, phone, "")
}

// Verify parses a token against the given secret and returns its claims.
func (s *Service) Verify(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess parses an access token.
func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	return s.Verify(tokenString, s.cfg.JWTSecret)
}

func (s *Service) sign(acct account.Account, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Phone: acct.Phone,
		Role:  string(acct.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.Phone,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
