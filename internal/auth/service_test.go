package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/swift-pay/swift_pay/internal/account"
	"github.com/swift-pay/swift_pay/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

func seedAccount(t *testing.T, repo account.Repository, phone string, role account.Role) account.Account {
	t.Helper()
	acct := account.Account{
		Phone:    phone,
		Role:     role,
		Approved: true,
		Status:   account.StatusActive,
	}
	if err := repo.Create(context.Background(), acct); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	repo := account.NewMemoryRepository()
	svc := NewService(testConfig(), repo)
	acct := seedAccount(t, repo, "01711111111", account.RoleAgent)

	pair, err := svc.Login(context.Background(), acct)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if pair.ExpiresIn != 60 {
		t.Fatalf("expected expires_in 60, got %d", pair.ExpiresIn)
	}

	claims, err := svc.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Phone != acct.Phone || claims.Role != string(account.RoleAgent) {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// Tokens are bound to their secret: a refresh token is not an access token.
	if _, err := svc.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	stored, err := repo.FindByPhone(context.Background(), acct.Phone)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.RefreshToken != pair.RefreshToken {
		t.Fatal("refresh token must be stored for rotation")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	repo := account.NewMemoryRepository()
	svc := NewService(testConfig(), repo)
	acct := seedAccount(t, repo, "01711111111", account.RoleUser)
	ctx := context.Background()

	pair, err := svc.Login(ctx, acct)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// jwt timestamps have second precision; an identical token would not rotate.
	time.Sleep(1100 * time.Millisecond)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	// The old token is spent.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked, got %v", err)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	repo := account.NewMemoryRepository()
	svc := NewService(testConfig(), repo)
	acct := seedAccount(t, repo, "01711111111", account.RoleUser)
	ctx := context.Background()

	pair, err := svc.Login(ctx, acct)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, acct.Phone); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked after logout, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewService(testConfig(), account.NewMemoryRepository())
	if _, err := svc.VerifyAccess("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}
