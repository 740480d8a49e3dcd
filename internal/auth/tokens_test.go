package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestIssuer() *Issuer {
	return NewIssuer([]byte("test-secret"), 15*time.Minute, 7*24*time.Hour, NewInMemoryRevocationRegistry())
}

func TestIssuePairAndVerify(t *testing.T) {
	issuer := newTestIssuer()

	pair, err := issuer.IssuePair("user-1")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected non-empty tokens: %+v", pair)
	}
	if pair.TokenType != "Bearer" || pair.ExpiresIn != 900 {
		t.Fatalf("unexpected token metadata: %+v", pair)
	}

	access, err := issuer.Verify(context.Background(), pair.AccessToken, KindAccess)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if access.Subject != "user-1" {
		t.Fatalf("expected subject user-1 got %q", access.Subject)
	}

	refresh, err := issuer.Verify(context.Background(), pair.RefreshToken, KindRefresh)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if refresh.ID == access.ID {
		t.Fatal("access and refresh tokens must carry distinct token ids")
	}
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	issuer := newTestIssuer()

	pair, err := issuer.IssuePair("user-1")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	if _, err := issuer.Verify(context.Background(), pair.RefreshToken, KindAccess); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind for refresh-as-access got %v", err)
	}
	if _, err := issuer.Verify(context.Background(), pair.AccessToken, KindRefresh); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind for access-as-refresh got %v", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	issuer := newTestIssuer()

	pair, err := issuer.IssuePair("user-1")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	tampered := pair.AccessToken + "x"
	if _, err := issuer.Verify(context.Background(), tampered, KindAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid got %v", err)
	}

	other := NewIssuer([]byte("another-secret"), time.Minute, time.Hour, NewInMemoryRevocationRegistry())
	if _, err := other.Verify(context.Background(), pair.AccessToken, KindAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign secret got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer()

	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer.NowFunc = func() time.Time { return issued }

	pair, err := issuer.IssuePair("user-1")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	issuer.NowFunc = func() time.Time { return issued.Add(16 * time.Minute) }
	if _, err := issuer.Verify(context.Background(), pair.AccessToken, KindAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for access token got %v", err)
	}
	if _, err := issuer.Verify(context.Background(), pair.RefreshToken, KindRefresh); err != nil {
		t.Fatalf("refresh token should still verify after 16 minutes: %v", err)
	}

	issuer.NowFunc = func() time.Time { return issued.Add(7*24*time.Hour + time.Minute) }
	if _, err := issuer.Verify(context.Background(), pair.RefreshToken, KindRefresh); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for refresh token got %v", err)
	}
}

func TestVerifyRejectsRevokedToken(t *testing.T) {
	registry := NewInMemoryRevocationRegistry()
	issuer := NewIssuer([]byte("test-secret"), 15*time.Minute, 7*24*time.Hour, registry)

	pair, err := issuer.IssuePair("user-1")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	claims, err := issuer.Verify(context.Background(), pair.AccessToken, KindAccess)
	if err != nil {
		t.Fatalf("verify before revocation: %v", err)
	}

	if err := registry.Revoke(context.Background(), claims.ID, claims.Subject); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// Revocation is idempotent.
	if err := registry.Revoke(context.Background(), claims.ID, claims.Subject); err != nil {
		t.Fatalf("re-revoke: %v", err)
	}

	if _, err := issuer.Verify(context.Background(), pair.AccessToken, KindAccess); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked got %v", err)
	}

	// The refresh token carries its own id and stays valid.
	if _, err := issuer.Verify(context.Background(), pair.RefreshToken, KindRefresh); err != nil {
		t.Fatalf("refresh token should be unaffected: %v", err)
	}
}

func TestIssueAccessMintsFreshTokenID(t *testing.T) {
	issuer := newTestIssuer()

	first, err := issuer.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	second, err := issuer.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	a, err := issuer.Verify(context.Background(), first, KindAccess)
	if err != nil {
		t.Fatalf("verify first: %v", err)
	}
	b, err := issuer.Verify(context.Background(), second, KindAccess)
	if err != nil {
		t.Fatalf("verify second: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("expected a fresh jti per minted access token")
	}
}

func TestRegistryPurgeExpired(t *testing.T) {
	registry := NewInMemoryRevocationRegistry()
	ctx := context.Background()

	if err := registry.Revoke(ctx, "jti-1", "user-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// A cutoff in the past removes nothing.
	removed, err := registry.PurgeExpired(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected no entries purged got %d", removed)
	}
	if revoked, _ := registry.IsRevoked(ctx, "jti-1"); !revoked {
		t.Fatal("entry should survive an early purge")
	}

	removed, err = registry.PurgeExpired(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one entry purged got %d", removed)
	}
	if revoked, _ := registry.IsRevoked(ctx, "jti-1"); revoked {
		t.Fatal("entry should be gone after purge")
	}
}
