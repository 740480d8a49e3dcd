package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vidvault/backend/internal/models"
)

// TokenKind distinguishes the two bearer credentials issued to users.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

var (
	// ErrTokenInvalid indicates a malformed or tampered token.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates the token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenKind indicates an access token was presented where a
	// refresh token is required, or vice versa.
	ErrWrongTokenKind = errors.New("wrong token kind")
	// ErrTokenRevoked indicates the token id appears in the revocation registry.
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims is the signed payload carried by access and refresh tokens.
type Claims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies signed bearer tokens. Verification consults the
// injected revocation registry so a logged-out token never authorizes again.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoked    RevocationRegistry

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time
}

// NewIssuer constructs an Issuer signing with the provided secret.
func NewIssuer(secret []byte, accessTTL, refreshTTL time.Duration, revoked RevocationRegistry) *Issuer {
	if len(secret) == 0 {
		panic("auth: signing secret must not be empty")
	}
	if revoked == nil {
		panic("auth: revocation registry must not be nil")
	}
	return &Issuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		revoked:    revoked,
	}
}

// IssuePair mints a fresh access and refresh token for the given user.
func (i *Issuer) IssuePair(userID string) (models.TokenPair, error) {
	if userID == "" {
		return models.TokenPair{}, errors.New("user id must be provided")
	}

	access, err := i.mint(userID, KindAccess, i.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := i.mint(userID, KindRefresh, i.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(i.accessTTL.Seconds()),
	}, nil
}

// IssueAccess mints a standalone access token with a fresh token id. Used on
// refresh; the presented refresh token itself is left untouched.
func (i *Issuer) IssueAccess(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id must be provided")
	}
	return i.mint(userID, KindAccess, i.accessTTL)
}

// AccessTTL reports the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// Verify checks the token's signature, expiry and kind, then consults the
// revocation registry. Verification performs no writes.
func (i *Issuer) Verify(ctx context.Context, token string, kind TokenKind) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrTokenInvalid
	}

	if claims.Kind != kind {
		return Claims{}, ErrWrongTokenKind
	}

	revoked, err := i.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Claims{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Claims{}, ErrTokenRevoked
	}

	return *claims, nil
}

func (i *Issuer) mint(userID string, kind TokenKind, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (i *Issuer) now() time.Time {
	if i.NowFunc != nil {
		return i.NowFunc().UTC()
	}
	return time.Now().UTC()
}
