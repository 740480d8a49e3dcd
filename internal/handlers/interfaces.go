package handlers

import (
	"context"
	"time"

	"github.com/vidvault/backend/internal/auth"
	"github.com/vidvault/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
	AddWatchTime(ctx context.Context, id string, seconds int64, at time.Time) error
}

// TokenIssuer mints and verifies the bearer credentials used across endpoints.
type TokenIssuer interface {
	IssuePair(userID string) (models.TokenPair, error)
	IssueAccess(userID string) (string, error)
	AccessTTL() time.Duration
	Verify(ctx context.Context, token string, kind auth.TokenKind) (auth.Claims, error)
}

// TokenRevoker invalidates a token id on logout.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti, userID string) error
}

// VideoStore captures persistence for the video catalog.
type VideoStore interface {
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListActive(ctx context.Context, page, perPage int) ([]models.Video, int, error)
}

// WatchLog appends watch history records.
type WatchLog interface {
	Record(ctx context.Context, event models.WatchEvent) error
}

// PlaybackTokenSource derives and checks per-(video, user) streaming codes.
type PlaybackTokenSource interface {
	Generate(videoID, userID string) string
	Verify(videoID, userID, code string) bool
}
