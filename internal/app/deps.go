package app

import (
	"fmt"
	"time"

	"github.com/vidvault/backend/internal/auth"
	"github.com/vidvault/backend/internal/config"
	"github.com/vidvault/backend/internal/db"
	"github.com/vidvault/backend/internal/handlers"
	"github.com/vidvault/backend/internal/middleware"
	"github.com/vidvault/backend/internal/repositories"
	"github.com/vidvault/backend/internal/videos"
)

const rateLimitEntryTTL = 5 * time.Minute

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(pool db.Pool, cfg config.Config, registry auth.RevocationRegistry) (handlers.Dependencies, error) {
	codec, err := videos.NewCodec(cfg.EncryptionKey)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("build video codec: %w", err)
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, registry)
	playback := auth.NewPlaybackTokens(cfg.PlaybackSecret)

	return handlers.Dependencies{
		DB:            pool,
		Users:         repositories.NewPostgresUserRepository(pool),
		Videos:        repositories.NewPostgresVideoRepository(pool, codec),
		Watch:         repositories.NewPostgresWatchEventRepository(pool),
		Tokens:        issuer,
		Revoked:       registry,
		Playback:      playback,
		SignupLimiter: middleware.NewIPRateLimiter(5, time.Minute, 5, rateLimitEntryTTL),
		LoginLimiter:  middleware.NewIPRateLimiter(10, time.Minute, 10, rateLimitEntryTTL),
	}, nil
}
