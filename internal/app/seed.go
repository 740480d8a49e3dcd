package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vidvault/backend/internal/config"
	"github.com/vidvault/backend/internal/db"
	"github.com/vidvault/backend/internal/models"
	"github.com/vidvault/backend/internal/repositories"
	"github.com/vidvault/backend/internal/videos"
)

// runSeed inserts the sample catalog through the video repository so the
// YouTube ids end up encrypted with the configured key. A plain SQL seed file
// could not do that.
func runSeed(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	codec, err := videos.NewCodec(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("build video codec: %w", err)
	}

	repo := repositories.NewPostgresVideoRepository(pool, codec)

	if existing, _, err := repo.ListActive(ctx, 1, 1); err != nil {
		return fmt.Errorf("check existing videos: %w", err)
	} else if len(existing) > 0 {
		fmt.Println("videos already seeded")
		return nil
	}

	now := time.Now().UTC()
	samples := []models.Video{
		{
			Title:        "How Startups Fail",
			Description:  "Lessons from real founders about common pitfalls and how to avoid them in your startup journey.",
			YouTubeID:    "J8M5dPRcNus",
			ThumbnailURL: "https://img.youtube.com/vi/J8M5dPRcNus/maxresdefault.jpg",
		},
		{
			Title:        "The Art of Product Management",
			Description:  "Learn the essential skills and frameworks used by top product managers at leading tech companies.",
			YouTubeID:    "huTSPanXdqg",
			ThumbnailURL: "https://img.youtube.com/vi/huTSPanXdqg/maxresdefault.jpg",
		},
		{
			Title:        "Building Scalable Systems",
			Description:  "Architecture patterns and best practices for building systems that can handle millions of users.",
			YouTubeID:    "9n8hP4dQEEw",
			ThumbnailURL: "https://img.youtube.com/vi/9n8hP4dQEEw/maxresdefault.jpg",
		},
		{
			Title:        "Design Thinking Workshop",
			Description:  "A hands-on workshop covering the design thinking methodology for solving complex problems.",
			YouTubeID:    "5VCPyrU0qVQ",
			ThumbnailURL: "https://img.youtube.com/vi/5VCPyrU0qVQ/maxresdefault.jpg",
		},
	}

	for _, video := range samples {
		video.ID = uuid.NewString()
		video.IsActive = true
		video.CreatedAt = now

		if err := repo.Create(ctx, video); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				continue
			}
			return fmt.Errorf("seed video %q: %w", video.Title, err)
		}
	}

	fmt.Printf("seeded %d videos\n", len(samples))
	return nil
}
