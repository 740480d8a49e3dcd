package repositories

import (
	"context"

	"github.com/vidvault/backend/internal/models"
)

// VideoRepository defines the data access contract for the video catalog.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListActive(ctx context.Context, page, perPage int) ([]models.Video, int, error)
}

// WatchEventRepository appends watch history records.
type WatchEventRepository interface {
	Record(ctx context.Context, event models.WatchEvent) error
}
