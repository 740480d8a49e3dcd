package repositories

import (
	"context"
	"time"

	"github.com/vidvault/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
	AddWatchTime(ctx context.Context, id string, seconds int64, at time.Time) error
}
