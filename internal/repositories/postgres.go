package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidvault/backend/internal/db"
	"github.com/vidvault/backend/internal/models"
	"github.com/vidvault/backend/internal/videos"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record. A duplicate email surfaces as
// ErrConflict via the unique index, so concurrent signups race safely.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, name, email, password_hash, created_at, updated_at, is_active, total_watch_time)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
    `, user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt, user.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their normalized email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, where string, arg any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, name, email, password_hash, created_at, updated_at, is_active,
               last_login, total_watch_time, last_watch_at
        FROM users
    `+where, arg)

	var user models.User
	if err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt, &user.IsActive,
		&user.LastLogin, &user.TotalWatchTime, &user.LastWatchAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// RecordLogin stamps the user's last successful login.
func (r *PostgresUserRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET last_login = $2, updated_at = $2
        WHERE id = $1
    `, id, at.UTC())
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AddWatchTime atomically increments the user's cumulative watch time and
// stamps the last watch moment.
func (r *PostgresUserRepository) AddWatchTime(ctx context.Context, id string, seconds int64, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET total_watch_time = total_watch_time + $2,
            last_watch_at = $3,
            updated_at = $3
        WHERE id = $1
    `, id, seconds, at.UTC())
	if err != nil {
		return fmt.Errorf("add watch time: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// PostgresVideoRepository persists the video catalog. External YouTube ids
// pass through the codec so only ciphertext reaches the store.
type PostgresVideoRepository struct {
	pool  db.Pool
	codec *videos.Codec
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool, codec *videos.Codec) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool, codec: codec}
}

// Create persists a new catalog entry, encrypting the YouTube id at rest.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	encrypted, err := r.codec.EncryptID(video.YouTubeID)
	if err != nil {
		return fmt.Errorf("encrypt youtube id: %w", err)
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, title, description, youtube_id, thumbnail_url, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, video.ID, video.Title, video.Description, encrypted, video.ThumbnailURL, video.IsActive, video.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a single video with its YouTube id decrypted.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, title, description, youtube_id, thumbnail_url, is_active, created_at
        FROM videos
        WHERE id = $1
    `, id)

	var video models.Video
	var encrypted string
	if err := row.Scan(&video.ID, &video.Title, &video.Description, &encrypted, &video.ThumbnailURL, &video.IsActive, &video.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	video.YouTubeID, err = r.codec.DecryptID(encrypted)
	if err != nil {
		return models.Video{}, fmt.Errorf("decrypt youtube id for video %s: %w", id, err)
	}

	return video, nil
}

// ListActive returns a page of active videos plus the total active count.
// The YouTube id is not selected; listing never needs it.
func (r *PostgresVideoRepository) ListActive(ctx context.Context, page, perPage int) ([]models.Video, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM videos WHERE is_active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count active videos: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT id, title, description, thumbnail_url, is_active, created_at
        FROM videos
        WHERE is_active
        ORDER BY created_at DESC
        OFFSET $1 LIMIT $2
    `, (page-1)*perPage, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("query active videos: %w", err)
	}
	defer rows.Close()

	var list []models.Video
	for rows.Next() {
		var video models.Video
		if err := rows.Scan(&video.ID, &video.Title, &video.Description, &video.ThumbnailURL, &video.IsActive, &video.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan video: %w", err)
		}
		list = append(list, video)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate videos: %w", err)
	}

	return list, total, nil
}

// PostgresWatchEventRepository appends watch history to PostgreSQL.
type PostgresWatchEventRepository struct {
	pool db.Pool
}

// NewPostgresWatchEventRepository constructs a watch event repository.
func NewPostgresWatchEventRepository(pool db.Pool) *PostgresWatchEventRepository {
	return &PostgresWatchEventRepository{pool: pool}
}

// Record appends a watch event.
func (r *PostgresWatchEventRepository) Record(ctx context.Context, event models.WatchEvent) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_events (user_id, video_id, watched_at, action, progress_seconds, duration_seconds, completed, device_info)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, event.UserID, event.VideoID, event.WatchedAt.UTC(), event.Action, event.ProgressSeconds, event.DurationSeconds, event.Completed, event.DeviceInfo)
	if err != nil {
		return fmt.Errorf("insert watch event: %w", err)
	}

	return nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ WatchEventRepository = (*PostgresWatchEventRepository)(nil)
