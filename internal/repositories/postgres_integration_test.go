package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidvault/backend/internal/models"
	"github.com/vidvault/backend/internal/videos"
)

var (
	testPool  *pgxpool.Pool
	testCodec *videos.Codec
)

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	codec, err := videos.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "build codec: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool
	testCodec = codec

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:           uuid.NewString(),
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "secret-hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		IsActive:     true,
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := models.User{
		ID:           uuid.NewString(),
		Name:         "Alice Again",
		Email:        user.Email,
		PasswordHash: "another-hash",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
		IsActive:     true,
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	byEmail, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != user.ID || byEmail.Name != "Alice" || !byEmail.IsActive {
		t.Fatalf("unexpected user: %+v", byEmail)
	}
	if byEmail.TotalWatchTime != 0 || byEmail.LastLogin != nil || byEmail.LastWatchAt != nil {
		t.Fatalf("fresh user should have zero stats: %+v", byEmail)
	}

	byID, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != user.Email {
		t.Fatalf("unexpected email %q", byID.Email)
	}

	if _, err := repo.FindByEmail(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresUserRepository_LoginAndWatchStats(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "bob@example.com")

	loginAt := time.Now().UTC().Truncate(time.Millisecond)
	if err := repo.RecordLogin(ctx, user.ID, loginAt); err != nil {
		t.Fatalf("record login: %v", err)
	}

	watchAt := loginAt.Add(time.Minute)
	if err := repo.AddWatchTime(ctx, user.ID, 120, watchAt); err != nil {
		t.Fatalf("add watch time: %v", err)
	}
	if err := repo.AddWatchTime(ctx, user.ID, 30, watchAt.Add(time.Minute)); err != nil {
		t.Fatalf("add watch time again: %v", err)
	}

	updated, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if updated.LastLogin == nil || !timesClose(*updated.LastLogin, loginAt, time.Second) {
		t.Fatalf("unexpected last login: %v", updated.LastLogin)
	}
	if updated.TotalWatchTime != 150 {
		t.Fatalf("expected cumulative watch time 150, got %d", updated.TotalWatchTime)
	}
	if updated.LastWatchAt == nil {
		t.Fatal("expected last watch timestamp to be set")
	}

	if err := repo.RecordLogin(ctx, "missing-user", loginAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresVideoRepository_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresVideoRepository(testPool, testCodec)

	video := models.Video{
		ID:           uuid.NewString(),
		Title:        "Building Scalable Systems",
		Description:  "Architecture patterns",
		YouTubeID:    "9n8hP4dQEEw",
		ThumbnailURL: "https://img.youtube.com/vi/9n8hP4dQEEw/maxresdefault.jpg",
		IsActive:     true,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, video); err != nil {
		t.Fatalf("create video: %v", err)
	}

	// The stored column must not contain the plaintext id.
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	var stored string
	err = conn.QueryRow(ctx, `SELECT youtube_id FROM videos WHERE id = $1`, video.ID).Scan(&stored)
	conn.Release()
	if err != nil {
		t.Fatalf("select raw youtube id: %v", err)
	}
	if stored == video.YouTubeID {
		t.Fatal("youtube id must be encrypted at rest")
	}

	fetched, err := repo.FindByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("find video: %v", err)
	}
	if fetched.YouTubeID != video.YouTubeID {
		t.Fatalf("expected decrypted youtube id %q got %q", video.YouTubeID, fetched.YouTubeID)
	}

	if _, err := repo.FindByID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresVideoRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresVideoRepository(testPool, testCodec)
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, active := range []bool{true, true, true, false} {
		video := models.Video{
			ID:        uuid.NewString(),
			Title:     fmt.Sprintf("Video %d", i),
			YouTubeID: fmt.Sprintf("yt-%d", i),
			IsActive:  active,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, video); err != nil {
			t.Fatalf("create video %d: %v", i, err)
		}
	}

	page1, total, err := repo.ListActive(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 active videos got %d", total)
	}
	if len(page1) != 2 {
		t.Fatalf("expected 2 videos on page 1 got %d", len(page1))
	}
	if page1[0].Title != "Video 2" || page1[1].Title != "Video 1" {
		t.Fatalf("unexpected page order: %q, %q", page1[0].Title, page1[1].Title)
	}

	page2, _, err := repo.ListActive(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2) != 1 || page2[0].Title != "Video 0" {
		t.Fatalf("unexpected page 2: %+v", page2)
	}
}

func TestPostgresRevocationRegistry(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	registry := NewPostgresRevocationRegistry(testPool)
	jti := uuid.NewString()

	revoked, err := registry.IsRevoked(ctx, jti)
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatal("unknown jti must not be revoked")
	}

	if err := registry.Revoke(ctx, jti, "user-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// Idempotent: revoking again succeeds without error.
	if err := registry.Revoke(ctx, jti, "user-1"); err != nil {
		t.Fatalf("re-revoke: %v", err)
	}

	revoked, err = registry.IsRevoked(ctx, jti)
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Fatal("revoked jti must report revoked")
	}

	// Entries newer than the cutoff survive the purge.
	removed, err := registry.PurgeExpired(ctx, time.Now().UTC().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 purged got %d", removed)
	}

	removed, err = registry.PurgeExpired(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged got %d", removed)
	}

	revoked, err = registry.IsRevoked(ctx, jti)
	if err != nil {
		t.Fatalf("is revoked after purge: %v", err)
	}
	if revoked {
		t.Fatal("purged jti must no longer report revoked")
	}
}

func TestPostgresWatchEventRepository_Record(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresWatchEventRepository(testPool)

	duration := int64(600)
	event := models.WatchEvent{
		UserID:          uuid.NewString(),
		VideoID:         uuid.NewString(),
		WatchedAt:       time.Now().UTC().Truncate(time.Millisecond),
		Action:          models.WatchActionProgress,
		ProgressSeconds: 90,
		DurationSeconds: &duration,
		Completed:       false,
		DeviceInfo:      "test-agent",
	}

	if err := repo.Record(ctx, event); err != nil {
		t.Fatalf("record event: %v", err)
	}
	// Append-only: recording the same payload twice yields two rows.
	if err := repo.Record(ctx, event); err != nil {
		t.Fatalf("record event again: %v", err)
	}

	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	var count int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM watch_events WHERE user_id = $1`, event.UserID).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 events got %d", count)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE watch_events, revoked_tokens, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email string) models.User {
	t.Helper()
	user := models.User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "password-hash",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
