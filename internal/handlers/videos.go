package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vidvault/backend/internal/auth"
	"github.com/vidvault/backend/internal/logging"
	"github.com/vidvault/backend/internal/models"
	"github.com/vidvault/backend/internal/repositories"
)

const (
	defaultPerPage = 2
	maxPerPage     = 50
)

// VideoHandler serves the dashboard and gated playback endpoints.
type VideoHandler struct {
	Videos   VideoStore
	Users    UserStore
	Watch    WatchLog
	Tokens   TokenIssuer
	Playback PlaybackTokenSource

	NowFunc func() time.Time
}

// Dashboard handles GET /api/v1/dashboard, returning a page of active videos
// each carrying a freshly generated playback token for the caller.
func (h VideoHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil || h.Tokens == nil || h.Playback == nil {
		logger.Error("video dependencies unavailable", "hasVideos", h.Videos != nil, "hasTokens", h.Tokens != nil, "hasPlayback", h.Playback != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	claims, ok := authenticate(w, r, h.Tokens, auth.KindAccess)
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", defaultPerPage)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	list, total, err := h.Videos.ListActive(ctx, page, perPage)
	if err != nil {
		logger.Error("failed to list videos", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load dashboard"})
		return
	}

	items := make([]dashboardVideo, 0, len(list))
	for _, video := range list {
		items = append(items, dashboardVideo{
			ID:            video.ID,
			Title:         video.Title,
			Description:   video.Description,
			ThumbnailURL:  video.ThumbnailURL,
			PlaybackToken: h.Playback.Generate(video.ID, claims.Subject),
			CreatedAt:     video.CreatedAt,
		})
	}

	respondJSON(ctx, w, http.StatusOK, dashboardResponse{
		Videos: items,
		Pagination: pagination{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: (total + perPage - 1) / perPage,
		},
	})
}

// Stream handles GET /api/v1/videos/{id}/stream. Access requires both a valid
// access token and a playback token scoped to this video and user.
func (h VideoHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil || h.Tokens == nil || h.Playback == nil {
		logger.Error("video dependencies unavailable", "hasVideos", h.Videos != nil, "hasTokens", h.Tokens != nil, "hasPlayback", h.Playback != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	claims, ok := authenticate(w, r, h.Tokens, auth.KindAccess)
	if !ok {
		return
	}

	videoID := r.PathValue("id")
	token := r.URL.Query().Get("token")
	if token == "" || !h.Playback.Verify(videoID, claims.Subject, token) {
		logger.Warn("invalid playback token", "videoId", videoID, "userId", claims.Subject)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "invalid or expired playback token"})
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		logger.Error("video lookup failed", "error", err, "videoId", videoID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load video"})
		return
	}

	if !video.IsActive {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "video is not available"})
		return
	}

	// Best-effort history entry; a write failure must not block playback.
	if h.Watch != nil {
		event := models.WatchEvent{
			UserID:     claims.Subject,
			VideoID:    video.ID,
			WatchedAt:  h.now(),
			Action:     models.WatchActionStream,
			DeviceInfo: r.UserAgent(),
		}
		if err := h.Watch.Record(ctx, event); err != nil {
			logger.Warn("failed to log watch event", "error", err, "videoId", video.ID)
		}
	}

	respondJSON(ctx, w, http.StatusOK, streamResponse{
		VideoID:      video.ID,
		Title:        video.Title,
		Description:  video.Description,
		ThumbnailURL: video.ThumbnailURL,
		Stream: streamDescriptor{
			Type:      "youtube_embed",
			EmbedURL:  fmt.Sprintf("https://www.youtube.com/embed/%s", video.YouTubeID),
			PosterURL: video.ThumbnailURL,
		},
	})
}

// TrackWatch handles POST /api/v1/videos/{id}/watch, recording progress and
// updating the user's cumulative watch stats.
func (h VideoHandler) TrackWatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil || h.Tokens == nil || h.Watch == nil || h.Users == nil {
		logger.Error("video dependencies unavailable", "hasVideos", h.Videos != nil, "hasTokens", h.Tokens != nil, "hasWatch", h.Watch != nil, "hasUsers", h.Users != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	claims, ok := authenticate(w, r, h.Tokens, auth.KindAccess)
	if !ok {
		return
	}

	videoID := r.PathValue("id")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		logger.Error("video lookup failed", "error", err, "videoId", videoID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to record watch event"})
		return
	}

	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// An empty body is accepted; the original client sends progress only
		// once playback starts.
		req = watchRequest{}
	}

	now := h.now()
	event := models.WatchEvent{
		UserID:          claims.Subject,
		VideoID:         videoID,
		WatchedAt:       now,
		Action:          models.WatchActionProgress,
		ProgressSeconds: req.ProgressSeconds,
		DurationSeconds: req.DurationSeconds,
		Completed:       req.Completed,
		DeviceInfo:      r.UserAgent(),
	}

	if err := h.Watch.Record(ctx, event); err != nil {
		logger.Error("failed to record watch event", "error", err, "videoId", videoID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to record watch event"})
		return
	}

	if err := h.Users.AddWatchTime(ctx, claims.Subject, req.ProgressSeconds, now); err != nil {
		logger.Warn("failed to update watch stats", "error", err, "userId", claims.Subject)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Watch event recorded"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

type watchRequest struct {
	ProgressSeconds int64  `json:"progress_seconds"`
	DurationSeconds *int64 `json:"duration_seconds"`
	Completed       bool   `json:"completed"`
}

type dashboardVideo struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	PlaybackToken string    `json:"playback_token"`
	CreatedAt     time.Time `json:"created_at"`
}

type pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type dashboardResponse struct {
	Videos     []dashboardVideo `json:"videos"`
	Pagination pagination       `json:"pagination"`
}

type streamDescriptor struct {
	Type      string `json:"type"`
	EmbedURL  string `json:"embed_url"`
	PosterURL string `json:"poster_url"`
}

type streamResponse struct {
	VideoID      string           `json:"video_id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	ThumbnailURL string           `json:"thumbnail_url"`
	Stream       streamDescriptor `json:"stream"`
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}
