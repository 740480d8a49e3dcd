package models

import "time"

// User represents an account within the VidVault platform.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	IsActive       bool
	LastLogin      *time.Time
	TotalWatchTime int64
	LastWatchAt    *time.Time
}

// Video is a catalog entry wrapping an external YouTube video. The YouTubeID
// field is stored encrypted at rest; repositories hand it back decrypted.
type Video struct {
	ID           string
	Title        string
	Description  string
	YouTubeID    string
	ThumbnailURL string
	IsActive     bool
	CreatedAt    time.Time
}

// WatchEvent is an append-only record of a user interacting with a video.
type WatchEvent struct {
	UserID          string
	VideoID         string
	WatchedAt       time.Time
	Action          string
	ProgressSeconds int64
	DurationSeconds *int64
	Completed       bool
	DeviceInfo      string
}

const (
	WatchActionStream   = "stream_requested"
	WatchActionProgress = "progress"
)

// RevokedToken records a token id that must never verify again.
type RevokedToken struct {
	JTI       string
	UserID    string
	RevokedAt time.Time
}

// TokenPair groups the bearer credentials issued to authenticated users.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
