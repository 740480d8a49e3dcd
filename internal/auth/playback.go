package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	playbackBucket = time.Hour
	// Codes are accepted for the current bucket and the two before it, so the
	// effective lifetime ranges from just under two hours to just under three
	// depending on where in a bucket the code was generated.
	playbackWindow = 3
)

// PlaybackTokens derives stateless, time-windowed codes authorizing one user
// to stream one specific video. Nothing is persisted; verification recomputes
// the expected code from the same inputs.
type PlaybackTokens struct {
	secret []byte

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time
}

// NewPlaybackTokens constructs a generator keyed with the provided secret.
func NewPlaybackTokens(secret []byte) *PlaybackTokens {
	if len(secret) == 0 {
		panic("auth: playback secret must not be empty")
	}
	return &PlaybackTokens{secret: secret}
}

// Generate returns the code for the current hour bucket. Regenerating within
// the same bucket yields the same code.
func (p *PlaybackTokens) Generate(videoID, userID string) string {
	return p.codeFor(videoID, userID, p.now().Truncate(playbackBucket))
}

// Verify reports whether the code matches the current bucket or either of the
// two preceding ones. Comparison is constant-time; malformed codes simply
// fail to match.
func (p *PlaybackTokens) Verify(videoID, userID, code string) bool {
	bucket := p.now().Truncate(playbackBucket)
	for offset := 0; offset < playbackWindow; offset++ {
		expected := p.codeFor(videoID, userID, bucket.Add(-time.Duration(offset)*playbackBucket))
		if hmac.Equal([]byte(code), []byte(expected)) {
			return true
		}
	}
	return false
}

func (p *PlaybackTokens) codeFor(videoID, userID string, bucket time.Time) string {
	mac := hmac.New(sha256.New, p.secret)
	fmt.Fprintf(mac, "%s:%s:%s", videoID, userID, bucket.Format(time.RFC3339))
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *PlaybackTokens) now() time.Time {
	if p.NowFunc != nil {
		return p.NowFunc().UTC()
	}
	return time.Now().UTC()
}
