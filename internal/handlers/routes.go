package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	auth := AuthHandler{
		Users:         deps.Users,
		Tokens:        deps.Tokens,
		Revoked:       deps.Revoked,
		SignupLimiter: deps.SignupLimiter,
		LoginLimiter:  deps.LoginLimiter,
	}
	videos := VideoHandler{
		Videos:   deps.Videos,
		Users:    deps.Users,
		Watch:    deps.Watch,
		Tokens:   deps.Tokens,
		Playback: deps.Playback,
	}

	mux.HandleFunc("GET /healthz", health.Handle)
	mux.HandleFunc("POST /api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("POST /api/v1/auth/login", auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("GET /api/v1/auth/me", auth.Me)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("GET /api/v1/dashboard", videos.Dashboard)
	mux.HandleFunc("GET /api/v1/videos/{id}/stream", videos.Stream)
	mux.HandleFunc("POST /api/v1/videos/{id}/watch", videos.TrackWatch)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	DB            Pinger
	Users         UserStore
	Videos        VideoStore
	Watch         WatchLog
	Tokens        TokenIssuer
	Revoked       TokenRevoker
	Playback      PlaybackTokenSource
	SignupLimiter RateLimiter
	LoginLimiter  RateLimiter
}
