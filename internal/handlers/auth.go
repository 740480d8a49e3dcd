package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidvault/backend/internal/auth"
	"github.com/vidvault/backend/internal/logging"
	"github.com/vidvault/backend/internal/models"
	"github.com/vidvault/backend/internal/repositories"
)

const minPasswordLength = 6

// AuthHandler implements user registration, login and token lifecycle endpoints.
type AuthHandler struct {
	Users   UserStore
	Tokens  TokenIssuer
	Revoked TokenRevoker

	// SignupLimiter and LoginLimiter guard the unauthenticated endpoints.
	SignupLimiter RateLimiter
	LoginLimiter  RateLimiter

	NowFunc func() time.Time
}

// SignUp handles POST /api/v1/auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	if !allowRequest(h.SignupLimiter, r, "signup") {
		respondRateLimited(ctx, w, r)
		return
	}

	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		logger.Warn("signup missing fields", "email", req.Email)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "name, email, and password are required"})
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("signup invalid email", "email", req.Email, "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid email address"})
		return
	}

	if len(req.Password) < minPasswordLength {
		logger.Warn("signup password too short", "email", req.Email)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "password must be at least 6 characters"})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to secure password"})
		return
	}

	now := h.now()
	user := models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
		IsActive:     true,
	}

	// The store's unique index on email is the sole arbiter of duplicates;
	// concurrent signups with the same address race safely here.
	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("signup conflict", "email", req.Email)
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		logger.Error("signup failed to create user", "error", err, "email", req.Email)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create account"})
		return
	}

	tokens, err := h.Tokens.IssuePair(user.ID)
	if err != nil {
		logger.Error("signup failed to issue tokens", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to issue tokens"})
		return
	}

	logger.Info("user registered", "userId", user.ID)

	respondJSON(ctx, w, http.StatusCreated, authResponse{
		Message: "User registered successfully",
		User:    publicProfile(user),
		Tokens:  tokens,
	})
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	if !allowRequest(h.LoginLimiter, r, "login") {
		respondRateLimited(ctx, w, r)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		logger.Warn("login missing credentials", "email", req.Email)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	// Unknown email and wrong password produce identical responses so the
	// two cases cannot be told apart from outside.
	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login user lookup failed", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify credentials"})
			return
		}
		logger.Warn("failed login attempt", "email", req.Email)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	if !user.IsActive {
		logger.Warn("login to deactivated account", "userId", user.ID)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "account is deactivated"})
		return
	}

	tokens, err := h.Tokens.IssuePair(user.ID)
	if err != nil {
		logger.Error("login failed to issue tokens", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to issue tokens"})
		return
	}

	if err := h.Users.RecordLogin(ctx, user.ID, h.now()); err != nil {
		logger.Warn("failed to record last login", "error", err, "userId", user.ID)
	}

	logger.Info("user logged in", "userId", user.ID)

	respondJSON(ctx, w, http.StatusOK, authResponse{
		Message: "Login successful",
		User:    publicProfile(user),
		Tokens:  tokens,
	})
}

// Refresh mints a new access token from a verified refresh token. The refresh
// token itself is not rotated and remains usable until its own expiry.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	claims, ok := authenticate(w, r, h.Tokens, auth.KindRefresh)
	if !ok {
		return
	}

	user, err := h.Users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("refresh for missing user", "userId", claims.Subject)
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logger.Error("refresh user lookup failed", "error", err, "userId", claims.Subject)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to refresh token"})
		return
	}

	if !user.IsActive {
		logger.Warn("refresh for deactivated account", "userId", user.ID)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "account is deactivated"})
		return
	}

	access, err := h.Tokens.IssueAccess(user.ID)
	if err != nil {
		logger.Error("refresh failed to mint access token", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to refresh token"})
		return
	}

	logger.Info("token refreshed", "userId", user.ID)

	respondJSON(ctx, w, http.StatusOK, refreshResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.Tokens.AccessTTL().Seconds()),
	})
}

// Me returns the authenticated user's public profile.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	claims, ok := authenticate(w, r, h.Tokens, auth.KindAccess)
	if !ok {
		return
	}

	user, err := h.Users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logger.Error("profile lookup failed", "error", err, "userId", claims.Subject)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, profileResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// Logout revokes the presented access token's id so it can never verify again.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Tokens == nil || h.Revoked == nil {
		logger.Error("authentication dependencies unavailable", "hasTokens", h.Tokens != nil, "hasRevoked", h.Revoked != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	claims, ok := authenticate(w, r, h.Tokens, auth.KindAccess)
	if !ok {
		return
	}

	// The revocation must be durable before we answer; a success response
	// followed by a crash must not resurrect the token.
	if err := h.Revoked.Revoke(ctx, claims.ID, claims.Subject); err != nil {
		logger.Error("failed to revoke token", "error", err, "userId", claims.Subject)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to log out"})
		return
	}

	logger.Info("user logged out", "userId", claims.Subject)

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type authResponse struct {
	Message string           `json:"message"`
	User    userProfile      `json:"user"`
	Tokens  models.TokenPair `json:"tokens"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type profileResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func publicProfile(user models.User) userProfile {
	return userProfile{ID: user.ID, Name: user.Name, Email: user.Email}
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func respondRateLimited(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	logging.FromContext(ctx).Warn("rate limit exceeded", "path", r.URL.Path, "ip", clientIP(r))
	respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}
