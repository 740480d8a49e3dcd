package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vidvault/backend/internal/auth"
	"github.com/vidvault/backend/internal/logging"
)

// bearerToken extracts the credential from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate verifies the request's bearer token against the expected kind.
// On failure it writes the 401 response and returns ok=false.
func authenticate(w http.ResponseWriter, r *http.Request, issuer TokenIssuer, kind auth.TokenKind) (auth.Claims, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	token := bearerToken(r)
	if token == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		return auth.Claims{}, false
	}

	claims, err := issuer.Verify(ctx, token, kind)
	if err != nil {
		message := "invalid token"
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			message = "token expired"
		case errors.Is(err, auth.ErrTokenRevoked):
			message = "token revoked"
		case errors.Is(err, auth.ErrWrongTokenKind):
			message = "wrong token type"
		case errors.Is(err, auth.ErrTokenInvalid):
		default:
			logger.Error("token verification failed", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify token"})
			return auth.Claims{}, false
		}
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": message})
		return auth.Claims{}, false
	}

	return claims, true
}
