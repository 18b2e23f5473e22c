package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	errAuthRequired  = errors.New("authentication required, please sign in")
	errTokenExpired  = errors.New("token expired, please sign in again")
	errInvalidToken  = errors.New("invalid authentication token")
	errNoIdentity    = errors.New("invalid token: no user identifier")
	errMisconfigured = errors.New("server misconfiguration: JWKS URL not set")
)

// writeError sends a JSON error body matching what the frontend expects.
func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
