package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
)

const tokenIssuer = "portfolio-tracker"

// --- JWT helpers ---

// signJWT creates a signed HMAC-SHA256 JWT for the given subject.
func signJWT(subject string, config *common.AuthConfig) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(config.GetTokenExpiry())
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": "admin",
		"iss":  tokenIssuer,
		"iat":  now.Unix(),
		"exp":  expires.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.JWTSecret))
	return signed, expires, err
}

// validateJWT parses and validates a JWT token string using the given secret.
func validateJWT(tokenString string, secret []byte) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return token, claims, nil
}

// checkAdminCredentials compares against the bcrypt hash when configured,
// otherwise against the plain password. An unset password rejects everyone.
func checkAdminCredentials(config *common.AuthConfig, username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(config.AdminUsername)) != 1 {
		return false
	}

	passwordBytes := []byte(password)
	if config.AdminPasswordHash != "" {
		if len(passwordBytes) > 72 {
			passwordBytes = passwordBytes[:72]
		}
		return bcrypt.CompareHashAndPassword([]byte(config.AdminPasswordHash), passwordBytes) == nil
	}
	if config.AdminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare(passwordBytes, []byte(config.AdminPassword)) == 1
}

// handleAuthLogin handles POST /api/auth/login, exchanging admin credentials for a token.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	auth := &s.app.Config.Auth
	if !checkAdminCredentials(auth, req.Username, req.Password) {
		s.logger.Info().Str("username", req.Username).Msg("Rejected admin login")
		WriteErrorWithCode(w, http.StatusUnauthorized, "invalid credentials", "invalid_credentials")
		return
	}

	token, expires, err := signJWT(req.Username, auth)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign JWT for login")
		WriteError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{
			"token":      token,
			"token_type": "Bearer",
			"expires_at": expires.UTC(),
			"expires_in": int(time.Until(expires).Seconds()),
		},
	})
}
