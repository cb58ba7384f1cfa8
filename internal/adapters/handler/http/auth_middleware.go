package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// VoterIDKey holds the authenticated voter identity (the token subject).
const VoterIDKey contextKey = "voter_id"

// AuthMiddleware accepts an HS256 token from the access_token cookie or an
// Authorization bearer header. Tokens are issued by the identity provider;
// only the subject is read here.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required.")
				return
			}

			subject, err := voterSubject(raw, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired session.")
				return
			}

			ctx := context.WithValue(r.Context(), VoterIDKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func voterSubject(raw string, secret []byte) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}

func voterIDFrom(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(VoterIDKey).(string)
	return id, ok && id != ""
}
