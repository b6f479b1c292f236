// Package mw contains HTTP middleware for the estimateai-api.
package mw

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

// WidgetIDKey is the context key for the widget ID carried by an embed token.
const WidgetIDKey ContextKey = "widget_id"

// ErrInvalidToken is returned when an embed token fails verification.
var ErrInvalidToken = errors.New("invalid embed token")

const embedTokenIssuer = "estimateai-api"

// AdminAuth returns a middleware that checks the static dashboard bearer key.
// An empty key disables the check entirely (local development).
func AdminAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EmbedTokens issues and verifies the signed tokens carried by embedded
// widgets. Tokens are HS256 JWTs with the widget ID as subject.
type EmbedTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewEmbedTokens creates a token issuer/verifier.
func NewEmbedTokens(secret string, ttl time.Duration) *EmbedTokens {
	return &EmbedTokens{secret: []byte(secret), ttl: ttl}
}

// Enabled reports whether a signing secret is configured.
func (t *EmbedTokens) Enabled() bool {
	return len(t.secret) > 0
}

// Issue signs a token for the given widget.
func (t *EmbedTokens) Issue(widgetID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    embedTokenIssuer,
		Subject:   widgetID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks a token and returns the widget ID it was issued for.
func (t *EmbedTokens) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithIssuer(embedTokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// EmbedAuth returns a middleware that verifies embed tokens on public widget
// routes. The token is read from the Authorization header, or from a `token`
// query parameter for websocket upgrades where browsers cannot set headers.
func EmbedAuth(tokens *EmbedTokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokens.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				http.Error(w, `{"error":"missing embed token"}`, http.StatusUnauthorized)
				return
			}

			widgetID, err := tokens.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), WidgetIDKey, widgetID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetWidgetID extracts the embed-token widget ID from context, empty when the
// request did not carry one.
func GetWidgetID(ctx context.Context) string {
	id, _ := ctx.Value(WidgetIDKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
