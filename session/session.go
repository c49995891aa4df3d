// Package session issues and verifies the bearer tokens protecting the
// API and carries the authenticated user through request contexts.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "vibarr"

// Manager signs and validates HS256 bearer tokens. It is stateless;
// revocation happens by rotating the secret.
type Manager struct {
	logger *log.Logger
	secret []byte
	ttl    time.Duration
}

// New builds a token manager. An empty secret is replaced with a random
// ephemeral one, which invalidates every token on restart.
func New(secret string, ttl time.Duration, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "session", ReportTimestamp: true})
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			logger.Fatal("generate session secret", "error", err)
		}
		logger.Warn("auth.jwt_secret is not set; tokens will not survive a restart")
	}
	return &Manager{logger: logger, secret: key, ttl: ttl}
}

// IssueToken signs a bearer token for the user and reports its expiry.
func (m *Manager) IssueToken(userID int64) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(m.ttl)
	tok, err := jwt.NewBuilder().
		Issuer(issuer).
		Subject(strconv.FormatInt(userID, 10)).
		IssuedAt(now).
		Expiration(exp).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, m.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return string(signed), exp, nil
}

// VerifyToken checks signature, expiry and issuer, returning the user id
// from the subject claim.
func (m *Manager) VerifyToken(raw string) (int64, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, m.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuer))
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	id, err := strconv.ParseInt(tok.Subject(), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("token subject is not a user id")
	}
	return id, nil
}

// Require rejects requests without a valid token and stores the user id
// in the request context. Tokens arrive in the Authorization header or,
// for websocket handshakes, in a token query parameter.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := TokenFromRequest(r)
		if raw == "" {
			unauthorized(w, "authentication required")
			return
		}
		userID, err := m.VerifyToken(raw)
		if err != nil {
			m.logger.Debug("rejected token", "error", err)
			unauthorized(w, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// TokenFromRequest pulls the raw bearer token off a request.
func TokenFromRequest(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type contextKey int

const userIDKey contextKey = iota

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID extracts the authenticated user id from a request context.
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}
