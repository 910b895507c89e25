package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrNoToken           = errors.New("no API key configured")
	ErrTokenExpired      = errors.New("API key has expired")
	ErrInvalidJWTFormat  = errors.New("invalid JWT format")
	ErrNoExpirationClaim = errors.New("no expiration claim in JWT")
)

const (
	jwtParts       = 3
	base64Padding  = 4
	expiryBuffer   = 30 * time.Second
	previewVisible = 10
)

// TokenManager supplies the bearer token attached to every request.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
}

// Token is a Wiki.js API key together with its expiry, if the key carries one.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token is usable, treating anything that expires
// within the next 30 seconds as already expired.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(expiryBuffer).Before(t.ExpiresAt)
}

// TokenStore holds the current token behind a lock.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}

// StaticTokenManager serves a fixed API key. Wiki.js API keys are JWTs, so the
// expiry is read from the exp claim when present and expired keys are refused
// locally instead of costing a round trip.
type StaticTokenManager struct {
	store *TokenStore
}

// NewStaticTokenManager wraps apiKey. Keys that are not JWTs are accepted and
// never expire.
func NewStaticTokenManager(apiKey string) *StaticTokenManager {
	store := NewTokenStore()

	if apiKey != "" {
		token := &Token{AccessToken: apiKey}
		if expiresAt, err := DecodeJWTExpiration(apiKey); err == nil {
			token.ExpiresAt = expiresAt
		}

		store.Set(token)
	}

	return &StaticTokenManager{store: store}
}

// GetToken returns the API key.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token := m.store.Get()
	if token == nil {
		return "", ErrNoToken
	}

	if !token.Valid() {
		return "", fmt.Errorf("%w (expired at %s)", ErrTokenExpired, token.ExpiresAt.Format(time.RFC3339))
	}

	return token.AccessToken, nil
}

// ExpiresAt returns the key expiry, or the zero time when unknown.
func (m *StaticTokenManager) ExpiresAt() time.Time {
	token := m.store.Get()
	if token == nil {
		return time.Time{}
	}

	return token.ExpiresAt
}

// Forget drops the key. Later GetToken calls fail with ErrNoToken.
func (m *StaticTokenManager) Forget() {
	m.store.Clear()
}

// DecodeJWTExpiration extracts the exp claim from a JWT without verifying it.
func DecodeJWTExpiration(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != jwtParts {
		return time.Time{}, ErrInvalidJWTFormat
	}

	payload := parts[1]
	if len(payload)%base64Padding != 0 {
		payload += strings.Repeat("=", base64Padding-len(payload)%base64Padding)
	}

	payloadBytes, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode JWT payload: %w", err)
	}

	var claims struct {
		Exp int64 `json:"exp"`
	}

	err = json.Unmarshal(payloadBytes, &claims)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse JWT claims: %w", err)
	}

	if claims.Exp == 0 {
		return time.Time{}, ErrNoExpirationClaim
	}

	return time.Unix(claims.Exp, 0), nil
}

// MaskToken shortens a token for display, keeping the first few characters.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}

	if len(token) <= previewVisible {
		return strings.Repeat("*", len(token))
	}

	return token[:previewVisible] + "..." + strings.Repeat("*", 4)
}
