package auth_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/wikijs/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"api":1,"grp":1,"exp":%d}`, exp.Unix())))

	return header + "." + payload + ".signature"
}

func TestToken_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		token    *auth.Token
		expected bool
	}{
		{name: "nil token", token: nil, expected: false},
		{name: "empty access token", token: &auth.Token{}, expected: false},
		{name: "valid token without expiry", token: &auth.Token{AccessToken: "key"}, expected: true},
		{name: "valid token with future expiry", token: &auth.Token{AccessToken: "key", ExpiresAt: time.Now().Add(time.Hour)}, expected: true},
		{name: "expired token", token: &auth.Token{AccessToken: "key", ExpiresAt: time.Now().Add(-time.Hour)}, expected: false},
		{name: "token expiring within buffer", token: &auth.Token{AccessToken: "key", ExpiresAt: time.Now().Add(15 * time.Second)}, expected: false},
		{name: "token expiring just outside buffer", token: &auth.Token{AccessToken: "key", ExpiresAt: time.Now().Add(35 * time.Second)}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.token.Valid())
		})
	}
}

func TestTokenStore(t *testing.T) {
	t.Parallel()

	store := auth.NewTokenStore()
	assert.Nil(t, store.Get())

	store.Set(&auth.Token{AccessToken: "key"})
	require.NotNil(t, store.Get())
	assert.Equal(t, "key", store.Get().AccessToken)

	store.Clear()
	assert.Nil(t, store.Get())
}

func TestTokenStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := auth.NewTokenStore()

	var wg sync.WaitGroup

	for i := range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				if i%2 == 0 {
					store.Set(&auth.Token{AccessToken: fmt.Sprintf("token-%d", i)})
				} else {
					_ = store.Get()
				}
			}
		}()
	}

	wg.Wait()

	final := store.Get()
	require.NotNil(t, final)
	assert.Contains(t, []string{"token-0", "token-2"}, final.AccessToken)
}

func TestStaticTokenManager(t *testing.T) {
	t.Parallel()

	t.Run("opaque key", func(t *testing.T) {
		t.Parallel()

		manager := auth.NewStaticTokenManager("plain-api-key")
		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "plain-api-key", token)
		assert.True(t, manager.ExpiresAt().IsZero())
	})

	t.Run("jwt with future expiry", func(t *testing.T) {
		t.Parallel()

		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		key := makeJWT(t, exp)

		manager := auth.NewStaticTokenManager(key)
		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, key, token)
		assert.True(t, exp.Equal(manager.ExpiresAt()))
	})

	t.Run("forgotten key", func(t *testing.T) {
		t.Parallel()

		manager := auth.NewStaticTokenManager(makeJWT(t, time.Now().Add(time.Hour)))
		manager.Forget()

		_, err := manager.GetToken(context.Background())
		require.ErrorIs(t, err, auth.ErrNoToken)
		assert.True(t, manager.ExpiresAt().IsZero())
	})

	t.Run("expired jwt", func(t *testing.T) {
		t.Parallel()

		manager := auth.NewStaticTokenManager(makeJWT(t, time.Now().Add(-time.Minute)))
		_, err := manager.GetToken(context.Background())
		require.ErrorIs(t, err, auth.ErrTokenExpired)
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()

		_, err := auth.NewStaticTokenManager("").GetToken(context.Background())
		require.ErrorIs(t, err, auth.ErrNoToken)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := auth.NewStaticTokenManager("key").GetToken(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestDecodeJWTExpiration(t *testing.T) {
	t.Parallel()

	_, err := auth.DecodeJWTExpiration("not-a-jwt")
	require.ErrorIs(t, err, auth.ErrInvalidJWTFormat)

	noExp := "e30." + base64.RawURLEncoding.EncodeToString([]byte(`{"api":1}`)) + ".sig"
	_, err = auth.DecodeJWTExpiration(noExp)
	require.ErrorIs(t, err, auth.ErrNoExpirationClaim)

	_, err = auth.DecodeJWTExpiration("a.!!!.c")
	require.Error(t, err)
}

func TestMaskToken(t *testing.T) {
	t.Parallel()

	assert.Empty(t, auth.MaskToken(""))
	assert.Equal(t, "*****", auth.MaskToken("short"))
	assert.Equal(t, "eyJhbGciOi...****", auth.MaskToken("eyJhbGciOiJSUzI1NiJ9.payload.sig"))
}
