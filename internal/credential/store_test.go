package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxsense/internal/apperr"
)

func TestMemoryStore_GetAbsent(t *testing.T) {
	store := NewMemoryStore(nil)

	_, err := store.Get(context.Background(), DefaultKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, apperr.ErrNotAuthorized))
}

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	in := Credential{AccessToken: "ya29.a", RefreshToken: "1//r", TokenType: "Bearer", Expiry: expiry}
	stored, err := store.Set(ctx, DefaultKey, in)
	require.NoError(t, err)
	assert.Equal(t, in, stored)

	got, err := store.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, DefaultKey))
	_, err = store.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "never-set"))
}

func TestMemoryStore_SetRejectsInvalid(t *testing.T) {
	store := NewMemoryStore(nil)

	_, err := store.Set(context.Background(), "", Credential{AccessToken: "a"})
	assert.Error(t, err)

	_, err = store.Set(context.Background(), DefaultKey, Credential{RefreshToken: "r"})
	assert.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_RefreshTokenRetention(t *testing.T) {
	tests := []struct {
		name  string
		first Credential
		next  Credential
		want  Credential
	}{
		{
			name:  "new refresh token replaces slot",
			first: Credential{AccessToken: "a1", RefreshToken: "r1"},
			next:  Credential{AccessToken: "a2", RefreshToken: "r2"},
			want:  Credential{AccessToken: "a2", RefreshToken: "r2"},
		},
		{
			name:  "access-only update keeps refresh token",
			first: Credential{AccessToken: "a1", RefreshToken: "r1"},
			next:  Credential{AccessToken: "a2", TokenType: "Bearer"},
			want:  Credential{AccessToken: "a2", RefreshToken: "r1", TokenType: "Bearer"},
		},
		{
			name:  "access-only on empty slot",
			first: Credential{},
			next:  Credential{AccessToken: "a2"},
			want:  Credential{AccessToken: "a2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore(nil)
			if !tt.first.Empty() {
				_, err := store.Set(ctx, "k", tt.first)
				require.NoError(t, err)
			}

			stored, err := store.Set(ctx, "k", tt.next)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored)

			got, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryStore_KeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	_, err := store.Set(ctx, "alice", Credential{AccessToken: "a"})
	require.NoError(t, err)

	_, err = store.Get(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("session-%d", i%5)
			_, _ = store.Set(ctx, key, Credential{AccessToken: fmt.Sprintf("a%d", i)})
			_, _ = store.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, store.Len())
}

func TestCredential_ExpiresWithin(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"no expiry", time.Time{}, false},
		{"far from expiry", now.Add(time.Hour), false},
		{"within threshold", now.Add(3 * time.Minute), true},
		{"already expired", now.Add(-time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Credential{AccessToken: "a", Expiry: tt.expiry}
			assert.Equal(t, tt.want, c.ExpiresWithin(now, TokenRefreshThreshold))
		})
	}
}

func TestCredential_TokenConversion(t *testing.T) {
	c := Credential{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: time.Unix(1700000000, 0)}
	assert.Equal(t, c, FromToken(c.Token()))
	assert.Equal(t, Credential{}, FromToken(nil))
}
