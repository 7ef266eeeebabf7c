package credential

import (
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestStore_SetGetDelete(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring(nil))

	_, err := store.Get("imap-password")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("imap-password", "s3cret"))
	got, err := store.Get("imap-password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, store.Delete("imap-password"))
	_, err = store.Get("imap-password")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenStore_RoundTrip(t *testing.T) {
	tokens := NewTokenStore(NewStore(keyring.NewArrayKeyring(nil)), "gmail-token")

	_, err := tokens.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &oauth2.Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		Expiry:       expiry,
	}
	require.NoError(t, tokens.Save(in))

	out, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "access", out.AccessToken)
	assert.Equal(t, "refresh", out.RefreshToken)
	assert.True(t, out.Expiry.Equal(expiry))
}

func TestTokenStore_CorruptValue(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring(nil))
	require.NoError(t, store.Set("gmail-token", "{not json"))

	_, err := NewTokenStore(store, "gmail-token").Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
