package qwenoauth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_FlagsEmptyTokensAndExpiry(t *testing.T) {
	errs := Validate(Credentials{}, time.Now())
	assert.Len(t, errs, 3)
}

func TestValidate_PassesWellFormedCredentials(t *testing.T) {
	creds := Credentials{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiryMs:     time.Now().Add(time.Hour).UnixMilli(),
	}
	assert.Empty(t, Validate(creds, time.Now()))
}

func TestValidate_FlagsExpiredCredentials(t *testing.T) {
	creds := Credentials{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiryMs:     time.Now().Add(-time.Hour).UnixMilli(),
	}
	errs := Validate(creds, time.Now())
	require.Len(t, errs, 1)
	assert.Equal(t, "expiry_date", errs[0].Field)
}

func TestNeedsRefresh_TrueWithinSkewWindow(t *testing.T) {
	creds := Credentials{ExpiryMs: time.Now().Add(20 * time.Second).UnixMilli()}
	assert.True(t, creds.NeedsRefresh(time.Now(), DefaultRefreshSkew))
}

func TestNeedsRefresh_FalseWellBeforeExpiry(t *testing.T) {
	creds := Credentials{ExpiryMs: time.Now().Add(time.Hour).UnixMilli()}
	assert.False(t, creds.NeedsRefresh(time.Now(), DefaultRefreshSkew))
}

func TestSaveAndLoadCredentials_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oauth_creds.json")

	creds := Credentials{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		ExpiryMs:     1234567890,
		ResourceURL:  "https://dashscope.example.com",
	}
	require.NoError(t, SaveCredentials(path, creds))

	loaded, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, creds, loaded)
}

func TestLoadCredentials_MissingFile(t *testing.T) {
	_, err := LoadCredentials(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
