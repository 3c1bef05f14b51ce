package auth

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{7}, keyLength)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	key, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, keyLength)

	info, err := os.Stat(filepath.Join(dir, keyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again, "existing key is reused")
}

func TestLoadOrGenerateKey_RejectsCorruptKey(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"too short", "abcd", "invalid admin key length"},
		{"not hex", strings.Repeat("zz", keyLength), "not valid hex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, keyFile), []byte(tt.content), 0o600))

			_, err := LoadOrGenerateKey(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewTokenService_Validation(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(testKey(), 0)
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	svc, err := NewTokenService(testKey(), time.Hour)
	require.NoError(t, err)

	token, expires, err := svc.Issue("ops")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.True(t, strings.HasPrefix(claims.TokenID, "tok-"))
}

func TestVerify_Rejects(t *testing.T) {
	svc, err := NewTokenService(testKey(), time.Hour)
	require.NoError(t, err)
	token, _, err := svc.Issue("ops")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := *svc
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Verify(token)
		assert.Error(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewTokenService(bytes.Repeat([]byte{9}, keyLength), time.Hour)
		require.NoError(t, err)
		_, err = other.Verify(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Verify("v4.local.not-a-token")
		assert.Error(t, err)
	})
}
