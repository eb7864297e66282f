package credential

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func rawToken(header, payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(header)) + "." + enc.EncodeToString([]byte(payload)) + "." + enc.EncodeToString([]byte("mock_signature"))
}

func TestDecodeClaims(t *testing.T) {
	iat := time.Unix(1_700_000_000, 0)
	exp := iat.Add(7 * 24 * time.Hour)
	token, err := Mint(testSecret, "user_1", "a@example.com", "0xabc", iat, exp)
	require.NoError(t, err)

	claims, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "0xabc", claims.Subject)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.True(t, claims.IssuedAt.Equal(iat))
	assert.True(t, claims.HasUserID())
}

func TestDecodeMockBackendToken(t *testing.T) {
	token := rawToken(`{"alg":"HS256","typ":"JWT"}`, `{"userId":"user_9","email":"x@y.z","iat":1700000000,"exp":1700604800}`)
	claims, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user_9", claims.UserID)
	assert.Equal(t, int64(1700604800), claims.ExpiresAt.Unix())
}

func TestDecodeUnknownAlgStillYieldsClaims(t *testing.T) {
	token := rawToken(`{"alg":"EdDSA-custom"}`, `{"userId":"u","exp":1700604800}`)
	claims, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "u", claims.UserID)
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"two segments", "a.b"},
		{"empty segment", "a..c"},
		{"garbage", "header.payload.signature"},
		{"payload not json", rawToken(`{"alg":"HS256"}`, `not json`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.token)
			assert.Error(t, err)
			assert.True(t, IsExpired(tt.token, time.Unix(0, 0)))
			assert.False(t, HasUserID(tt.token))
		})
	}
}

func TestIsExpiredBoundary(t *testing.T) {
	exp := time.Unix(1_800_000_000, 0)
	token, err := Mint(testSecret, "", "", "0xabc", exp.Add(-time.Hour), exp)
	require.NoError(t, err)

	assert.False(t, IsExpired(token, exp.Add(-time.Hour)))
	assert.False(t, IsExpired(token, exp.Add(-time.Millisecond)))
	assert.True(t, IsExpired(token, exp))
	assert.True(t, IsExpired(token, exp.Add(time.Millisecond)))
	assert.True(t, IsExpired(token, exp.Add(time.Hour)))
}

func TestIsExpiredWithoutExp(t *testing.T) {
	token := rawToken(`{"alg":"HS256"}`, `{"userId":"u"}`)
	assert.True(t, IsExpired(token, time.Unix(0, 0)))
	assert.True(t, HasUserID(token))
}

func TestHasUserIDAbsent(t *testing.T) {
	token, err := Mint(testSecret, "", "", "0xabc", time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, HasUserID(token))
}

func TestRemaining(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	token, err := Mint(testSecret, "u", "", "", now, now.Add(90*time.Second))
	require.NoError(t, err)

	d, err := Remaining(token, now)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = Remaining(token, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, d)
}
