package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	mgr, err := NewJWTManager("test-secret-with-enough-entropy", time.Hour)
	require.NoError(t, err)

	userID := uuid.New()
	token, err := mgr.Mint("test-client", userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "test-client", claims.ClientID)
	assert.Equal(t, "test-client", claims.Subject)
	assert.Equal(t, userID, claims.UserID)
	assert.NotEmpty(t, claims.ID)
}

func TestMintUnscopedToken(t *testing.T) {
	mgr, err := NewJWTManager("test-secret-with-enough-entropy", time.Hour)
	require.NoError(t, err)

	token, err := mgr.Mint("test-client", uuid.Nil)
	require.NoError(t, err)

	claims, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, claims.UserID)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	mgr, err := NewJWTManager("test-secret-with-enough-entropy", time.Hour)
	require.NoError(t, err)

	token, err := mgr.Mint("test-client", uuid.New())
	require.NoError(t, err)

	// Flip a character in the signature segment.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = mgr.Verify(tampered)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	mgrA, err := NewJWTManager("secret-a-with-enough-entropy", time.Hour)
	require.NoError(t, err)
	mgrB, err := NewJWTManager("secret-b-with-enough-entropy", time.Hour)
	require.NoError(t, err)

	token, err := mgrA.Mint("test-client", uuid.New())
	require.NoError(t, err)

	_, err = mgrB.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	mgr, err := NewJWTManager("test-secret-with-enough-entropy", time.Hour)
	require.NoError(t, err)
	mgr.expiration = -time.Minute

	token, err := mgr.Mint("test-client", uuid.New())
	require.NoError(t, err)

	_, err = mgr.Verify(token)
	assert.Error(t, err)
}

func TestEmptySecretGeneratesEphemeral(t *testing.T) {
	mgr, err := NewJWTManager("", time.Hour)
	require.NoError(t, err)

	token, err := mgr.Mint("test-client", uuid.Nil)
	require.NoError(t, err)
	_, err = mgr.Verify(token)
	assert.NoError(t, err)
}

func TestHashVerifyAPIKey(t *testing.T) {
	hash, err := HashAPIKey("sk-tessera-test-key")
	require.NoError(t, err)
	require.Contains(t, hash, "$")

	ok, err := VerifyAPIKey("sk-tessera-test-key", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyAPIKey("sk-tessera-wrong-key", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashAPIKeyUniqueSalts(t *testing.T) {
	h1, err := HashAPIKey("same-key")
	require.NoError(t, err)
	h2, err := HashAPIKey("same-key")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestVerifyAPIKeyMalformedHash(t *testing.T) {
	_, err := VerifyAPIKey("key", "not-a-valid-hash")
	assert.Error(t, err)

	_, err = VerifyAPIKey("key", "!!bad!!$!!bad!!")
	assert.Error(t, err)
}
