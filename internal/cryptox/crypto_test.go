package cryptox

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)

	require.Equal(t, key1, key2)
	assert.Equal(t, "34f7a1c64df63ab1ad5b5ee06e64db5713b35f81839823304db63e8e5e6a6a39", hex.EncodeToString(key1))
}

func TestDeriveKey_SaltMatters(t *testing.T) {
	password := []byte("secret-password")
	assert.NotEqual(t, DeriveKey(password, []byte("salt-1")), DeriveKey(password, []byte("salt-2")))
}

func TestNewVerifier_Verify(t *testing.T) {
	salt, verifier := NewVerifier([]byte("correct horse"))

	require.Len(t, salt, SaltSize)
	require.Len(t, verifier, 32)

	assert.True(t, Verify([]byte("correct horse"), salt, verifier))
	assert.False(t, Verify([]byte("wrong"), salt, verifier))
	assert.False(t, Verify([]byte("correct horse"), nil, verifier))
	assert.False(t, Verify([]byte("correct horse"), salt, nil))
}
