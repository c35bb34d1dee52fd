package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestNewVault_KeyLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  []byte
		ok   bool
	}{
		{name: "32 bytes", key: validKey(), ok: true},
		{name: "empty", key: nil, ok: false},
		{name: "too short", key: []byte("short"), ok: false},
		{name: "too long", key: append(validKey(), 'x'), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewVault(tt.key)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidKey)
			}
		})
	}
}

func TestVault_RoundTrip(t *testing.T) {
	t.Parallel()

	vault, err := NewVault(validKey())
	require.NoError(t, err)

	for _, plaintext := range []string{"", "secret", "master signing secret with spaces", "café ☃"} {
		ciphertext, err := vault.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		got, err := vault.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestVault_EncryptIsNonDeterministic(t *testing.T) {
	t.Parallel()

	vault, err := NewVault(validKey())
	require.NoError(t, err)

	first, err := vault.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := vault.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVault_DecryptRejectsTampering(t *testing.T) {
	t.Parallel()

	vault, err := NewVault(validKey())
	require.NoError(t, err)

	ciphertext, err := vault.Encrypt("secret")
	require.NoError(t, err)

	// Flip one character of the base64 payload.
	tampered := []byte(ciphertext)
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}

	_, err = vault.Decrypt(string(tampered))
	assert.Error(t, err)
}

func TestVault_DecryptRejectsWrongKey(t *testing.T) {
	t.Parallel()

	vault, err := NewVault(validKey())
	require.NoError(t, err)
	other, err := NewVault([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)

	ciphertext, err := vault.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestVault_DecryptRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	vault, err := NewVault(validKey())
	require.NoError(t, err)

	_, err = vault.Decrypt("not base64!!!")
	assert.Error(t, err)

	_, err = vault.Decrypt("c2hvcnQ=") // valid base64, shorter than a nonce
	assert.Error(t, err)
}
