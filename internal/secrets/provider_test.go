package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMaster() []byte {
	return []byte("a master secret of sufficient length for derivation")
}

func TestMasterKeyProvider_DerivationIsDeterministic(t *testing.T) {
	t.Parallel()

	p, err := NewMasterKeyProvider(validMaster())
	require.NoError(t, err)

	first, err := p.SigningKey(context.Background(), "AUDIT_SIGNING_KEY")
	require.NoError(t, err)
	second, err := p.SigningKey(context.Background(), "AUDIT_SIGNING_KEY")
	require.NoError(t, err)

	assert.Len(t, first, 32)
	assert.Equal(t, first, second)
}

func TestMasterKeyProvider_NamesDeriveDistinctKeys(t *testing.T) {
	t.Parallel()

	p, err := NewMasterKeyProvider(validMaster())
	require.NoError(t, err)

	audit, err := p.SigningKey(context.Background(), "AUDIT_SIGNING_KEY")
	require.NoError(t, err)
	export, err := p.SigningKey(context.Background(), "EXPORT_SIGNING_KEY")
	require.NoError(t, err)

	assert.NotEqual(t, audit, export)
}

func TestMasterKeyProvider_RejectsShortMaster(t *testing.T) {
	t.Parallel()

	_, err := NewMasterKeyProvider([]byte("too short"))
	assert.ErrorIs(t, err, ErrSecretUnavailable)
}

// stubSecretRepo serves a single named record.
type stubSecretRepo struct {
	secret *Secret
}

func (r *stubSecretRepo) Create(context.Context, *Secret) error { return nil }

func (r *stubSecretRepo) GetByName(_ context.Context, name string) (*Secret, error) {
	if r.secret == nil || r.secret.Name != name {
		return nil, ErrSecretNotFound
	}
	return r.secret, nil
}

func (r *stubSecretRepo) Delete(context.Context, string) error { return nil }

func TestVaultProvider_ResolvesEncryptedMaster(t *testing.T) {
	t.Parallel()

	vault, err := NewVault([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	ciphertext, err := vault.Encrypt(string(validMaster()))
	require.NoError(t, err)

	p := NewVaultProvider(vault, &stubSecretRepo{secret: &Secret{Name: "AUDIT_SIGNING_KEY", Value: ciphertext}})

	key, err := p.SigningKey(context.Background(), "AUDIT_SIGNING_KEY")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	// Same master and name must derive the same key regardless of the
	// provider that held it.
	direct, err := NewMasterKeyProvider(validMaster())
	require.NoError(t, err)
	want, err := direct.SigningKey(context.Background(), "AUDIT_SIGNING_KEY")
	require.NoError(t, err)
	assert.Equal(t, want, key)
}

func TestVaultProvider_MissingRecord(t *testing.T) {
	t.Parallel()

	vault, err := NewVault([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	p := NewVaultProvider(vault, &stubSecretRepo{})

	_, err = p.SigningKey(context.Background(), "AUDIT_SIGNING_KEY")
	assert.ErrorIs(t, err, ErrSecretUnavailable)
}

func TestVaultProvider_UndecryptableRecord(t *testing.T) {
	t.Parallel()

	vault, err := NewVault([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	other, err := NewVault([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)

	// Encrypted under a different KEK.
	ciphertext, err := other.Encrypt(string(validMaster()))
	require.NoError(t, err)

	p := NewVaultProvider(vault, &stubSecretRepo{secret: &Secret{Name: "AUDIT_SIGNING_KEY", Value: ciphertext}})

	_, err = p.SigningKey(context.Background(), "AUDIT_SIGNING_KEY")
	assert.ErrorIs(t, err, ErrSecretUnavailable)
}

func TestVaultProvider_ShortMasterRejected(t *testing.T) {
	t.Parallel()

	vault, err := NewVault([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	ciphertext, err := vault.Encrypt("short")
	require.NoError(t, err)

	p := NewVaultProvider(vault, &stubSecretRepo{secret: &Secret{Name: "AUDIT_SIGNING_KEY", Value: ciphertext}})

	_, err = p.SigningKey(context.Background(), "AUDIT_SIGNING_KEY")
	assert.ErrorIs(t, err, ErrSecretUnavailable)
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()

	p := &StaticProvider{Key: []byte("fixed")}
	key, err := p.SigningKey(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, []byte("fixed"), key)

	empty := &StaticProvider{}
	_, err = empty.SigningKey(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrSecretUnavailable)
}
