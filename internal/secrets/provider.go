package secrets

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

//nolint:gochecknoglobals // sentinel error
var ErrSecretUnavailable = errors.New("secrets: signing key unavailable")

// minMasterLen is the minimum accepted master secret length in bytes.
const minMasterLen = 32

// hkdfInfoPrefix binds every derived key to this service and key purpose, so
// a leaked derived key cannot be replayed against another consumer of the
// same master secret.
const hkdfInfoPrefix = "caretrail/audit/v1:"

// Provider resolves named signing keys. Callers resolve once at construction
// and hold the key for the component's lifetime; a Provider is never on the
// per-entry hot path.
type Provider interface {
	SigningKey(ctx context.Context, name string) ([]byte, error)
}

// deriveKey stretches the master secret into a 32-byte purpose-bound key
// with HKDF-SHA256.
func deriveKey(master []byte, name string) ([]byte, error) {
	r := hkdf.New(sha256.New, master, nil, []byte(hkdfInfoPrefix+name))

	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("secrets.deriveKey: %w", err)
	}
	return key, nil
}

// MasterKeyProvider derives signing keys from a master secret held in
// configuration.
type MasterKeyProvider struct {
	master []byte
}

// NewMasterKeyProvider creates a MasterKeyProvider. The master secret must
// be at least 32 bytes.
func NewMasterKeyProvider(master []byte) (*MasterKeyProvider, error) {
	if len(master) < minMasterLen {
		return nil, fmt.Errorf("secrets.NewMasterKeyProvider: master secret shorter than %d bytes: %w", minMasterLen, ErrSecretUnavailable)
	}
	return &MasterKeyProvider{master: master}, nil
}

// SigningKey derives the named signing key from the master secret.
func (p *MasterKeyProvider) SigningKey(_ context.Context, name string) ([]byte, error) {
	return deriveKey(p.master, name)
}

// VaultProvider resolves the master secret from an encrypted record and
// derives signing keys from it. The record is fetched on every call;
// callers cache the resolved key, not the provider output.
type VaultProvider struct {
	vault *Vault
	repo  SecretRepository
}

// NewVaultProvider creates a VaultProvider over an open vault and a secret
// repository.
func NewVaultProvider(vault *Vault, repo SecretRepository) *VaultProvider {
	return &VaultProvider{vault: vault, repo: repo}
}

// SigningKey loads and decrypts the named master record, then derives the
// purpose-bound signing key.
func (p *VaultProvider) SigningKey(ctx context.Context, name string) ([]byte, error) {
	record, err := p.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			return nil, fmt.Errorf("secrets.VaultProvider.SigningKey: %q: %w", name, ErrSecretUnavailable)
		}
		return nil, fmt.Errorf("secrets.VaultProvider.SigningKey: load %q: %w", name, err)
	}

	master, err := p.vault.Decrypt(record.Value)
	if err != nil {
		return nil, fmt.Errorf("secrets.VaultProvider.SigningKey: decrypt %q: %w", name, ErrSecretUnavailable)
	}
	if len(master) < minMasterLen {
		return nil, fmt.Errorf("secrets.VaultProvider.SigningKey: %q too short: %w", name, ErrSecretUnavailable)
	}

	return deriveKey([]byte(master), name)
}

// StaticProvider returns a fixed key for every name. Test use only.
type StaticProvider struct {
	Key []byte
}

// SigningKey returns the fixed key.
func (p *StaticProvider) SigningKey(_ context.Context, _ string) ([]byte, error) {
	if len(p.Key) == 0 {
		return nil, ErrSecretUnavailable
	}
	return p.Key, nil
}
