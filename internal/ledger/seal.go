package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ZeroHash is the sentinel PrevHash of every tenant's first entry and the
// Merkle root of an empty leaf set: 64 ASCII zeros.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Sealer computes the ledger's digests and HMAC signatures. All digests are
// lowercase hex SHA-256.
type Sealer struct {
	key []byte
}

// NewSealer creates a Sealer with the given signing key. The key is resolved
// once by the caller and held for the Sealer's lifetime; it is never
// re-fetched per entry.
func NewSealer(key []byte) Sealer {
	return Sealer{key: key}
}

// Hash returns the SHA-256 digest of canonical bytes as lowercase hex.
func (s Sealer) Hash(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Sign returns the HMAC-SHA256 of data under the signing key as lowercase hex.
func (s Sealer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// SealEntry signs canonical content concatenated with the entry hash,
// binding the signature to both the content and its chained digest.
func (s Sealer) SealEntry(canonical []byte, entryHash string) string {
	data := make([]byte, 0, len(canonical)+len(entryHash))
	data = append(data, canonical...)
	data = append(data, entryHash...)
	return s.Sign(data)
}

// Equal compares two hex digests in constant time.
func (s Sealer) Equal(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
