package ledger

import (
	"crypto/sha256"
	"encoding/hex"
)

// MerkleRoot folds ordered leaf digests into a single root: a level with an
// odd count is padded by duplicating its last digest, adjacent pairs are
// hashed as SHA256(left || right) over the hex strings, and the process
// repeats until one digest remains. Zero leaves yield the zero-hash sentinel;
// a single leaf is its own root. The pairing and duplication rules are the
// compliance artifact — roots must stay byte-for-byte reproducible across
// implementations, so they must not change.
func MerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ZeroHash
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			sum := sha256.Sum256([]byte(level[i] + level[i+1]))
			next = append(next, hex.EncodeToString(sum[:]))
		}
		level = next
	}

	return level[0]
}
