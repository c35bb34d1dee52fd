package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func hashPair(left, right string) string {
	sum := sha256.Sum256([]byte(left + right))
	return hex.EncodeToString(sum[:])
}

func testLeaves(n int) []string {
	leaves := make([]string, n)
	for i := range leaves {
		sum := sha256.Sum256([]byte(fmt.Sprintf("leaf-%d", i)))
		leaves[i] = hex.EncodeToString(sum[:])
	}
	return leaves
}

func TestMerkleRoot_EmptyIsZeroHash(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ZeroHash, MerkleRoot(nil))
	assert.Equal(t, ZeroHash, MerkleRoot([]string{}))
}

func TestMerkleRoot_SingleLeafIsItsOwnRoot(t *testing.T) {
	t.Parallel()

	leaves := testLeaves(1)
	assert.Equal(t, leaves[0], MerkleRoot(leaves))
}

func TestMerkleRoot_TwoLeaves(t *testing.T) {
	t.Parallel()

	leaves := testLeaves(2)
	assert.Equal(t, hashPair(leaves[0], leaves[1]), MerkleRoot(leaves))
}

func TestMerkleRoot_OddCountDuplicatesLastLeaf(t *testing.T) {
	t.Parallel()

	leaves := testLeaves(3)

	// [a, b, c] folds exactly like [a, b, c, c].
	padded := append(append([]string{}, leaves...), leaves[2])
	assert.Equal(t, MerkleRoot(padded), MerkleRoot(leaves))

	// And the fold is the expected two levels.
	want := hashPair(hashPair(leaves[0], leaves[1]), hashPair(leaves[2], leaves[2]))
	assert.Equal(t, want, MerkleRoot(leaves))
}

func TestMerkleRoot_Deterministic(t *testing.T) {
	t.Parallel()

	for _, n := range []int{2, 5, 8, 100, 101} {
		leaves := testLeaves(n)
		assert.Equal(t, MerkleRoot(leaves), MerkleRoot(leaves), "n=%d", n)
	}
}

func TestMerkleRoot_OrderSensitive(t *testing.T) {
	t.Parallel()

	leaves := testLeaves(6)
	swapped := append([]string{}, leaves...)
	swapped[1], swapped[4] = swapped[4], swapped[1]

	assert.NotEqual(t, MerkleRoot(leaves), MerkleRoot(swapped))
}

func TestMerkleRoot_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	leaves := testLeaves(5)
	snapshot := append([]string{}, leaves...)

	MerkleRoot(leaves)
	assert.Equal(t, snapshot, leaves)
}
