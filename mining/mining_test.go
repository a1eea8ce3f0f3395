package mining

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeedHash(t *testing.T) {
	seed0 := SeedHash(0)
	require.Equal(t, make([]byte, 32), seed0[:])

	// keccak-256 of 32 zero bytes
	seed1 := SeedHash(1)
	require.Equal(t,
		"290decd9548b62a8d60345a988386fc84ba6bc95484008f6362f93160ef3e563",
		hex.EncodeToString(seed1[:]))
}

func TestEpochSizes(t *testing.T) {
	require.Equal(t, uint64(16776896), CacheSize(0))
	require.Equal(t, uint64(1073739904), DatasetSize(0))

	// Sizes grow monotonically with epoch.
	prevCache, prevDag := CacheSize(0), DatasetSize(0)
	for _, e := range []int{1, 77, 300} {
		c, d := CacheSize(e), DatasetSize(e)
		if c <= prevCache || d <= prevDag {
			t.Fatalf("epoch %d sizes did not grow: cache %d dag %d", e, c, d)
		}
		prevCache, prevDag = c, d
	}
}

func TestWorkPackageValid(t *testing.T) {
	var w WorkPackage
	require.False(t, w.Valid())
	w.Header[0] = 0xde
	require.True(t, w.Valid())
}
