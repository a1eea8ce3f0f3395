package mining

import "golang.org/x/crypto/sha3"

// Ethash size parameters.
const (
	datasetBytesInit   = 1 << 30
	datasetBytesGrowth = 1 << 23
	cacheBytesInit     = 1 << 24
	cacheBytesGrowth   = 1 << 17
	mixBytes           = 128
	hashBytes          = 64
)

// SeedHash computes the per-epoch seed: epoch rounds of keccak-256
// over a zero hash.
func SeedHash(epoch int) (seed [32]byte) {
	h := sha3.NewLegacyKeccak256()
	for i := 0; i < epoch; i++ {
		h.Reset()
		h.Write(seed[:])
		h.Sum(seed[:0])
	}
	return seed
}

// CacheSize returns the light-cache size in bytes for the epoch.
func CacheSize(epoch int) uint64 {
	size := uint64(cacheBytesInit) + cacheBytesGrowth*uint64(epoch) - hashBytes
	for !isPrime(size / hashBytes) {
		size -= 2 * hashBytes
	}
	return size
}

// DatasetSize returns the full DAG size in bytes for the epoch.
func DatasetSize(epoch int) uint64 {
	size := uint64(datasetBytesInit) + datasetBytesGrowth*uint64(epoch) - mixBytes
	for !isPrime(size / mixBytes) {
		size -= 2 * mixBytes
	}
	return size
}

func isPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for i := uint64(3); i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}
