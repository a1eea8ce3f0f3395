package mining

import (
	"bytes"
	"encoding/hex"
	"time"
)

// WorkPackage is one unit of work pushed by the farm dispatcher.
type WorkPackage struct {
	Algo       string
	Epoch      int
	Header     [32]byte
	Boundary   [32]byte
	StartNonce uint64
}

// Valid reports whether the package carries a header at all.
func (w *WorkPackage) Valid() bool {
	var zero [32]byte
	return !bytes.Equal(w.Header[:], zero[:])
}

// Abridged returns the first bytes of the header for log lines.
func (w *WorkPackage) Abridged() string {
	return hex.EncodeToString(w.Header[:4])
}

// Solution carries a candidate nonce back to the farm. The FPGA does
// not return a mix-hash, so MixHash is always zero for SQRL devices.
type Solution struct {
	Nonce      uint64
	MixHash    [32]byte
	Work       WorkPackage
	Found      time.Time
	MinerIndex int
}

// EpochContext holds everything the epoch initializer needs for one
// Ethash epoch.
type EpochContext struct {
	EpochNumber int
	Seed        [32]byte
	LightSize   uint64
	LightCache  []byte // optional, only for the host-upload fallback
	DagSize     uint64
}

// NewEpochContext derives seed and sizes for the given epoch. The
// light cache itself is left nil; the on-device generator only needs
// the seed.
func NewEpochContext(epoch int) EpochContext {
	return EpochContext{
		EpochNumber: epoch,
		Seed:        SeedHash(epoch),
		LightSize:   CacheSize(epoch),
		DagSize:     DatasetSize(epoch),
	}
}
