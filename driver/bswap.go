package driver

import "math/bits"

func eswap64(in uint64) uint64 {
	return bits.ReverseBytes64(in)
}

func eswap32(in uint32) uint32 {
	return bits.ReverseBytes32(in)
}

// revBytes returns a reversed copy of input.
func revBytes(input []byte) []byte {
	out := make([]byte, len(input))
	for i := range input {
		out[i] = input[len(input)-1-i]
	}
	return out
}
