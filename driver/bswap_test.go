package driver

import "testing"

func TestEswapRoundTrip(t *testing.T) {
	for _, x := range []uint64{0, 1, 0xDEADBEEFCAFEBABE, ^uint64(0)} {
		if eswap64(eswap64(x)) != x {
			t.Fatalf("eswap64 round trip failed for %#x", x)
		}
	}
	for _, x := range []uint32{0, 1, 0xDEADBEEF, ^uint32(0)} {
		if eswap32(eswap32(x)) != x {
			t.Fatalf("eswap32 round trip failed for %#x", x)
		}
	}
	if eswap32(0x11223344) != 0x44332211 {
		t.Fatal("eswap32 wrong byte order")
	}
	if eswap64(0x1122334455667788) != 0x8877665544332211 {
		t.Fatal("eswap64 wrong byte order")
	}
}

func TestRevBytes(t *testing.T) {
	in := []byte{1, 2, 3, 4}
	got := revBytes(in)
	want := []byte{4, 3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("revBytes = %v, want %v", got, want)
		}
	}
	if in[0] != 1 {
		t.Fatal("revBytes mutated its input")
	}
}
