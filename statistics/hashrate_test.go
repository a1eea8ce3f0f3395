package statistics

import "testing"

func TestRecentNSum(t *testing.T) {
	hr := &HashRate{}
	for i := 0; i < 10; i++ {
		hr.Add(1.0)
	}
	if got := hr.RecentNSum(5); got != 5.0 {
		t.Fatalf("RecentNSum(5) = %v, want 5", got)
	}
	if got := hr.RecentNSum(3600); got != 10.0 {
		t.Fatalf("RecentNSum(3600) = %v, want 10", got)
	}
}

func TestRecentNSumWraps(t *testing.T) {
	hr := &HashRate{}
	for i := 0; i < 4000; i++ {
		hr.Add(2.0)
	}
	if got := hr.RecentNSum(3600); got != 7200.0 {
		t.Fatalf("RecentNSum(3600) = %v, want 7200", got)
	}
}

func TestWindowBounds(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4} {
		w.Push(v)
	}
	if w.Len() != 3 {
		t.Fatalf("Len = %d, want 3", w.Len())
	}
	if got := w.Mean(); got != 3.0 { // (2+3+4)/3
		t.Fatalf("Mean = %v, want 3", got)
	}
}

func TestWindowEmptyMean(t *testing.T) {
	if got := NewWindow(10).Mean(); got != 0 {
		t.Fatalf("empty Mean = %v, want 0", got)
	}
}
