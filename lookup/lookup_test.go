package lookup

import (
	"math"
	"testing"
)

func TestNewLGammaTable(t *testing.T) {
	tbl := NewLGammaTable(10)
	if len(tbl) != 11 {
		t.Fatalf("expected length 11, got %d", len(tbl))
	}
	// ln Gamma(1) = 0, ln Gamma(5) = ln(4!) = ln(24)
	if math.Abs(tbl[1]-0) > 1e-9 {
		t.Errorf("lgamma(1) = %v, want 0", tbl[1])
	}
	want := math.Log(24)
	if math.Abs(tbl[5]-want) > 1e-9 {
		t.Errorf("lgamma(5) = %v, want %v", tbl[5], want)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(0, 2, UniformSamplingDepth(0, 2, 100)); err == nil {
		t.Error("expected error for maxCOI < 1")
	}
	if _, err := New(4, 1, UniformSamplingDepth(4, 1, 100)); err == nil {
		t.Error("expected error for maxAlleles < 2")
	}
	if _, err := New(4, 3, nil); err == nil {
		t.Error("expected error for nil samplingDepth")
	}
	if _, err := New(4, 3, UniformSamplingDepth(4, 3, -1)); err == nil {
		t.Error("expected error for negative depth")
	}
}

func TestDepth(t *testing.T) {
	l, err := New(5, 4, UniformSamplingDepth(5, 4, 50))
	if err != nil {
		t.Fatal(err)
	}
	if d := l.Depth(3, 4, 1000); d != 50 {
		t.Errorf("Depth = %d, want 50", d)
	}
	if d := l.Depth(3, 4, 10); d != 10 {
		t.Errorf("Depth = %d, want 10", d)
	}
}
