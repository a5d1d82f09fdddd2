package math_test

import (
	"testing"

	bpsmath "RiskPool/internal/math"
)

func TestMulDivFloor_Exact(t *testing.T) {
	if got := bpsmath.MulDivFloor(50, 150, 150); got != 50 {
		t.Errorf("got %d, want 50", got)
	}
}

func TestMulDivFloor_FloorsDown(t *testing.T) {
	// 7 * 3 / 2 = 10.5 → 10
	if got := bpsmath.MulDivFloor(7, 3, 2); got != 10 {
		t.Errorf("got %d, want 10", got)
	}
}

func TestMulDivFloor_LargeProductNoOverflow(t *testing.T) {
	// a * b overflows int64; int128 intermediate must carry it.
	a := int64(1 << 62)
	got := bpsmath.MulDivFloor(a, 4, 2)
	want := a * 2
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestMulDivFloor_ZeroNumerator(t *testing.T) {
	if got := bpsmath.MulDivFloor(0, 12345, 10_000); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestMulDivFloor_PanicsOnZeroDenominator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero denominator")
		}
	}()
	bpsmath.MulDivFloor(1, 1, 0)
}

func TestApplyBps(t *testing.T) {
	cases := []struct {
		amount, bps, want int64
	}{
		{100, 3000, 30},  // 30% of 100
		{100, 5000, 50},  // 50% of 100
		{100, 10000, 100},
		{100, 0, 0},
		{1, 9999, 0},     // floors to zero
		{33, 3333, 10},   // 33*3333/10000 = 10.99 → 10
	}

	for _, c := range cases {
		if got := bpsmath.ApplyBps(c.amount, c.bps); got != c.want {
			t.Errorf("ApplyBps(%d, %d) = %d, want %d", c.amount, c.bps, got, c.want)
		}
	}
}

func TestValidBps(t *testing.T) {
	if !bpsmath.ValidBps(0) || !bpsmath.ValidBps(10_000) {
		t.Error("bounds should be valid")
	}
	if bpsmath.ValidBps(-1) || bpsmath.ValidBps(10_001) {
		t.Error("out-of-range values should be invalid")
	}
}
