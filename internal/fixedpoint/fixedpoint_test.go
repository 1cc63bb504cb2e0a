package fixedpoint_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/whetstoneresearch/doppler-sub010/internal/fixedpoint"
)

func TestMul_NoOverflow(t *testing.T) {
	// Values whose product exceeds int64 range.
	a := int64(math.MaxInt64 / 2)
	b := int64(1000)

	result := fixedpoint.Mul(a, b)
	defer fixedpoint.PutBig(result)

	expected := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	if result.Cmp(expected) != 0 {
		t.Errorf("got %s, want %s", result, expected)
	}
}

func TestDiv_RoundDown(t *testing.T) {
	numerator := big.NewInt(7)
	got := fixedpoint.Div(numerator, 2, fixedpoint.RoundDown)
	if got != 3 {
		t.Errorf("7/2 round down: got %d, want 3", got)
	}
}

func TestDiv_RoundUp(t *testing.T) {
	numerator := big.NewInt(7)
	got := fixedpoint.Div(numerator, 2, fixedpoint.RoundUp)
	if got != 4 {
		t.Errorf("7/2 round up: got %d, want 4", got)
	}
}

func TestDiv_Exact(t *testing.T) {
	numerator := big.NewInt(8)
	for _, mode := range []fixedpoint.RoundingMode{fixedpoint.RoundDown, fixedpoint.RoundUp} {
		got := fixedpoint.Div(numerator, 2, mode)
		if got != 4 {
			t.Errorf("8/2 mode %d: got %d, want 4", mode, got)
		}
	}
}

func TestProRata_RoundsDown(t *testing.T) {
	// 100 * 1 / 3 = 33.33... → 33
	got := fixedpoint.ProRata(100, big.NewInt(1), big.NewInt(3))
	if got != 33 {
		t.Errorf("got %d, want 33", got)
	}
}

func TestProRata_FullShare(t *testing.T) {
	total := big.NewInt(12345)
	got := fixedpoint.ProRata(777, total, total)
	if got != 777 {
		t.Errorf("got %d, want 777", got)
	}
}

func TestBpsShare(t *testing.T) {
	tests := []struct {
		amount, bps, want int64
	}{
		{1000, 1000, 100}, // 10%
		{1000, 0, 0},
		{999, 1000, 99}, // 99.9 rounds down
		{1, 9999, 0},
	}
	for _, tt := range tests {
		got := fixedpoint.BpsShare(tt.amount, tt.bps)
		if got != tt.want {
			t.Errorf("BpsShare(%d, %d): got %d, want %d", tt.amount, tt.bps, got, tt.want)
		}
	}
}

func TestSecondsToAccrual(t *testing.T) {
	got := fixedpoint.SecondsToAccrual(500)
	want := 500 * fixedpoint.AccrualConfig.Scale
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}
