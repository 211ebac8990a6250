package quota

import (
	"testing"
	"time"
)

func TestCalculateResetDateMidMonth(t *testing.T) {
	from := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	got := calculateResetDate(from, 5)
	want := time.Date(2026, time.April, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("calculateResetDate = %v, want %v", got, want)
	}
}

func TestCalculateResetDateClampsShortMonth(t *testing.T) {
	from := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	got := calculateResetDate(from, 30)
	want := time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("calculateResetDate = %v, want %v (Feb 2026 has 28 days)", got, want)
	}
}

func TestCalculateResetDateYearRollover(t *testing.T) {
	from := time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)
	got := calculateResetDate(from, 1)
	want := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("calculateResetDate = %v, want %v", got, want)
	}
}

func TestMax0(t *testing.T) {
	if max0(-5) != 0 {
		t.Error("max0(-5) should clamp to 0")
	}
	if max0(5) != 5 {
		t.Error("max0(5) should return 5")
	}
}
