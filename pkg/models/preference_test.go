package models

import "testing"

func TestCappedAnnoyanceRate(t *testing.T) {
	cases := []struct {
		name string
		rate float64
		want float64
	}{
		{"below cap", 0.5, 0.5},
		{"at cap", 0.9, 0.9},
		{"above cap", 0.95, 0.9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := SurfacePreference{AnnoyanceRate: tc.rate}
			if got := p.CappedAnnoyanceRate(); got != tc.want {
				t.Errorf("CappedAnnoyanceRate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSuppressed(t *testing.T) {
	cases := []struct {
		name       string
		shownCount int
		annoyance  float64
		want       bool
	}{
		{"below shown-count threshold", 4, 0.95, false},
		{"at shown-count threshold, below annoyance threshold", 5, 0.7, false},
		{"at shown-count threshold, above annoyance threshold", 5, 0.71, true},
		{"above shown-count threshold, capped annoyance above threshold", 10, 5.0, true},
		{"never shown", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := SurfacePreference{ShownCount: tc.shownCount, AnnoyanceRate: tc.annoyance}
			if got := p.Suppressed(); got != tc.want {
				t.Errorf("Suppressed() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFinalScore(t *testing.T) {
	p := SurfacePreference{PreferenceScore: 0.25}
	if got, want := p.FinalScore(), 1.25; got != want {
		t.Errorf("FinalScore() = %v, want %v", got, want)
	}

	zero := SurfacePreference{}
	if got, want := zero.FinalScore(), 1.0; got != want {
		t.Errorf("FinalScore() for zero-value preference = %v, want %v", got, want)
	}
}
