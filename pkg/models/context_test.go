package models

import "testing"

func TestIsOnboardingKey(t *testing.T) {
	cases := []struct {
		key  string
		want bool
	}{
		{"getting_started_v1", true},
		{"getting_started_v2", true},
		{"getting_started_", true},
		{"getting_started", false},
		{"breathe_medium", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsOnboardingKey(tc.key); got != tc.want {
			t.Errorf("IsOnboardingKey(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}
