package models

import "testing"

func TestBucketStress(t *testing.T) {
	cases := []struct {
		stress float64
		want   StressBucket
	}{
		{0.0, StressLow},
		{0.2999, StressLow},
		{0.3, StressMedium},
		{0.5, StressMedium},
		{0.7, StressMedium},
		{0.7001, StressHigh},
		{1.0, StressHigh},
	}
	for _, tc := range cases {
		if got := BucketStress(tc.stress); got != tc.want {
			t.Errorf("BucketStress(%v) = %v, want %v", tc.stress, got, tc.want)
		}
	}
}
