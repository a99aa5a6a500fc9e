package identity

import (
	"context"
	"testing"
)

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier()
	ctx := context.Background()

	t.Run("empty token is unauthenticated", func(t *testing.T) {
		if _, err := v.Verify(ctx, ""); err != ErrUnauthenticated {
			t.Errorf("got err %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("non-empty token becomes the user id", func(t *testing.T) {
		id, err := v.Verify(ctx, "user-123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id.UserID != "user-123" {
			t.Errorf("UserID = %q, want %q", id.UserID, "user-123")
		}
	})
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"Bearer ", ""},
		{"bearer abc123", ""},
		{"abc123", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := BearerToken(tc.header); got != tc.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
