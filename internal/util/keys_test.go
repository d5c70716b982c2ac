package util

import "testing"

func TestJoinStripKey(t *testing.T) {
	cases := []struct {
		prefix, key, stored string
	}{
		{"", "user:1", "user:1"},
		{"app", "user:1", "app:user:1"},
		{"app", "", "app:"},
	}
	for _, tc := range cases {
		if got := JoinKey(tc.prefix, tc.key); got != tc.stored {
			t.Fatalf("JoinKey(%q,%q) = %q, want %q", tc.prefix, tc.key, got, tc.stored)
		}
		k, ok := StripKey(tc.prefix, tc.stored)
		if !ok || k != tc.key {
			t.Fatalf("StripKey(%q,%q) = %q,%v", tc.prefix, tc.stored, k, ok)
		}
	}
	if _, ok := StripKey("app", "other:1"); ok {
		t.Fatalf("expected foreign key to be rejected")
	}
}

func TestValidKey(t *testing.T) {
	if ValidKey("") {
		t.Fatal("empty key must be invalid")
	}
	if !ValidKey(" ") {
		t.Fatal("whitespace key is a valid key")
	}
}
