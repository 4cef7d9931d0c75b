package query

import "testing"

func TestKeyHashRoundTrip(t *testing.T) {
	k := Key{"work-pools", "details", "my pool/with slash"}
	h := k.Hash()
	if h != "work-pools/details/my%20pool%2Fwith%20slash" {
		t.Fatalf("unexpected hash %q", h)
	}
	back, err := ParseKey(h)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if back.Hash() != h || len(back) != 3 || back[2] != "my pool/with slash" {
		t.Errorf("round trip mismatch: %#v", back)
	}
}

func TestParseKeyEmpty(t *testing.T) {
	k, err := ParseKey("")
	if err != nil || len(k) != 0 {
		t.Fatalf("expected empty key, got %#v, %v", k, err)
	}
	if _, err := ParseKey("bad%zz"); err == nil {
		t.Error("expected error for invalid escape")
	}
}

func TestKeyHasPrefix(t *testing.T) {
	k := Key{"work-pools", "details", "a"}
	cases := []struct {
		prefix Key
		want   bool
	}{
		{Key{}, true},
		{Key{"work-pools"}, true},
		{Key{"work-pools", "details"}, true},
		{Key{"work-pools", "details", "a"}, true},
		{Key{"work-pools", "details", "ab"}, false},
		{Key{"work-pools", "details", "a", "x"}, false},
		{Key{"deployments"}, false},
	}
	for _, c := range cases {
		if got := k.HasPrefix(c.prefix); got != c.want {
			t.Errorf("HasPrefix(%v) = %v, want %v", c.prefix, got, c.want)
		}
	}
}
