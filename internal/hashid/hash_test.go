package hashid

import "testing"

func TestOfNormalizesCaseAndWhitespace(t *testing.T) {
	a := Of("  Alpha  ")
	b := Of("alpha")
	if a != b {
		t.Fatalf("Of(%q) = %d, Of(%q) = %d; expected equal after normalization", "  Alpha  ", a, "alpha", b)
	}
}

func TestOfIsDeterministic(t *testing.T) {
	if Of("same-key") != Of("same-key") {
		t.Fatal("Of is not deterministic for identical input")
	}
}

func TestNodeIDCombinesIPAndPort(t *testing.T) {
	a := NodeID("127.0.0.1", "5000")
	b := NodeID("127.0.0.1", "5001")
	if a == b {
		t.Fatal("NodeID should differ across ports")
	}
	if a != Of("127.0.0.1:5000") {
		t.Fatal("NodeID should hash the \"ip:port\" descriptor")
	}
}

func TestBetweenSingleton(t *testing.T) {
	if !Between(42, 42, 7) {
		t.Fatal("Between(lo, lo, h) must always be true (singleton ring)")
	}
}

func TestBetweenNonWrapping(t *testing.T) {
	cases := []struct {
		lo, hi, h ID
		want      bool
	}{
		{10, 20, 15, true},
		{10, 20, 20, true},
		{10, 20, 10, false},
		{10, 20, 25, false},
	}
	for _, c := range cases {
		if got := Between(c.lo, c.hi, c.h); got != c.want {
			t.Errorf("Between(%d, %d, %d) = %v, want %v", c.lo, c.hi, c.h, got, c.want)
		}
	}
}

func TestBetweenWrapping(t *testing.T) {
	cases := []struct {
		lo, hi, h ID
		want      bool
	}{
		{90, 10, 95, true},
		{90, 10, 5, true},
		{90, 10, 50, false},
		{90, 10, 90, false},
	}
	for _, c := range cases {
		if got := Between(c.lo, c.hi, c.h); got != c.want {
			t.Errorf("Between(%d, %d, %d) = %v, want %v", c.lo, c.hi, c.h, got, c.want)
		}
	}
}
