package mediator

import (
	"strings"
	"testing"
)

func TestDeriveAccurateRipIdentityDeterministic(t *testing.T) {
	offsets := DiscOffsets{TrackOffsets: []int{150, 14710, 31310}, Leadout: 180000}
	a := DeriveAccurateRipIdentity(offsets)
	b := DeriveAccurateRipIdentity(offsets)
	if a != b {
		t.Fatalf("expected deterministic derivation, got %+v vs %+v", a, b)
	}
	if !strings.HasPrefix(a.Path, "/accuraterip/") {
		t.Fatalf("unexpected path shape: %s", a.Path)
	}
	if !strings.Contains(a.Path, "dBAR-003-") {
		t.Fatalf("expected 3-track path segment, got %s", a.Path)
	}
}

func TestDeriveAccurateRipIdentitySingleTrackDisc(t *testing.T) {
	offsets := DiscOffsets{TrackOffsets: []int{150}, Leadout: 180000}
	id := DeriveAccurateRipIdentity(offsets)
	if id.N != 1 {
		t.Fatalf("expected N=1, got %d", id.N)
	}
	if !strings.Contains(id.Path, "dBAR-001-") {
		t.Fatalf("expected single-track path segment, got %s", id.Path)
	}
}

func TestDigitSum(t *testing.T) {
	cases := []struct {
		in   uint32
		want uint32
	}{
		{0, 0},
		{9, 9},
		{10, 1},
		{123, 6},
		{999, 27},
	}
	for _, c := range cases {
		if got := digitSum(c.in); got != c.want {
			t.Errorf("digitSum(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDeriveAccurateRipIdentityPathLowercaseHex(t *testing.T) {
	offsets := DiscOffsets{TrackOffsets: []int{150, 20000}, Leadout: 200000}
	id := DeriveAccurateRipIdentity(offsets)
	if strings.ToLower(id.Path) != id.Path {
		t.Fatalf("expected strictly lowercase hex path, got %s", id.Path)
	}
}
