package store

import "testing"

func TestZSetAddAndScore(t *testing.T) {
	s := NewZSetStore()
	if added := s.ZAdd("k", 1, "m1"); !added {
		t.Fatalf("expected ZAdd to report a new insertion")
	}
	if added := s.ZAdd("k", 2, "m1"); added {
		t.Fatalf("expected ZAdd on an existing member to report false")
	}
	score, ok := s.ZScore("k", "m1")
	if !ok || score != 2 {
		t.Fatalf("ZScore = %v, %v; want 2, true", score, ok)
	}
}

func TestZSetOrdering(t *testing.T) {
	s := NewZSetStore()
	s.ZAdd("k", 3, "c")
	s.ZAdd("k", 1, "a")
	s.ZAdd("k", 2, "b")
	got := s.ZRange("k", 0, -1)
	want := []string{"a", "b", "c"}
	for i, m := range want {
		if got[i] != m {
			t.Fatalf("ZRange = %v; want %v", got, want)
		}
	}
}

func TestZSetTieBreakByMember(t *testing.T) {
	s := NewZSetStore()
	s.ZAdd("k", 5, "zebra")
	s.ZAdd("k", 5, "apple")
	got := s.ZRange("k", 0, -1)
	if got[0] != "apple" || got[1] != "zebra" {
		t.Fatalf("ZRange with tied scores = %v; want [apple zebra]", got)
	}
}

func TestZSetRank(t *testing.T) {
	s := NewZSetStore()
	s.ZAdd("k", 1, "a")
	s.ZAdd("k", 2, "b")
	rank, ok := s.ZRank("k", "b")
	if !ok || rank != 1 {
		t.Fatalf("ZRank(b) = %d, %v; want 1, true", rank, ok)
	}
	if _, ok := s.ZRank("k", "missing"); ok {
		t.Fatalf("ZRank on missing member should report false")
	}
}

func TestZSetRemDeletesEmptyKey(t *testing.T) {
	s := NewZSetStore()
	s.ZAdd("k", 1, "only")
	if !s.ZRem("k", "only") {
		t.Fatalf("expected ZRem to report the member existed")
	}
	if s.Exists("k") {
		t.Fatalf("expected key to be deleted once empty")
	}
	if s.ZRem("k", "only") {
		t.Fatalf("expected ZRem on an already-removed member to report false")
	}
}
