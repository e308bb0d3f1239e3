package cluster

import (
	"testing"

	"chordkv/internal/hashid"
	"chordkv/internal/peer"
)

func newTestRef(id hashid.ID) peer.Ref {
	// Tests only need a Ref with a controlled id, so we fabricate a
	// peer.Ref directly with an id that doesn't need to hash from an
	// address — PointerState never dials anything.
	return peer.Ref{IP: "test", Port: "0", ID: id}
}

func TestIsSingletonOnFreshNode(t *testing.T) {
	self := peer.NewRef("127.0.0.1", "5000")
	ps := NewPointerState(self)
	if !ps.IsSingleton() {
		t.Fatal("IsSingleton() = false for a freshly constructed ring")
	}
}

func TestResponsibleForSingleton(t *testing.T) {
	self := peer.NewRef("127.0.0.1", "5000")
	ps := NewPointerState(self)
	if !ps.ResponsibleFor(hashid.Of("anything")) {
		t.Fatal("ResponsibleFor() = false on a singleton ring; should own every key")
	}
}

func TestResponsibleForNonWrappingArc(t *testing.T) {
	self := peer.NewRef("127.0.0.1", "5000")
	ps := NewPointerState(self)
	ps.self = 100
	ps.SetPredecessor(newTestRef(50))

	cases := []struct {
		h    hashid.ID
		want bool
	}{
		{51, true},
		{100, true},
		{50, false},
		{101, false},
	}
	for _, c := range cases {
		if got := ps.ResponsibleFor(c.h); got != c.want {
			t.Errorf("ResponsibleFor(%d) = %v, want %v", c.h, got, c.want)
		}
	}
}

func TestResponsibleForWrappingArc(t *testing.T) {
	self := peer.NewRef("127.0.0.1", "5000")
	ps := NewPointerState(self)
	ps.self = 10
	ps.SetPredecessor(newTestRef(200))

	cases := []struct {
		h    hashid.ID
		want bool
	}{
		{250, true},
		{5, true},
		{10, true},
		{100, false},
		{200, false},
	}
	for _, c := range cases {
		if got := ps.ResponsibleFor(c.h); got != c.want {
			t.Errorf("ResponsibleFor(%d) = %v, want %v", c.h, got, c.want)
		}
	}
}

func TestSuccessorCovers(t *testing.T) {
	self := peer.NewRef("127.0.0.1", "5000")
	ps := NewPointerState(self)
	ps.self = 10
	ps.SetSuccessor(newTestRef(20))

	if !ps.SuccessorCovers(15) {
		t.Fatal("SuccessorCovers(15) = false, want true for id in (self, successor]")
	}
	if ps.SuccessorCovers(25) {
		t.Fatal("SuccessorCovers(25) = true, want false for id past the successor")
	}
}
