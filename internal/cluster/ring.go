// Package cluster implements the ring-pointer state, join/depart protocol,
// replication engine, and ring-wide broadcasts for one chordkv node (spec
// §4.4–§4.8). It is the direct descendant of the teacher's cluster package
// — same RWMutex-per-concern discipline, same doc-comment density — with
// the consistent-hash-plus-virtual-nodes ring replaced by spec.md's
// successor-only pointer ring (no finger table, no vnodes; spec §1
// Non-goals).
package cluster

import (
	"sync"

	"chordkv/internal/hashid"
	"chordkv/internal/peer"
)

// PointerState holds the predecessor/successor pointer pair for one node
// and answers the two pure, local, non-networked questions the ring
// protocol needs: "am I responsible for this id?" and "is my successor the
// answer to this lookup?" (spec §4.4).
//
// Each pointer is protected by its own RWMutex so a pointer read never
// blocks on a store operation and vice versa (spec §5: "Hold the pointer
// lock only for the duration of a pointer read or write").
type PointerState struct {
	self hashid.ID

	predMu sync.RWMutex
	pred   peer.Ref

	succMu sync.RWMutex
	succ   peer.Ref
}

// NewPointerState returns pointer state for a node whose own id is self. A
// freshly created node is its own singleton ring: both pointers point at
// self until Join sets them otherwise.
func NewPointerState(self peer.Ref) *PointerState {
	return &PointerState{
		self: self.ID,
		pred: self,
		succ: self,
	}
}

// Predecessor returns the current predecessor pointer.
func (p *PointerState) Predecessor() peer.Ref {
	p.predMu.RLock()
	defer p.predMu.RUnlock()
	return p.pred
}

// Successor returns the current successor pointer.
func (p *PointerState) Successor() peer.Ref {
	p.succMu.RLock()
	defer p.succMu.RUnlock()
	return p.succ
}

// SetPredecessor atomically replaces the predecessor pointer.
func (p *PointerState) SetPredecessor(r peer.Ref) {
	p.predMu.Lock()
	defer p.predMu.Unlock()
	p.pred = r
}

// SetSuccessor atomically replaces the successor pointer.
func (p *PointerState) SetSuccessor(r peer.Ref) {
	p.succMu.Lock()
	defer p.succMu.Unlock()
	p.succ = r
}

// IsSingleton reports whether this node's successor is itself — the
// only-member-of-the-ring case, which several operations (responsibility,
// find_successor, handoff) special-case (spec §4.4, §4.7).
func (p *PointerState) IsSingleton() bool {
	return p.Successor().ID == p.self
}

// ResponsibleFor implements spec §4.4's responsible_for predicate exactly:
//
//	true iff pred.id == self.id (singleton ring)
//	     OR (pred.id < self.id AND pred.id < h <= self.id)
//	     OR (pred.id > self.id AND (h > pred.id OR h <= self.id))
func (p *PointerState) ResponsibleFor(h hashid.ID) bool {
	pred := p.Predecessor().ID
	self := p.self

	if pred == self {
		return true
	}
	if pred < self {
		return pred < h && h <= self
	}
	return h > pred || h <= self
}

// SuccessorCovers reports whether id falls in (self, successor.id] — the
// case where find_successor can answer immediately with the successor
// pointer instead of forwarding further (spec §4.4).
func (p *PointerState) SuccessorCovers(id hashid.ID) bool {
	succ := p.Successor().ID
	return hashid.Between(p.self, succ, id)
}

// Self returns this node's own id.
func (p *PointerState) Self() hashid.ID {
	return p.self
}
