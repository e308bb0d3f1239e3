package cluster

import (
	"fmt"
)

// Depart runs the four-step departure protocol of spec §4.7: keys move
// first, pointer fixups second, so that any insert routed during the
// fixup window lands on a node that already knows about the shifted arc.
// It holds joinMu for its duration, refusing to interleave with a
// concurrent broadcast (spec §4.8), and never panics — every failure is
// logged and the node still proceeds to close its listener, since a
// half-finished depart is worse than a noisy one (spec §7 topological
// errors are logged and swallowed).
func (n *Node) Depart() {
	n.WithJoinLock(func() {
		n.depart()
	})
}

func (n *Node) depart() {
	self := n.Self
	succ := n.Ring.Successor()
	pred := n.Ring.Predecessor()
	departingID := fmt.Sprintf("%d", self.ID)

	// Step 1: hand every record we hold to our successor, who reconciles
	// and cascades the decrement onward.
	if !n.Ring.IsSingleton() {
		entries := make(handoffMap, n.Store.Len())
		for key, rec := range n.Store.Snapshot() {
			entries[key] = handoffRecord{Value: rec.Value, Hop: rec.Hop}
		}
		if len(entries) > 0 {
			if err := n.RemoteReceiveKeysDepart(succ, entries, departingID); err != nil {
				n.logf("depart: receive_keys handoff to %s failed: %v", succ.Addr(), err)
			}
		}
	}

	if n.Ring.IsSingleton() {
		n.logf("depart: last node in the ring, nothing to fix up")
		return
	}

	// Step 2: predecessor's successor becomes our old successor.
	if err := n.RemoteUpdateSuccessor(pred, succ); err != nil {
		n.logf("depart: update_successor on predecessor %s failed: %v", pred.Addr(), err)
	}

	// Step 3: successor's predecessor becomes our old predecessor.
	if err := n.RemoteUpdatePredecessor(succ, pred); err != nil {
		n.logf("depart: update_predecessor on successor %s failed: %v", succ.Addr(), err)
	}

	// Step 4: caller closes the listener after this returns.
	n.Store.Clear()
}
