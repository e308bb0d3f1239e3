package cluster

import (
	"fmt"

	"chordkv/internal/peer"
)

// Join runs the six-step bring-up protocol of spec §4.7 for this node
// against a known bootstrap. It is held under joinMu for its whole
// duration, so no broadcast can start on this node mid-join (spec §4.8).
//
// original_source's node.py wraps its whole join sequence in a single
// try/except that logs failure without raising — a node that can't join
// keeps running, just unjoined. JoinOrLog reproduces that: it never
// panics or exits, only logs.
func (n *Node) Join(bootstrap peer.Ref) error {
	var joinErr error
	n.WithJoinLock(func() {
		joinErr = n.join(bootstrap)
	})
	return joinErr
}

// JoinOrLog calls Join and logs a failure instead of propagating it,
// matching original_source's best-effort bring-up.
func (n *Node) JoinOrLog(bootstrap peer.Ref) {
	if err := n.Join(bootstrap); err != nil {
		n.logf("join via bootstrap %s failed, continuing unjoined: %v", bootstrap.Addr(), err)
	}
}

func (n *Node) join(bootstrap peer.Ref) error {
	// Step 1: adopt (k, mode) from the bootstrap.
	k, mode, err := n.RemoteNetworkConfig(bootstrap)
	if err != nil {
		return fmt.Errorf("fetch network config from %s: %w", bootstrap.Addr(), err)
	}
	n.Config.Set(k, mode)

	// Step 2: resolve our successor via the bootstrap.
	reply, err := n.Peers.Call(bootstrap, fmt.Sprintf("find_successor %d", n.Self.ID))
	if err != nil {
		return fmt.Errorf("find_successor via %s: %w", bootstrap.Addr(), err)
	}
	successor, err := parsePeerAddr(reply)
	if err != nil {
		return fmt.Errorf("parse find_successor reply %q: %w", reply, err)
	}

	// Step 3: ask the resolved successor for its predecessor.
	predecessor, err := n.RemoteGetPredecessor(successor)
	if err != nil {
		return fmt.Errorf("get_predecessor from %s: %w", successor.Addr(), err)
	}

	// Step 4: set our own pointers and fix up the other side.
	n.Ring.SetSuccessor(successor)
	if predecessor.IsNone() {
		n.Ring.SetPredecessor(successor)
		if err := n.RemoteUpdateSuccessor(successor, n.Self); err != nil {
			return fmt.Errorf("update_successor on %s: %w", successor.Addr(), err)
		}
	} else {
		n.Ring.SetPredecessor(predecessor)
		if err := n.RemoteUpdateSuccessor(predecessor, n.Self); err != nil {
			return fmt.Errorf("update_successor on %s: %w", predecessor.Addr(), err)
		}
	}

	// Step 5: tell the successor its new predecessor is us.
	if err := n.RemoteUpdatePredecessor(successor, n.Self); err != nil {
		return fmt.Errorf("update_predecessor on %s: %w", successor.Addr(), err)
	}

	// Step 6: pull our share of the key space. The successor applies its
	// own increment-and-cascade step entirely on its side of this RPC
	// (see HandleTransferKeys); once its reply lands, we only need to
	// install what we received.
	entries, err := n.RemoteTransferKeys(successor)
	if err != nil {
		n.logf("transfer_keys from %s timed out or failed, continuing without them: %v", successor.Addr(), err)
		return nil
	}
	n.ReceiveKeys(entries)

	return nil
}
