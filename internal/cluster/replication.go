package cluster

import (
	"errors"
	"fmt"
	"time"

	"chordkv/internal/hashid"
)

// ErrReplicationLimit is the safety backstop of spec §7: a request that
// arrives with replica_count >= k is refused rather than applied.
var ErrReplicationLimit = errors.New("Replication limit reached")

// eventualForwardDelay is the "small delay" spec §4.6 describes for
// eventual-mode background propagation.
const eventualForwardDelay = 20 * time.Millisecond

// InsertReplicated implements the replication engine's write path (spec
// §4.6) for `insert`. replicaCount is the value carried on the wire: 0 for
// a client-originated request (possibly still in the routing phase), >0
// when this node is itself a replica link.
func (n *Node) InsertReplicated(key, value string, replicaCount int) (string, error) {
	return n.mutateReplicated("insert", key, value, replicaCount)
}

// DeleteReplicated implements the replication engine's write path for
// `delete`, following the identical propagation pattern with no value
// argument (spec §4.6).
func (n *Node) DeleteReplicated(key string, replicaCount int) (string, error) {
	return n.mutateReplicated("delete", key, "", replicaCount)
}

func (n *Node) mutateReplicated(op, key, value string, replicaCount int) (string, error) {
	k, mode := n.Config.Get()
	if replicaCount >= k {
		return "", ErrReplicationLimit
	}

	h := hashid.Of(key)

	if replicaCount == 0 && !n.Ring.ResponsibleFor(h) {
		// Routing phase: not yet at the node responsible for this key.
		// Forward unchanged and relay the eventual primary's reply.
		reply, err := n.Peers.Call(n.Ring.Successor(), wireCommand(op, key, value, 0))
		if err != nil {
			return "", fmt.Errorf("route %s to successor: %w", op, err)
		}
		return reply, nil
	}

	// Either we are the primary (replicaCount==0, responsible) or we are a
	// replica link that this mutation was forwarded to (replicaCount>0).
	n.applyLocal(op, key, value, replicaCount)

	ack := fmt.Sprintf("%s applied for key %q at hop %d", humanVerb(op), key, replicaCount)

	if replicaCount == k-1 {
		// Tail of the chain: nothing further to propagate.
		return ack, nil
	}

	switch mode {
	case ModeChain:
		// Synchronous: the client's reply only returns once the tail acks,
		// giving write linearizability along the chain (spec §4.6).
		reply, err := n.Peers.Call(n.Ring.Successor(), wireCommand(op, key, value, replicaCount+1))
		if err != nil {
			return "", fmt.Errorf("propagate %s to successor: %w", op, err)
		}
		return reply, nil
	case ModeEventual:
		// Asynchronous: decouple write latency from downstream progress.
		// The per-key FIFO worker guarantees propagation order matches
		// application order even though the client doesn't wait for it.
		n.eventualQueue().enqueue(key, func() {
			time.Sleep(eventualForwardDelay)
			succ := n.Ring.Successor()
			if _, err := n.Peers.Call(succ, wireCommand(op, key, value, replicaCount+1)); err != nil {
				n.logf("eventual propagation of %s for key %q to %s failed: %v", op, key, succ.Addr(), err)
			}
		})
		return ack, nil
	default:
		return "", fmt.Errorf("unknown consistency mode %q", mode)
	}
}

func (n *Node) applyLocal(op, key, value string, hop int) {
	switch op {
	case "insert":
		n.Store.Insert(key, value, hop)
	case "delete":
		n.Store.Delete(key)
	}
}

func humanVerb(op string) string {
	if op == "insert" {
		return "Insert"
	}
	return "Delete"
}

func wireCommand(op, key, value string, replicaCount int) string {
	if op == "insert" {
		return fmt.Sprintf("insert %s %s %d", quote(key), value, replicaCount)
	}
	return fmt.Sprintf("delete %s %d", quote(key), replicaCount)
}

func quote(s string) string {
	return `"` + s + `"`
}

// logf is the single point through which the replication engine logs
// swallowed, best-effort errors (spec §7 propagation policy).
func (n *Node) logf(format string, args ...any) {
	logger.Printf(n.LogPrefix()+format, args...)
}
