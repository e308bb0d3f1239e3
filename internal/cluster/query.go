package cluster

import (
	"fmt"

	"chordkv/internal/hashid"
	"chordkv/internal/store"
)

// Query answers `query "<key>" [hops] [initial_node]` per spec §4.6,
// dispatching to the chain or eventual read path depending on the node's
// current consistency mode. hops and initialNode come straight off the
// wire; initialNode is the empty string when the client omitted it (first
// hop of an eventual-mode lookup).
func (n *Node) Query(key string, hops int, initialNode string) (string, error) {
	_, mode := n.Config.Get()
	if mode == ModeChain {
		return n.queryChain(key, hops)
	}
	return n.queryEventual(key, hops, initialNode)
}

// queryChain implements spec §4.6's chain-mode read: routing hops (if any)
// precede chain hops on the same wire counter. Before the primary is
// reached, hops==0 and responsibility decides whether to route further;
// once a node is handling the request as part of the replica chain
// (hops>0, or hops==0 and it is the primary), hops counts chain position
// exactly as insert/delete's replica_count does, so the tail (hops==k-1)
// is the same node that would hold the tail replica of a write.
func (n *Node) queryChain(key string, hops int) (string, error) {
	k, _ := n.Config.Get()

	if hops == 0 {
		h := hashid.Of(key)
		if !n.Ring.ResponsibleFor(h) {
			reply, err := n.Peers.Call(n.Ring.Successor(), fmt.Sprintf("query %s 0", quote(key)))
			if err != nil {
				return "", fmt.Errorf("route query to successor: %w", err)
			}
			return reply, nil
		}
	}

	if hops == k-1 {
		return n.Store.Query(key), nil
	}

	reply, err := n.Peers.Call(n.Ring.Successor(), fmt.Sprintf("query %s %d", quote(key), hops+1))
	if err != nil {
		return "", fmt.Errorf("forward chain query to successor: %w", err)
	}
	return reply, nil
}

// queryEventual implements spec §4.6's eventual-mode read: any node
// possessing the key answers immediately; otherwise the request is
// forwarded to the successor, carrying initial_node and an incrementing
// hops counter, until it laps back to initial_node without a hit.
func (n *Node) queryEventual(key string, hops int, initialNode string) (string, error) {
	if rec, ok := n.Store.Get(key); ok {
		return rec.Value, nil
	}

	self := fmt.Sprintf("%d", n.Ring.Self())
	if initialNode == "" {
		initialNode = self
	} else if initialNode == self && hops > 0 {
		return store.NotFound, nil
	}

	reply, err := n.Peers.Call(n.Ring.Successor(),
		fmt.Sprintf("query %s %d %s", quote(key), hops+1, initialNode))
	if err != nil {
		return "", fmt.Errorf("forward eventual query to successor: %w", err)
	}
	return reply, nil
}
