package cluster

import (
	"encoding/json"
	"fmt"
)

// DebugEntry is one record in a get_data dump: the stored value and its
// hop distance from the primary (spec §6 get_data).
type DebugEntry struct {
	Value string `json:"value"`
	Hop   int    `json:"hop"`
}

// DebugData answers `get_data <short_or_full_id>`. If id names this node
// (by its short or full form), it answers with its own store; otherwise it
// forwards to its successor, matching original_source's get_data branch
// (`self.forward_request("get_data", request_node_id)` when the requested
// id isn't this node's own). initialNode guards against walking the whole
// ring forever if the requested id doesn't belong to any live member.
func (n *Node) DebugData(id, initialNode string) (map[string]any, error) {
	self := fmt.Sprintf("%d", n.Ring.Self())
	if id == self || id == ShortID(n.Ring.Self()) {
		return n.localDebugData(), nil
	}

	if initialNode == "" {
		initialNode = self
	}

	succ := n.Ring.Successor()
	succID := fmt.Sprintf("%d", succ.ID)
	if succID == initialNode || n.Ring.IsSingleton() {
		// Walked the whole ring (or there's only one node) without a match.
		return map[string]any{"error": fmt.Sprintf("no node with id %q found", id)}, nil
	}

	reply, err := n.Peers.CallLarge(succ, fmt.Sprintf("get_data %s %s", id, initialNode))
	if err != nil {
		return nil, fmt.Errorf("forward get_data to successor: %w", err)
	}
	var downstream map[string]any
	if err := json.Unmarshal(reply, &downstream); err != nil {
		return nil, fmt.Errorf("decode get_data reply from %s: %w", succ.Addr(), err)
	}
	return downstream, nil
}

// LocalDebugData answers with this node's own store unconditionally, for
// callers (the admin HTTP surface) that always want the local node's data
// rather than routed lookup by id.
func (n *Node) LocalDebugData() map[string]any {
	return n.localDebugData()
}

func (n *Node) localDebugData() map[string]any {
	data := make(map[string]DebugEntry, n.Store.Len())
	for key, rec := range n.Store.Snapshot() {
		data[key] = DebugEntry{Value: rec.Value, Hop: rec.Hop}
	}
	return map[string]any{
		"node_id": fmt.Sprintf("%d", n.Ring.Self()),
		"data":    data,
	}
}
