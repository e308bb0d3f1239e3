package cluster

import (
	"encoding/json"
	"fmt"
)

// NodeDescriptor is one node's contribution to an `overlay` snapshot (spec
// §4.8, §3 "Node"). Field names match the JSON keys the wire protocol and
// the CLI both consume.
type NodeDescriptor struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Predecessor string `json:"predecessor"`
	Successor   string `json:"successor"`
	Keys        int    `json:"keys"`
	K           int    `json:"k"`
	Mode        string `json:"mode"`
	Bootstrap   bool   `json:"bootstrap"`
}

// errRingBusy is returned when a broadcast arrives at a node that currently
// has a join or depart in flight (spec §4.8: "A broadcast MUST NOT be
// initiated while a join or depart is in progress").
var errRingBusy = fmt.Errorf("Ring busy: join or depart in progress")

func (n *Node) descriptor() NodeDescriptor {
	k, mode := n.Config.Get()
	return NodeDescriptor{
		ID:          fmt.Sprintf("%d", n.Ring.Self()),
		Address:     n.Self.Addr(),
		Predecessor: refLabel(n.Ring.Predecessor()),
		Successor:   refLabel(n.Ring.Successor()),
		Keys:        n.Store.Len(),
		K:           k,
		Mode:        string(mode),
		Bootstrap:   n.IsBootstrap,
	}
}

func refLabel(r interface{ String() string }) string {
	return r.String()
}

// Overlay implements the `overlay [initial_node]` ring-wide snapshot
// aggregation of spec §4.8, grounded on original_source's
// get_overlay(initial_node): each node prepends its own descriptor, then
// forwards to its successor unless that successor is the node that started
// the lap, in which case the recursion (and the lap) ends.
func (n *Node) Overlay(initialNode string) (map[string]NodeDescriptor, error) {
	if !n.TryJoinLock() {
		return nil, errRingBusy
	}
	defer n.UnlockJoin()

	self := fmt.Sprintf("%d", n.Ring.Self())
	result := map[string]NodeDescriptor{self: n.descriptor()}

	if initialNode == "" {
		initialNode = self
	}

	succ := n.Ring.Successor()
	succID := fmt.Sprintf("%d", succ.ID)
	if succID == initialNode {
		return result, nil
	}

	reply, err := n.Peers.CallLarge(succ, fmt.Sprintf("overlay %s", initialNode))
	if err != nil {
		n.logf("overlay forward to %s failed, continuing with local contribution only: %v", succ.Addr(), err)
		return result, nil
	}
	var downstream map[string]NodeDescriptor
	if err := json.Unmarshal(reply, &downstream); err != nil {
		n.logf("overlay reply from %s was not valid JSON, continuing with local contribution only: %v", succ.Addr(), err)
		return result, nil
	}
	for id, desc := range downstream {
		result[id] = desc
	}
	return result, nil
}

// ResetConfig implements `reset_config <k> <mode> [initial_node]` (spec
// §4.8): a ring-wide update of the replica count and consistency mode,
// clearing every node's local store since existing replicas would
// otherwise violate the new k. Aggregates one ACK per visited node, keyed
// by its short id, matching original_source's reset_configuration reply
// shape.
func (n *Node) ResetConfig(newK int, newMode Mode, initialNode string) (map[string]string, error) {
	if !n.TryJoinLock() {
		return nil, errRingBusy
	}
	defer n.UnlockJoin()

	n.Config.Set(newK, newMode)
	n.Store.Clear()

	self := fmt.Sprintf("%d", n.Ring.Self())
	result := map[string]string{ShortID(n.Ring.Self()): "ACK"}

	if initialNode == "" {
		initialNode = self
	}

	succ := n.Ring.Successor()
	succID := fmt.Sprintf("%d", succ.ID)
	if succID == initialNode {
		return result, nil
	}

	reply, err := n.Peers.CallLarge(succ, fmt.Sprintf("reset_config %d %s %s", newK, newMode, initialNode))
	if err != nil {
		n.logf("reset_config forward to %s failed, continuing with local contribution only: %v", succ.Addr(), err)
		return result, nil
	}
	var downstream map[string]string
	if err := json.Unmarshal(reply, &downstream); err != nil {
		n.logf("reset_config reply from %s was not valid JSON, continuing with local contribution only: %v", succ.Addr(), err)
		return result, nil
	}
	for id, ack := range downstream {
		result[id] = ack
	}
	return result, nil
}

// QueryAll implements `query *` (spec §4.6 "the union of every node's local
// store"), following the identical single-lap aggregation shape as Overlay
// and ResetConfig.
func (n *Node) QueryAll(initialNode string) (map[string]string, error) {
	if !n.TryJoinLock() {
		return nil, errRingBusy
	}
	defer n.UnlockJoin()

	self := fmt.Sprintf("%d", n.Ring.Self())
	result := make(map[string]string)
	for k, rec := range n.Store.Snapshot() {
		result[k] = rec.Value
	}

	if initialNode == "" {
		initialNode = self
	}

	succ := n.Ring.Successor()
	succID := fmt.Sprintf("%d", succ.ID)
	if succID == initialNode {
		return result, nil
	}

	reply, err := n.Peers.CallLarge(succ, fmt.Sprintf("query * %s", initialNode))
	if err != nil {
		n.logf("query * forward to %s failed, continuing with local contribution only: %v", succ.Addr(), err)
		return result, nil
	}
	var downstream map[string]string
	if err := json.Unmarshal(reply, &downstream); err != nil {
		n.logf("query * reply from %s was not valid JSON, continuing with local contribution only: %v", succ.Addr(), err)
		return result, nil
	}
	for k, v := range downstream {
		result[k] = v
	}
	return result, nil
}
