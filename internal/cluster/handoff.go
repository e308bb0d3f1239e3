package cluster

import (
	"encoding/json"
	"fmt"

	"chordkv/internal/hashid"
	"chordkv/internal/peer"
	"chordkv/internal/store"
)

// handoffRecord is the wire shape of one transferred record (spec §6:
// transfer_keys/receive_keys exchange JSON map `{k: {value, hop}}`).
type handoffRecord struct {
	Value string `json:"value"`
	Hop   int    `json:"hop"`
}

// handoffMap is the wire shape of a batch of transferred records, keyed by
// data key.
type handoffMap map[string]handoffRecord

// TransferKeys implements the owning side of spec §4.7 join step 6. By the
// time this runs, the caller (the joining node N) has already become this
// node's predecessor (step 5 precedes step 6), so "the arc that now belongs
// to N" is exactly this node's primary records that ResponsibleFor no
// longer claims — no separate old-predecessor argument is needed. All
// replica records (hop > 0) transfer regardless of arc, since inserting N
// ahead of this node shifts every downstream chain position by one.
func (n *Node) TransferKeys() handoffMap {
	combined := make(handoffMap)
	for key, rec := range n.Store.Snapshot() {
		h := hashid.Of(key)
		if rec.Hop == 0 {
			if !n.Ring.ResponsibleFor(h) {
				combined[key] = handoffRecord{Value: rec.Value, Hop: rec.Hop}
			}
			continue
		}
		combined[key] = handoffRecord{Value: rec.Value, Hop: rec.Hop}
	}
	return combined
}

// ApplyHandoffIncrement is the second half of spec §4.7 join step 6: after
// handing combined off to N, this node bumps its own copy of every
// transferred key by one hop (it is now one position further from the
// primary than it used to be) and drops anything that falls off the tail.
// It returns the keys that survived, for the increment_hop cascade to the
// successor.
func (n *Node) ApplyHandoffIncrement(combined handoffMap) []string {
	k, _ := n.Config.Get()
	var survivors []string
	for key := range combined {
		existing, ok := n.Store.Get(key)
		if !ok {
			continue
		}
		existing.Hop++
		if existing.Hop > k-1 {
			n.Store.Delete(key)
			continue
		}
		n.Store.Put(key, existing)
		survivors = append(survivors, key)
	}
	return survivors
}

// ReceiveKeys installs entries the way both the join and depart flows need:
// a key this node already holds is a record whose chain position just
// moved one hop closer to primary (decrement); a key it doesn't hold is a
// brand-new arrival, installed with its given hop unchanged. A freshly
// joined node holds none of the keys it receives, so this always takes the
// insert branch for it — identical code serves join's single handoff and
// depart's per-hop reconciliation (spec §4.7).
func (n *Node) ReceiveKeys(entries handoffMap) handoffMap {
	accepted := make(handoffMap)
	for key, rec := range entries {
		if existing, ok := n.Store.Get(key); ok {
			newHop := existing.Hop - 1
			if newHop < 0 {
				n.Store.Delete(key)
				continue
			}
			n.Store.Put(key, store.Record{Value: existing.Value, Hop: newHop})
			accepted[key] = handoffRecord{Value: existing.Value, Hop: newHop}
			continue
		}
		n.Store.Put(key, store.Record{Value: rec.Value, Hop: rec.Hop})
		accepted[key] = rec
	}
	return accepted
}

// CascadeReceiveKeys forwards accepted on to this node's successor as a
// further receive_keys, the depart-only half of spec §4.7 step 1 ("S then
// forwards the accepted set onward ... so the downstream replicas also
// decrement"). departing carries the id of the node that is leaving, so
// the cascade can stop instead of looping back into a node about to
// disappear; the cascade also stops once accepted is empty (stable fixed
// point) or the ring has shrunk to one member. A plain join handoff never
// calls this — it installs once and acks, nothing more.
//
// The departing marker is sent as the token before the JSON blob, never
// after: Tokenize treats a token starting with '{' as running to end of
// line, so anything meant to survive parsing has to precede it.
func (n *Node) CascadeReceiveKeys(accepted handoffMap, departing string) {
	if len(accepted) == 0 {
		return
	}
	succ := n.Ring.Successor()
	if succ.ID == n.Ring.Self() {
		return
	}
	if departing != "" && fmt.Sprintf("%d", succ.ID) == departing {
		return
	}
	command := fmt.Sprintf("receive_keys %s %s", departingToken(departing), marshalHandoff(accepted))
	if _, err := n.Peers.Call(succ, command); err != nil {
		n.logf("receive_keys cascade to %s failed: %v", succ.Addr(), err)
	}
}

// departingToken renders the cascade-boundary marker for the wire: "-"
// means "no boundary, this is a join handoff, don't cascade further".
func departingToken(departing string) string {
	if departing == "" {
		return "-"
	}
	return departing
}

// HandleTransferKeys is the dispatcher-facing entry point for
// `transfer_keys <new_pred_id>`. It computes the handoff set, replies it
// to the caller, and — without waiting for any acknowledgment — applies
// the local increment-and-trim step and cascades it onward, completing
// spec §4.7 join step 6 entirely from this side of the RPC.
func (n *Node) HandleTransferKeys() handoffMap {
	combined := n.TransferKeys()
	keys := n.ApplyHandoffIncrement(combined)
	n.forwardIncrementHop(keys)
	return combined
}

// HandleReceiveKeys is the dispatcher-facing entry point for `receive_keys
// <departing> <json>`: decode the wire payload, install what arrived, then
// cascade onward only if departing marks this as part of a depart (not a
// one-shot join handoff). It takes the raw JSON token rather than a
// cluster-internal type so the dispatcher never needs to name handoffMap.
func (n *Node) HandleReceiveKeys(departing string, rawJSON []byte) error {
	var entries handoffMap
	if err := json.Unmarshal(rawJSON, &entries); err != nil {
		return fmt.Errorf("decode receive_keys payload: %w", err)
	}
	accepted := n.ReceiveKeys(entries)
	if departing != "-" {
		n.CascadeReceiveKeys(accepted, departing)
	}
	return nil
}

// IncrementHop applies the join-side chain shift to every key named in
// keys: bump its hop by one, dropping it if that pushes it past k-1. It
// reports which keys it actually held and modified, so the caller can
// decide whether the cascade has reached its fixed point (spec §4.7: "the
// same increment-and-trim ... until a node leaves the set unchanged").
func (n *Node) IncrementHop(keys []string) []string {
	k, _ := n.Config.Get()
	var applied []string
	for _, key := range keys {
		rec, ok := n.Store.Get(key)
		if !ok {
			continue
		}
		rec.Hop++
		if rec.Hop > k-1 {
			n.Store.Delete(key)
		} else {
			n.Store.Put(key, rec)
		}
		applied = append(applied, key)
	}
	return applied
}

// HandleIncrementHop is the dispatcher-facing entry point for
// `increment_hop <json-list>`: apply the hop shift to whatever keys from
// the list this node actually holds, then keep the cascade moving with
// every key it held, including any it just dropped past k-1.
func (n *Node) HandleIncrementHop(keys []string) {
	applied := n.IncrementHop(keys)
	n.forwardIncrementHop(applied)
}

// forwardIncrementHop sends keys on to this node's successor as a further
// increment_hop, the shared tail of both HandleTransferKeys (the first
// hop, already incremented by ApplyHandoffIncrement) and HandleIncrementHop
// (every hop after). The cascade stops once keys is empty or the ring has
// shrunk to one member.
func (n *Node) forwardIncrementHop(keys []string) {
	if len(keys) == 0 {
		return
	}
	succ := n.Ring.Successor()
	if succ.ID == n.Ring.Self() {
		return
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return
	}
	if _, err := n.Peers.Call(succ, fmt.Sprintf("increment_hop %s", data)); err != nil {
		n.logf("increment_hop cascade to %s failed: %v", succ.Addr(), err)
	}
}

func marshalHandoff(m handoffMap) string {
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// RemoteTransferKeys asks target (the joining node's would-be successor)
// to hand off the keys this node now owns (spec §4.7 step 6).
func (n *Node) RemoteTransferKeys(target peer.Ref) (handoffMap, error) {
	reply, err := n.Peers.CallLarge(target, "transfer_keys "+fmt.Sprintf("%d", n.Ring.Self()))
	if err != nil {
		return nil, fmt.Errorf("transfer_keys from %s: %w", target.Addr(), err)
	}
	var m handoffMap
	if err := json.Unmarshal(reply, &m); err != nil {
		return nil, fmt.Errorf("decode transfer_keys reply from %s: %w", target.Addr(), err)
	}
	return m, nil
}

// RemoteReceiveKeysDepart starts the depart cascade at target, carrying
// departing so the chain knows where to stop.
func (n *Node) RemoteReceiveKeysDepart(target peer.Ref, entries handoffMap, departing string) error {
	return n.expectACK(target, fmt.Sprintf("receive_keys %s %s", departingToken(departing), marshalHandoff(entries)))
}
