package cluster

import (
	"fmt"
	"net"
	"strconv"

	"chordkv/internal/hashid"
	"chordkv/internal/peer"
)

// FindSuccessor implements spec §4.4's find_successor: if this ring has one
// member, the answer is self; if id falls in (self, successor], the answer
// is the successor; otherwise the lookup is forwarded to the successor.
// Latency is O(N) by design (spec §1 Non-goals: no finger table).
func (n *Node) FindSuccessor(id hashid.ID) (peer.Ref, error) {
	if n.Ring.IsSingleton() {
		return n.Self, nil
	}
	if n.Ring.SuccessorCovers(id) {
		return n.Ring.Successor(), nil
	}

	reply, err := n.Peers.Call(n.Ring.Successor(), fmt.Sprintf("find_successor %d", id))
	if err != nil {
		return peer.Ref{}, fmt.Errorf("forward find_successor to %s: %w", n.Ring.Successor().Addr(), err)
	}
	return parsePeerAddr(reply)
}

// RemoteGetPredecessor asks target for its predecessor pointer, parsing the
// "None" sentinel into peer.None.
func (n *Node) RemoteGetPredecessor(target peer.Ref) (peer.Ref, error) {
	reply, err := n.Peers.Call(target, "get_predecessor")
	if err != nil {
		return peer.Ref{}, err
	}
	if reply == "None" {
		return peer.None, nil
	}
	return parsePeerAddr(reply)
}

// RemoteUpdatePredecessor instructs target to set its predecessor pointer
// to newPred.
func (n *Node) RemoteUpdatePredecessor(target, newPred peer.Ref) error {
	return n.expectACK(target, fmt.Sprintf("update_predecessor %s %s", newPred.IP, newPred.Port))
}

// RemoteUpdateSuccessor instructs target to set its successor pointer to
// newSucc.
func (n *Node) RemoteUpdateSuccessor(target, newSucc peer.Ref) error {
	return n.expectACK(target, fmt.Sprintf("update_successor %s %s", newSucc.IP, newSucc.Port))
}

// RemoteNetworkConfig asks target (normally the bootstrap) for its
// (k, mode) pair, per spec §4.7 step 1.
func (n *Node) RemoteNetworkConfig(target peer.Ref) (int, Mode, error) {
	reply, err := n.Peers.Call(target, "get_network_config")
	if err != nil {
		return 0, "", err
	}
	kStr, modeStr, ok := cutLast(reply, ":")
	if !ok {
		return 0, "", fmt.Errorf("malformed network config reply %q", reply)
	}
	k, err := strconv.Atoi(kStr)
	if err != nil {
		return 0, "", fmt.Errorf("malformed replica count in %q: %w", reply, err)
	}
	mode, err := ParseMode(modeStr)
	if err != nil {
		return 0, "", err
	}
	return k, mode, nil
}

func (n *Node) expectACK(target peer.Ref, command string) error {
	reply, err := n.Peers.Call(target, command)
	if err != nil {
		return err
	}
	if reply != "ACK" {
		return fmt.Errorf("unexpected reply to %q: %q", command, reply)
	}
	return nil
}

// parsePeerAddr parses a "ip:port" wire token into a peer.Ref, deriving its
// id from the address the same way NewRef does.
func parsePeerAddr(addr string) (peer.Ref, error) {
	ip, port, err := net.SplitHostPort(addr)
	if err != nil {
		return peer.Ref{}, fmt.Errorf("malformed peer address %q: %w", addr, err)
	}
	return peer.NewRef(ip, port), nil
}

// cutLast splits s on the last occurrence of sep, for "k:mode" parsing
// where mode itself can't contain ':' but keeping this symmetric with
// strings.Cut reads clean at call sites.
func cutLast(s, sep string) (before, after string, found bool) {
	idx := -1
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			idx = i
		}
	}
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+len(sep):], true
}
