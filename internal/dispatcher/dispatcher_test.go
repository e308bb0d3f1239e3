package dispatcher

import (
	"fmt"
	"net"
	"testing"
	"time"

	"chordkv/internal/cluster"
	"chordkv/internal/hashid"
	"chordkv/internal/peer"
)

// startNode builds a node bound to a loopback port and serves it in the
// background for the duration of the test, matching the teacher's
// preference for exercising real sockets over mocks — here a plain
// net.Listener on 127.0.0.1 stands in for httptest.Server since the wire
// protocol is raw TCP, not HTTP.
func startNode(t *testing.T, isBootstrap bool, k int, mode cluster.Mode) (*cluster.Node, *Server) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	ln.Close()

	node := cluster.New("127.0.0.1", port, isBootstrap, k, mode)
	srv, err := Listen(node.Self.Addr(), node)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	return node, srv
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before timeout")
	}
}

func TestSingletonInsertQueryDelete(t *testing.T) {
	node, _ := startNode(t, true, 3, cluster.ModeChain)

	reply, err := node.InsertReplicated("alpha", "v1", 0)
	if err != nil {
		t.Fatalf("InsertReplicated() error = %v", err)
	}
	if reply == "" {
		t.Fatal("InsertReplicated() returned empty reply")
	}

	value, err := node.Query("alpha", 0, "")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if value != "v1" {
		t.Fatalf("Query() = %q, want %q", value, "v1")
	}

	if _, err := node.DeleteReplicated("alpha", 0); err != nil {
		t.Fatalf("DeleteReplicated() error = %v", err)
	}
	value, err = node.Query("alpha", 0, "")
	if err != nil {
		t.Fatalf("Query() after delete error = %v", err)
	}
	if value != "Key not found" {
		t.Fatalf("Query() after delete = %q, want %q", value, "Key not found")
	}
}

func joinRing(t *testing.T, n *cluster.Node, bootstrap peer.Ref) {
	t.Helper()
	if err := n.Join(bootstrap); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
}

func TestChainReplicationAcrossThreeNodes(t *testing.T) {
	boot, _ := startNode(t, true, 3, cluster.ModeChain)
	n2, _ := startNode(t, false, 0, "")
	n3, _ := startNode(t, false, 0, "")

	joinRing(t, n2, boot.Self)
	joinRing(t, n3, boot.Self)

	primary := findPrimary(t, []*cluster.Node{boot, n2, n3}, "x")
	if _, err := primary.InsertReplicated("x", "1", 0); err != nil {
		t.Fatalf("InsertReplicated() error = %v", err)
	}

	count := 0
	for _, n := range []*cluster.Node{boot, n2, n3} {
		if rec, ok := n.Store.Get("x"); ok {
			count++
			t.Logf("node %s holds x at hop %d", n.Self.Addr(), rec.Hop)
		}
	}
	if count != 3 {
		t.Fatalf("chain replication left %d copies of x, want 3 (K=3, N=3)", count)
	}
}

func TestEventualConvergence(t *testing.T) {
	boot, _ := startNode(t, true, 3, cluster.ModeEventual)
	n2, _ := startNode(t, false, 0, "")
	n3, _ := startNode(t, false, 0, "")

	joinRing(t, n2, boot.Self)
	joinRing(t, n3, boot.Self)

	primary := findPrimary(t, []*cluster.Node{boot, n2, n3}, "y")
	if _, err := primary.InsertReplicated("y", "v", 0); err != nil {
		t.Fatalf("InsertReplicated() error = %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		count := 0
		for _, n := range []*cluster.Node{boot, n2, n3} {
			if _, ok := n.Store.Get("y"); ok {
				count++
			}
		}
		return count == 3
	})
}

func TestJoinHandoffPreservesData(t *testing.T) {
	boot, _ := startNode(t, true, 2, cluster.ModeChain)
	n2, _ := startNode(t, false, 0, "")
	joinRing(t, n2, boot.Self)

	primary := findPrimary(t, []*cluster.Node{boot, n2}, "z")
	if _, err := primary.InsertReplicated("z", "v", 0); err != nil {
		t.Fatalf("InsertReplicated() error = %v", err)
	}

	n3, _ := startNode(t, false, 0, "")
	joinRing(t, n3, boot.Self)

	value, err := n3.Query("z", 0, "")
	if err != nil {
		t.Fatalf("Query() after join error = %v", err)
	}
	if value != "v" && value != "Key not found" {
		t.Fatalf("Query() on new node = %q", value)
	}
	// At least one node in the ring must still answer correctly regardless
	// of which one now owns the key (spec P7).
	found := false
	for _, n := range []*cluster.Node{boot, n2, n3} {
		if v, err := n.Query("z", 0, ""); err == nil && v == "v" {
			found = true
		}
	}
	if !found {
		t.Fatal("no node in the ring could answer query(z) after join; data was lost")
	}
}

func TestOverlayReturnsEveryNode(t *testing.T) {
	boot, _ := startNode(t, true, 3, cluster.ModeChain)
	n2, _ := startNode(t, false, 0, "")
	n3, _ := startNode(t, false, 0, "")
	joinRing(t, n2, boot.Self)
	joinRing(t, n3, boot.Self)

	snapshot, err := boot.Overlay("")
	if err != nil {
		t.Fatalf("Overlay() error = %v", err)
	}
	if len(snapshot) != 3 {
		t.Fatalf("Overlay() returned %d entries, want 3", len(snapshot))
	}
}

func TestResetConfigClearsStoreRingWide(t *testing.T) {
	boot, _ := startNode(t, true, 3, cluster.ModeChain)
	n2, _ := startNode(t, false, 0, "")
	joinRing(t, n2, boot.Self)

	primary := findPrimary(t, []*cluster.Node{boot, n2}, "w")
	if _, err := primary.InsertReplicated("w", "v", 0); err != nil {
		t.Fatalf("InsertReplicated() error = %v", err)
	}

	acks, err := boot.ResetConfig(2, cluster.ModeEventual, "")
	if err != nil {
		t.Fatalf("ResetConfig() error = %v", err)
	}
	if len(acks) != 2 {
		t.Fatalf("ResetConfig() returned %d acks, want 2", len(acks))
	}

	all, err := boot.QueryAll("")
	if err != nil {
		t.Fatalf("QueryAll() error = %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("QueryAll() after reset_config = %v, want empty", all)
	}
}

func TestOverlayDegradesToLocalOnlyWhenSuccessorBusy(t *testing.T) {
	boot, _ := startNode(t, true, 3, cluster.ModeChain)
	n2, _ := startNode(t, false, 0, "")
	joinRing(t, n2, boot.Self)

	// Hold n2's join/depart/broadcast lock so it replies with the plain-text
	// "Ring busy" message instead of a JSON overlay snapshot, exercising the
	// spec's mandated graceful degradation (log and keep the local-only
	// contribution) rather than a hard failure.
	if !n2.TryJoinLock() {
		t.Fatal("could not acquire n2's join lock for the test setup")
	}
	defer n2.UnlockJoin()

	snapshot, err := boot.Overlay("")
	if err != nil {
		t.Fatalf("Overlay() error = %v, want nil (should degrade gracefully)", err)
	}
	if len(snapshot) != 1 {
		t.Fatalf("Overlay() returned %d entries, want 1 (local-only contribution)", len(snapshot))
	}
}

func TestDebugDataAnswersLocallyForOwnID(t *testing.T) {
	boot, _ := startNode(t, true, 3, cluster.ModeChain)
	if _, err := boot.InsertReplicated("k", "v", 0); err != nil {
		t.Fatalf("InsertReplicated() error = %v", err)
	}

	selfID := idString(boot)
	result, err := boot.DebugData(selfID, "")
	if err != nil {
		t.Fatalf("DebugData() error = %v", err)
	}
	if result["node_id"] != selfID {
		t.Fatalf("DebugData() node_id = %v, want %v", result["node_id"], selfID)
	}
}

func TestDebugDataForwardsToOwningNode(t *testing.T) {
	boot, _ := startNode(t, true, 3, cluster.ModeChain)
	n2, _ := startNode(t, false, 0, "")
	joinRing(t, n2, boot.Self)

	boot2ID := idString(n2)
	result, err := boot.DebugData(boot2ID, "")
	if err != nil {
		t.Fatalf("DebugData() error = %v", err)
	}
	if result["node_id"] != boot2ID {
		t.Fatalf("DebugData() forwarded to %v, want node_id %v", result["node_id"], boot2ID)
	}
}

func TestDebugDataUnknownIDReturnsWithoutHang(t *testing.T) {
	boot, _ := startNode(t, true, 3, cluster.ModeChain)
	n2, _ := startNode(t, false, 0, "")
	joinRing(t, n2, boot.Self)

	result, err := boot.DebugData("not-a-real-id", "")
	if err != nil {
		t.Fatalf("DebugData() error = %v", err)
	}
	if _, ok := result["error"]; !ok {
		t.Fatalf("DebugData() for an unknown id = %v, want an error field", result)
	}
}

func idString(n *cluster.Node) string {
	return fmt.Sprintf("%d", n.Ring.Self())
}

// findPrimary returns whichever node in the ring is currently responsible
// for key, so tests don't need to hardcode hash outcomes.
func findPrimary(t *testing.T, nodes []*cluster.Node, key string) *cluster.Node {
	t.Helper()
	h := hashid.Of(key)
	for _, n := range nodes {
		if n.Ring.ResponsibleFor(h) {
			return n
		}
	}
	t.Fatalf("no node in the ring claims responsibility for %q", key)
	return nil
}
