package peer

import (
	"bufio"
	"net"
	"testing"

	"chordkv/internal/hashid"
	"chordkv/internal/wire"
)

// echoServer starts a one-shot listener that reads a single command line
// and replies with response, closing the connection afterward. It stands
// in for a chordkv node without depending on package dispatcher.
func echoServer(t *testing.T, response string) Ref {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := wire.ReadLine(bufio.NewReader(conn)); err != nil {
			return
		}
		wire.WriteLine(conn, response)
	}()

	ip, port, _ := net.SplitHostPort(ln.Addr().String())
	return NewRef(ip, port)
}

func TestCallReturnsStrippedReply(t *testing.T) {
	target := echoServer(t, "ACK")
	c := NewClient()

	reply, err := c.Call(target, "ping")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if reply != "ACK" {
		t.Fatalf("Call() = %q, want %q", reply, "ACK")
	}
}

func TestCallDialErrorOnClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ip, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	c := NewClient()
	if _, err := c.Call(NewRef(ip, port), "ping"); err == nil {
		t.Fatal("Call() to a closed port succeeded, want an error")
	}
}

func TestRefStringRendersNoneSentinel(t *testing.T) {
	if None.String() != "None" {
		t.Fatalf("None.String() = %q, want %q", None.String(), "None")
	}
	if !None.IsNone() {
		t.Fatal("None.IsNone() = false")
	}
}

func TestNewRefDerivesIDFromAddress(t *testing.T) {
	r := NewRef("127.0.0.1", "6000")
	if r.Addr() != "127.0.0.1:6000" {
		t.Fatalf("Addr() = %q, want %q", r.Addr(), "127.0.0.1:6000")
	}
	if r.ID != hashid.NodeID("127.0.0.1", "6000") {
		t.Fatal("NewRef() did not derive ID via hashid.NodeID")
	}
}
