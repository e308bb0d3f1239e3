// Package peer implements the PeerRef value type and the connection-per-call
// transport used for every node-to-node RPC (spec §4.3).
//
// There is no connection pooling and no persistent session, mirroring the
// teacher's per-request http.Client calls in cluster.Replicator — we just
// swap the transport from HTTP to a raw framed TCP line, and a fresh dial
// for every single call.
package peer

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"chordkv/internal/hashid"
	"chordkv/internal/wire"
)

// Timeout bounds both the connect and the read phase of every peer call, per
// spec §4.3 ("Connect/read timeouts are bounded (≈2 s)") and §5
// ("every peer call uses a bounded connect+read timeout (≈2 s)").
const Timeout = 2 * time.Second

// Ref is a remote node reference. Equality is by ID; a fresh Ref is
// constructed whenever a pointer is updated (spec §3).
type Ref struct {
	IP   string
	Port string
	ID   hashid.ID
}

// NewRef builds a Ref, deriving its ID once at construction the way the
// spec's data model requires ("the peer's id is derived once on
// construction and cached", spec §9).
func NewRef(ip, port string) Ref {
	return Ref{IP: ip, Port: port, ID: hashid.NodeID(ip, port)}
}

// None is the sentinel "no predecessor/successor known" reference. It has no
// valid IP/Port and must never be dialed.
var None = Ref{}

// IsNone reports whether r is the sentinel reference.
func (r Ref) IsNone() bool {
	return r == None
}

// Addr returns the "ip:port" dial target.
func (r Ref) Addr() string {
	return net.JoinHostPort(r.IP, r.Port)
}

// String renders the reference the way the wire protocol does: "ip:port",
// or "None" for the sentinel (spec §6 get_predecessor).
func (r Ref) String() string {
	if r.IsNone() {
		return "None"
	}
	return r.Addr()
}

// Client issues one-shot requests to remote peers. It holds no state; every
// call uses the package-level Timeout, opens a fresh connection, writes one command
// line, reads the reply, and closes — there is no pooling (spec §4.3).
type Client struct{}

// NewClient returns a Client. It is stateless and safe to share.
func NewClient() *Client { return &Client{} }

// Call sends a single command line to peer and returns its one-line reply,
// with the trailing newline stripped. Use for small replies (acks,
// pointers, short values).
func (c *Client) Call(peer Ref, command string) (string, error) {
	conn, err := net.DialTimeout("tcp", peer.Addr(), Timeout)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", peer.Addr(), err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(Timeout)); err != nil {
		return "", err
	}
	if err := wire.WriteLine(conn, command); err != nil {
		return "", fmt.Errorf("write to %s: %w", peer.Addr(), err)
	}

	reply, err := wire.ReadLine(bufio.NewReader(conn))
	if err != nil {
		return "", fmt.Errorf("read from %s: %w", peer.Addr(), err)
	}
	return reply, nil
}

// CallLarge sends a single command line and drains the peer's reply until
// EOF, for responses documented as large (overlay snapshots, reset_config
// acks, `query *`, transfer_keys).
func (c *Client) CallLarge(peer Ref, command string) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", peer.Addr(), Timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", peer.Addr(), err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(Timeout)); err != nil {
		return nil, err
	}
	if err := wire.WriteLine(conn, command); err != nil {
		return nil, fmt.Errorf("write to %s: %w", peer.Addr(), err)
	}

	data, err := wire.DrainAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read from %s: %w", peer.Addr(), err)
	}
	return data, nil
}
