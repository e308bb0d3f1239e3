// Package wireclient implements the CLI-facing client SDK, the raw-TCP
// analogue of the teacher's internal/client HTTP SDK: same method set
// shape (Insert/Query/Delete plus cluster verbs), same sentinel-error and
// exit-code conventions, with every call now a single framed TCP exchange
// instead of an HTTP round trip.
package wireclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"chordkv/internal/wire"
)

// ErrNotFound is returned by Query when the key is absent, mirroring the
// teacher's client.ErrNotFound sentinel.
var ErrNotFound = fmt.Errorf("key not found")

// Timeout bounds every CLI-to-node call, the same budget the internal peer
// transport uses (spec §4.3).
const Timeout = 2 * time.Second

// Client issues one-shot requests to a single chordkv node over the raw
// wire protocol.
type Client struct {
	addr string
}

// New returns a Client targeting addr ("ip:port").
func New(addr string) *Client {
	return &Client{addr: addr}
}

func (c *Client) call(command string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, Timeout)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(Timeout)); err != nil {
		return "", err
	}
	if err := wire.WriteLine(conn, command); err != nil {
		return "", fmt.Errorf("write to %s: %w", c.addr, err)
	}
	reply, err := wire.ReadLine(bufio.NewReader(conn))
	if err != nil {
		return "", fmt.Errorf("read from %s: %w", c.addr, err)
	}
	return reply, nil
}

func (c *Client) callLarge(command string) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", c.addr, Timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(Timeout)); err != nil {
		return nil, err
	}
	if err := wire.WriteLine(conn, command); err != nil {
		return nil, fmt.Errorf("write to %s: %w", c.addr, err)
	}
	return wire.DrainAll(conn)
}

// Insert stores value under key (spec §6 insert).
func (c *Client) Insert(key, value string) (string, error) {
	return c.call(fmt.Sprintf("insert %s %s 0", quote(key), value))
}

// Query fetches the stored value for key, returning ErrNotFound if absent.
func (c *Client) Query(key string) (string, error) {
	reply, err := c.call(fmt.Sprintf("query %s 0", quote(key)))
	if err != nil {
		return "", err
	}
	if reply == "Key not found" {
		return "", ErrNotFound
	}
	return reply, nil
}

// QueryAll performs the ring-wide `query *` aggregation.
func (c *Client) QueryAll() (map[string]string, error) {
	data, err := c.callLarge("query *")
	if err != nil {
		return nil, err
	}
	var result map[string]string
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode query * reply: %w", err)
	}
	return result, nil
}

// Delete removes key, returning the node's human-readable reply.
func (c *Client) Delete(key string) (string, error) {
	return c.call(fmt.Sprintf("delete %s 0", quote(key)))
}

// Overlay fetches the ring-wide node descriptor snapshot.
func (c *Client) Overlay() (map[string]json.RawMessage, error) {
	data, err := c.callLarge("overlay")
	if err != nil {
		return nil, err
	}
	var result map[string]json.RawMessage
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode overlay reply: %w", err)
	}
	return result, nil
}

// ResetConfig reconfigures the ring's replica count and consistency mode.
func (c *Client) ResetConfig(k int, mode string) (map[string]string, error) {
	data, err := c.callLarge(fmt.Sprintf("reset_config %d %s", k, mode))
	if err != nil {
		return nil, err
	}
	var result map[string]string
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode reset_config reply: %w", err)
	}
	return result, nil
}

func quote(s string) string {
	return `"` + s + `"`
}
