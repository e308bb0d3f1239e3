// Package hashid computes the 64-bit ring identifiers used throughout
// chordkv. Every identifier — node id or key id — is derived the same way,
// through Of; NodeID and Between are thin helpers on top of it.
package hashid

import (
	"crypto/sha1"
	"encoding/binary"
	"strings"
)

// ID is a ring-space identifier: a 64-bit unsigned integer compared with
// modular (wrap-around) ordering, never plain integer ordering.
type ID = uint64

// Of normalizes s (lowercase, trim surrounding whitespace) and returns the
// SHA-1 digest of the normalized string reduced modulo 2^64.
//
// The same normalization is applied whether s is a node descriptor
// ("ip:port") or a data key, per spec §4.1.
func Of(s string) ID {
	normalized := strings.ToLower(strings.TrimSpace(s))
	sum := sha1.Sum([]byte(normalized))
	// Fold the 160-bit digest down to 64 bits by taking the leading 8
	// bytes, the same "truncate the digest" approach the teacher's
	// ConsistentHash.hash and Ring.hash take for their 32-bit rings.
	return binary.BigEndian.Uint64(sum[:8])
}

// NodeID hashes a node's "ip:port" descriptor.
func NodeID(ip string, port string) ID {
	return Of(ip + ":" + port)
}

// Between reports whether h lies in the ring arc (lo, hi], walking
// clockwise from lo to hi. It backs find_successor's routing check
// (cluster.PointerState.SuccessorCovers); cluster.PointerState.ResponsibleFor
// applies the same arc rule with its own comparison.
func Between(lo, hi, h ID) bool {
	if lo == hi {
		// Singleton ring or lo==hi arc: everything belongs to this node.
		return true
	}
	if lo < hi {
		return h > lo && h <= hi
	}
	// Arc wraps past the top of the ring.
	return h > lo || h <= hi
}
