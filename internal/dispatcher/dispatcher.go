// Package dispatcher implements the request dispatcher (spec §4.9): it
// binds the node's listening socket, accepts connections, and spawns an
// independent handler per connection, the raw-TCP analogue of the
// teacher's gin router registering one handler per route.
package dispatcher

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"chordkv/internal/cluster"
	"chordkv/internal/hashid"
	"chordkv/internal/peer"
	"chordkv/internal/wire"
)

var logger = log.New(os.Stderr, "", log.LstdFlags)

// Server binds one TCP listener and dispatches every accepted connection's
// single command to node.
type Server struct {
	node     *cluster.Node
	listener net.Listener
}

// Listen binds addr and returns a Server ready to Serve.
func Listen(addr string, node *cluster.Node) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{node: node, listener: ln}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Serve accepts connections until the listener is closed, handling each on
// its own goroutine per spec §4.9 and §5 ("each inbound connection is
// handled on its own task").
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	line, err := wire.ReadLine(bufio.NewReader(conn))
	if err != nil {
		return
	}
	tokens := wire.Tokenize(line)
	if len(tokens) == 0 {
		return
	}

	reply, large := s.dispatch(tokens)
	if large {
		if _, err := conn.Write(reply); err != nil {
			logger.Printf("%swrite reply: %v", s.node.LogPrefix(), err)
		}
		return
	}
	if err := wire.WriteLine(conn, string(reply)); err != nil {
		logger.Printf("%swrite reply: %v", s.node.LogPrefix(), err)
	}
}

// dispatch maps one parsed command line to the matching cluster.Node
// operation (spec §6). It returns the raw reply bytes and whether that
// reply is a "large" (streamed-to-EOF) response; small replies are single
// lines terminated by handle.
func (s *Server) dispatch(tokens []string) (reply []byte, large bool) {
	n := s.node
	cmd := tokens[0]
	args := tokens[1:]

	switch cmd {
	case "find_successor":
		if len(args) != 1 {
			return invalid()
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return invalid()
		}
		succ, err := n.FindSuccessor(hashid.ID(id))
		if err != nil {
			return small(err.Error())
		}
		return small(succ.Addr())

	case "get_predecessor":
		pred := n.Ring.Predecessor()
		return small(pred.String())

	case "update_predecessor":
		if len(args) != 2 {
			return invalid()
		}
		n.Ring.SetPredecessor(peer.NewRef(args[0], args[1]))
		return small("ACK")

	case "update_successor":
		if len(args) != 2 {
			return invalid()
		}
		n.Ring.SetSuccessor(peer.NewRef(args[0], args[1]))
		return small("ACK")

	case "get_network_config":
		k, mode := n.Config.Get()
		return small(fmt.Sprintf("%d:%s", k, mode))

	case "transfer_keys":
		if len(args) != 1 {
			return invalid()
		}
		combined := n.HandleTransferKeys()
		return largeJSON(combined)

	case "receive_keys":
		if len(args) != 2 {
			return invalid()
		}
		if err := n.HandleReceiveKeys(args[0], []byte(args[1])); err != nil {
			return invalid()
		}
		return small("ACK")

	case "increment_hop":
		if len(args) != 1 {
			return invalid()
		}
		var keys []string
		if err := json.Unmarshal([]byte(args[0]), &keys); err != nil {
			return invalid()
		}
		n.HandleIncrementHop(keys)
		return small("ACK")

	case "insert":
		return dispatchMutation(n, "insert", args)

	case "delete":
		return dispatchMutation(n, "delete", args)

	case "query":
		return dispatchQuery(n, args)

	case "overlay":
		initial := ""
		if len(args) >= 1 {
			initial = args[0]
		}
		result, err := n.Overlay(initial)
		if err != nil {
			return small(err.Error())
		}
		return largeJSON(result)

	case "reset_config":
		if len(args) < 2 {
			return invalid()
		}
		k, err := strconv.Atoi(args[0])
		if err != nil {
			return invalid()
		}
		mode, err := cluster.ParseMode(args[1])
		if err != nil {
			return invalid()
		}
		initial := ""
		if len(args) >= 3 {
			initial = args[2]
		}
		result, err := n.ResetConfig(k, mode, initial)
		if err != nil {
			return small(err.Error())
		}
		return largeJSON(result)

	case "get_data":
		if len(args) < 1 {
			return invalid()
		}
		initial := ""
		if len(args) >= 2 {
			initial = args[1]
		}
		result, err := n.DebugData(args[0], initial)
		if err != nil {
			return small(err.Error())
		}
		return largeJSON(result)

	default:
		return invalid()
	}
}

func dispatchMutation(n *cluster.Node, op string, args []string) ([]byte, bool) {
	if len(args) < 1 {
		return invalid()
	}
	key := args[0]
	value := ""
	replicaArgIdx := 1
	if op == "insert" {
		if len(args) < 2 {
			return invalid()
		}
		value = args[1]
		replicaArgIdx = 2
	}
	replicaCount := 0
	if len(args) > replicaArgIdx {
		rc, err := strconv.Atoi(args[replicaArgIdx])
		if err != nil {
			return invalid()
		}
		replicaCount = rc
	}

	var (
		reply string
		err   error
	)
	if op == "insert" {
		reply, err = n.InsertReplicated(key, value, replicaCount)
	} else {
		reply, err = n.DeleteReplicated(key, replicaCount)
	}
	if err != nil {
		return small(err.Error())
	}
	return small(reply)
}

func dispatchQuery(n *cluster.Node, args []string) ([]byte, bool) {
	if len(args) == 0 {
		return invalid()
	}
	if args[0] == "*" {
		initial := ""
		if len(args) >= 2 {
			initial = args[1]
		}
		result, err := n.QueryAll(initial)
		if err != nil {
			return small(err.Error())
		}
		return largeJSON(result)
	}

	key := args[0]
	hops := 0
	if len(args) >= 2 {
		h, err := strconv.Atoi(args[1])
		if err != nil {
			return invalid()
		}
		hops = h
	}
	initialNode := ""
	if len(args) >= 3 {
		initialNode = args[2]
	}
	reply, err := n.Query(key, hops, initialNode)
	if err != nil {
		return small(err.Error())
	}
	return small(reply)
}

func small(s string) ([]byte, bool) {
	return []byte(s), false
}

func invalid() ([]byte, bool) {
	return small("Invalid command")
}

func largeJSON(v any) ([]byte, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return small("Invalid command")
	}
	return data, true
}
