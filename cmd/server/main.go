// cmd/server is the main entrypoint for a chordkv ring node.
//
// Configuration is entirely via flags so a single binary can serve as
// either a bootstrap node or a joining node.
//
// Example — bootstrap a 3-node ring (K=3, chain consistency):
//
//	./server --ip 127.0.0.1 --port 5000 --bootstrap --k 3 --mode chain
//	./server --ip 127.0.0.1 --port 5001 --join 127.0.0.1:5000
//	./server --ip 127.0.0.1 --port 5002 --join 127.0.0.1:5000
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"chordkv/internal/adminhttp"
	"chordkv/internal/cluster"
	"chordkv/internal/dispatcher"
	"chordkv/internal/peer"
)

func main() {
	ip := flag.String("ip", "127.0.0.1", "This node's advertised IP")
	port := flag.String("port", "5000", "Wire-protocol listen port")
	adminAddr := flag.String("admin-addr", ":0", "Admin HTTP listen address (host:port); :0 picks a free port")
	bootstrap := flag.Bool("bootstrap", false, "Start this node as the ring's bootstrap (authoritative k/mode)")
	joinAddr := flag.String("join", "", "Bootstrap node address (ip:port) to join through; required unless --bootstrap")
	k := flag.Int("k", 3, "Replica count; only meaningful on the bootstrap node")
	modeFlag := flag.String("mode", "chain", "Consistency mode (chain|eventual); only meaningful on the bootstrap node")
	flag.Parse()

	if !*bootstrap && *joinAddr == "" {
		log.Fatalf("either --bootstrap or --join <ip:port> is required")
	}

	mode, err := cluster.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	node := cluster.New(*ip, *port, *bootstrap, *k, mode)

	if !*bootstrap {
		joinIP, joinPort, err := net.SplitHostPort(*joinAddr)
		if err != nil {
			log.Fatalf("invalid --join address %q: %v", *joinAddr, err)
		}
		node.JoinOrLog(peer.NewRef(joinIP, joinPort))
	}

	wireServer, err := dispatcher.Listen(net.JoinHostPort(*ip, *port), node)
	if err != nil {
		log.Fatalf("bind wire listener: %v", err)
	}

	adminServer := adminhttp.NewServer(*adminAddr, node)

	go func() {
		log.Printf("%swire protocol listening on %s", node.LogPrefix(), wireServer.Addr())
		if err := wireServer.Serve(); err != nil {
			log.Printf("%swire listener closed: %v", node.LogPrefix(), err)
		}
	}()

	go func() {
		log.Printf("%sadmin HTTP listening on %s", node.LogPrefix(), *adminAddr)
		if err := adminServer.ListenAndServe(); err != nil {
			log.Printf("%sadmin HTTP server stopped: %v", node.LogPrefix(), err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("%sshutting down, departing ring", node.LogPrefix())
	node.Depart()

	if err := wireServer.Close(); err != nil {
		log.Printf("%swire listener close error: %v", node.LogPrefix(), err)
	}
	if err := adminServer.Shutdown(); err != nil {
		log.Printf("%sadmin server shutdown error: %v", node.LogPrefix(), err)
	}
}
