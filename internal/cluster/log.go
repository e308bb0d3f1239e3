package cluster

import (
	"log"
	"os"
)

// logger is the package-wide logger used for swallowed, best-effort errors
// (spec §7: topological and aggregation errors "are logged and swallowed
// so the ring can continue serving other keys"). Plain stdlib log.Logger,
// matching the teacher's unstructured log.Printf/log.Fatalf use throughout
// cmd/server and internal/store — no example repo pulls in a structured
// logging library.
var logger = log.New(os.Stderr, "", log.LstdFlags)
