// cmd/cli is the CLI entry-point built with Cobra, the raw-wire-protocol
// descendant of the teacher's cmd/client (kvcli): same verb set and
// pretty-printing convention, now talking the node's TCP line protocol
// instead of HTTP.
//
// Usage:
//
//	chordkv-cli insert mykey hello          --node 127.0.0.1:5000
//	chordkv-cli query mykey                --node 127.0.0.1:5000
//	chordkv-cli delete mykey                --node 127.0.0.1:5000
//	chordkv-cli overlay                     --node 127.0.0.1:5000
//	chordkv-cli reset-config 3 chain        --node 127.0.0.1:5000
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chordkv/internal/wireclient"
)

var nodeAddr string

func main() {
	root := &cobra.Command{
		Use:   "chordkv-cli",
		Short: "CLI client for a chordkv ring",
	}

	root.PersistentFlags().StringVarP(&nodeAddr, "node", "n",
		"127.0.0.1:5000", "Target node address (ip:port)")

	root.AddCommand(insertCmd(), queryCmd(), deleteCmd(), overlayCmd(), resetConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func insertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <key> <value>",
		Short: "Store a value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireclient.New(nodeAddr)
			reply, err := c.Insert(args[0], args[1])
			if err != nil {
				return connectErr(err)
			}
			fmt.Println(reply)
			return nil
		},
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <key>",
		Short: `Look up a key, or "*" for every key on the ring`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireclient.New(nodeAddr)
			if args[0] == "*" {
				result, err := c.QueryAll()
				if err != nil {
					return connectErr(err)
				}
				prettyPrint(result)
				return nil
			}
			value, err := c.Query(args[0])
			if errors.Is(err, wireclient.ErrNotFound) {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return connectErr(err)
			}
			fmt.Println(value)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireclient.New(nodeAddr)
			reply, err := c.Delete(args[0])
			if err != nil {
				return connectErr(err)
			}
			fmt.Println(reply)
			return nil
		},
	}
}

func overlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overlay",
		Short: "Show a ring-wide snapshot of every node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireclient.New(nodeAddr)
			result, err := c.Overlay()
			if err != nil {
				return connectErr(err)
			}
			prettyPrint(result)
			return nil
		},
	}
}

func resetConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-config <k> <chain|eventual>",
		Short: "Reconfigure replica count and consistency mode ring-wide, clearing all data",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var k int
			if _, err := fmt.Sscanf(args[0], "%d", &k); err != nil {
				return fmt.Errorf("invalid replica count %q: %w", args[0], err)
			}
			c := wireclient.New(nodeAddr)
			result, err := c.ResetConfig(k, args[1])
			if err != nil {
				return connectErr(err)
			}
			prettyPrint(result)
			return nil
		},
	}
}

// connectErr surfaces transport failures as-is; cobra's root.Execute path
// already exits 1 on any returned error, matching spec §6's "exit code 0
// on success, 1 on connection failure to bootstrap".
func connectErr(err error) error {
	return err
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
