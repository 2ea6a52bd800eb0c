package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/energyledger/client/config"
)

// addClientFlags registers the flags common to every subcommand that
// constructs a client.Client: the identity seed/index, the admin public
// key that verifies computer-state snapshots, and the on-disk database
// path. peers is only registered when needsPeers is true (balance never
// dials out).
func addClientFlags(cmd *cobra.Command, needsPeers bool) {
	cmd.Flags().String("seed", "", "55-letter lowercase identity seed (required)")
	cmd.Flags().Int("index", 0, "identity sub-derivation index")
	cmd.Flags().String("admin", "", "hex-encoded 32-byte admin public key (required)")
	cmd.Flags().String("db", "", "path to the local ledger database (required)")
	cmd.MarkFlagRequired("seed")
	cmd.MarkFlagRequired("admin")
	cmd.MarkFlagRequired("db")
	if needsPeers {
		cmd.Flags().String("peers", "", "comma-separated list of exactly 3 peer addresses (required)")
		cmd.MarkFlagRequired("peers")
	}
}

// configFromFlags builds and validates a config.Config from the flags
// addClientFlags registered on cmd, applying config.Default()'s timeouts.
func configFromFlags(cmd *cobra.Command, needsPeers bool) (config.Config, error) {
	seed, _ := cmd.Flags().GetString("seed")
	index, _ := cmd.Flags().GetInt("index")
	adminHex, _ := cmd.Flags().GetString("admin")
	dbPath, _ := cmd.Flags().GetString("db")

	adminKey, err := parseHexKey(adminHex)
	if err != nil {
		return config.Config{}, fmt.Errorf("--admin: %w", err)
	}

	builder := config.NewBuilder().
		WithSeed(seed).
		WithIndex(index).
		WithAdminPublicKey(adminKey).
		WithDatabasePath(dbPath)

	if needsPeers {
		peersFlag, _ := cmd.Flags().GetString("peers")
		peers, err := parsePeers(peersFlag)
		if err != nil {
			return config.Config{}, err
		}
		builder = builder.WithPeers(peers)
	} else {
		// balance never dials out; Build only requires non-empty strings.
		builder = builder.WithPeers([config.NumberOfConnections]string{"unused", "unused", "unused"})
	}

	return builder.Build()
}

func parsePeers(csv string) ([config.NumberOfConnections]string, error) {
	var peers [config.NumberOfConnections]string
	parts := strings.Split(csv, ",")
	if len(parts) != config.NumberOfConnections {
		return peers, fmt.Errorf("--peers: expected exactly %d comma-separated addresses, got %d", config.NumberOfConnections, len(parts))
	}
	for i, p := range parts {
		peers[i] = strings.TrimSpace(p)
	}
	return peers, nil
}

func parseHexKey(s string) ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) != 32 {
		return key, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}
