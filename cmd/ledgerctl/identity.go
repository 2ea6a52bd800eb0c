package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/energyledger/client/identity"
	"github.com/energyledger/client/xcrypto"
)

func identityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identity <seed> <index>",
		Short: "Print the derived identity string and checksum for (seed, index)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index must be a non-negative integer: %w", err)
			}
			h := xcrypto.NewBlake3Hasher()
			privateKey, err := identity.PrivateKey(h, args[0], index)
			if err != nil {
				return err
			}
			signer := xcrypto.NewSchnorrSigner(privateKey)
			id := identity.Derive(h, signer.PublicKey())
			fmt.Printf("identity: %s\n", id.String())
			fmt.Printf("checksum: %x\n", id.Checksum)
			return nil
		},
	}
}

func seedChecksumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-checksum <seed>",
		Short: "Print the 3-character checksum for a 55-letter seed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := xcrypto.NewBlake3Hasher()
			checksum, err := identity.SeedChecksum(h, args[0])
			if err != nil {
				return err
			}
			fmt.Println(checksum)
			return nil
		},
	}
}
