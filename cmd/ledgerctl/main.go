package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Command-line tools for the energy ledger client",
	Long: `ledgerctl derives identities, checks seed checksums, and drives the
energy ledger client to submit transfers, read a local balance, and
stream committee events to stdout.`,
}

func main() {
	rootCmd.AddCommand(
		identityCmd(),
		seedChecksumCmd(),
		transferCmd(),
		balanceCmd(),
		listenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
