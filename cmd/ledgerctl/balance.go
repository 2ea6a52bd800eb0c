package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/energyledger/client/client"
	"github.com/energyledger/client/xlog"
)

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Replay the local ledger and print the current energy balance",
		RunE:  runBalance,
	}
	addClientFlags(cmd, false)
	return cmd
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd, false)
	if err != nil {
		return err
	}
	c, err := client.New(cfg, xlog.NewNoOp())
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("identity: %s\n", c.Identity())
	fmt.Printf("energy: %d\n", c.Energy())
	return nil
}
