package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/energyledger/client/client"
	"github.com/energyledger/client/events"
	"github.com/energyledger/client/xlog"
)

func transferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Submit a transfer and print its receipt when it arrives",
		RunE:  runTransfer,
	}
	addClientFlags(cmd, true)
	cmd.Flags().String("dest", "", "destination identity string (required)")
	cmd.Flags().Uint64("amount", 0, "energy amount to transfer (required)")
	cmd.MarkFlagRequired("dest")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func runTransfer(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd, true)
	if err != nil {
		return err
	}
	dest, _ := cmd.Flags().GetString("dest")
	amount, _ := cmd.Flags().GetUint64("amount")

	c, err := client.New(cfg, xlog.NewDevelopment())
	if err != nil {
		return err
	}
	if err := c.Launch(); err != nil {
		return err
	}
	defer c.Terminate(true)

	ch, id := c.AddEnvironmentListener()
	defer c.RemoveEnvironmentListener(id)

	hash, err := c.Transfer(dest, amount)
	if err != nil {
		return err
	}
	fmt.Printf("submitted transfer %x\n", hash)

	for ev := range ch {
		if ev.Kind == events.KindReceipt && ev.Receipt.Hash == hash {
			fmt.Printf("receipt: %s\n", ev.Receipt.ReceiptBase64)
			return nil
		}
	}
	return nil
}
