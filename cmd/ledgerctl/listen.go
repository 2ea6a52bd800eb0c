package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/energyledger/client/client"
	"github.com/energyledger/client/xlog"
)

func listenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Launch a client and stream emitted events to stdout until interrupted",
		RunE:  runListen,
	}
	addClientFlags(cmd, true)
	return cmd
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd, true)
	if err != nil {
		return err
	}
	c, err := client.New(cfg, xlog.NewDevelopment())
	if err != nil {
		return err
	}
	if err := c.Launch(); err != nil {
		return err
	}

	ch, id := c.AddEnvironmentListener()
	defer c.RemoveEnvironmentListener(id)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			fmt.Printf("%s: %+v\n", ev.Kind, ev)
		case <-sig:
			return c.Terminate(true)
		}
	}
}
