package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dappkit/internal/faucet"
)

type faucetOutput struct {
	NetworkID uint64 `json:"network_id"`
	Asset     string `json:"asset"`
	Recipient string `json:"recipient"`
}

func newFaucetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faucet [ether|zrx]",
		Short: "Request test funds for the first wallet account (ropsten and kovan only)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFaucet,
	}
	cmd.Flags().String("faucet-url", faucet.DefaultURL, "faucet base URL")
	return cmd
}

func runFaucet(cmd *cobra.Command, args []string) error {
	var input string
	if len(args) > 0 {
		input = args[0]
	}
	asset, err := faucet.ParseAsset(input)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, state, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer controller.Close()

	client := faucet.New(cfg.FaucetURL, nil, logger)
	recipient, err := client.Fund(ctx, state.Client, state.NetworkID, asset)
	if err != nil {
		return err
	}
	return printJSON(faucetOutput{
		NetworkID: state.NetworkID,
		Asset:     string(asset),
		Recipient: recipient.Hex(),
	})
}
