package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dappkit/internal/app"
	"dappkit/internal/bootstrap"
	"dappkit/internal/config"
	"dappkit/internal/network"
	"dappkit/internal/view"
	"dappkit/internal/wallet"
)

func main() {
	root := &cobra.Command{
		Use:          "dapp",
		Short:        "Wallet bootstrapper and exchange toolkit",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("wallet", "", "injected wallet JSON-RPC endpoint (empty means no wallet)")
	root.PersistentFlags().String("wallet-vendor", "auto", "wallet vendor (auto, metamask, generic)")
	root.PersistentFlags().String("networks-file", "", "YAML file overriding network endpoints and addresses")
	root.PersistentFlags().Duration("polling-interval", 15000*time.Millisecond, "block polling interval")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newConnectCmd(),
		newAccountCmd(),
		newWrapCmd(),
		newUnwrapCmd(),
		newApproveCmd(),
		newCancelUpToCmd(),
		newWatchCmd(),
		newDecodeTxCmd(),
		newFaucetCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	return config.Load(cfgFile, cmd.Flags())
}

func newBootstrapper(cfg config.Config, logger *zap.Logger) (*bootstrap.Bootstrapper, error) {
	vendor, err := wallet.ParseVendor(cfg.WalletVendor)
	if err != nil {
		return nil, err
	}
	table, err := network.LoadTable(cfg.NetworksFile)
	if err != nil {
		return nil, err
	}

	discover := wallet.DiscoverConfig{URL: cfg.Wallet, Vendor: vendor}
	return &bootstrap.Bootstrapper{
		Discover: func(ctx context.Context) (*wallet.InjectedProvider, error) {
			return wallet.Discover(ctx, discover)
		},
		Networks:        table,
		PollingInterval: cfg.PollingInterval,
		Logger:          logger,
	}, nil
}

// connect bootstraps and returns the controller once it is connected. Any other mode is
// rendered to stderr and reported as an error. Callers must Close the controller.
func connect(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.Controller, bootstrap.State, error) {
	b, err := newBootstrapper(cfg, logger)
	if err != nil {
		return nil, bootstrap.State{}, err
	}

	controller := app.NewController(b, logger)
	snap, err := controller.Wait(ctx)
	if err != nil {
		controller.Close()
		return nil, bootstrap.State{}, err
	}
	if snap.Mode != app.ModeConnected {
		fmt.Fprintln(os.Stderr, view.Render(snap, nil))
		controller.Close()
		if snap.Err != nil {
			return nil, bootstrap.State{}, snap.Err
		}
		return nil, bootstrap.State{}, errors.New("no wallet available")
	}
	return controller, snap.State, nil
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
