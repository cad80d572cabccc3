package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"dappkit/internal/account"
	"dappkit/internal/actions"
	"dappkit/internal/bootstrap"
	"dappkit/internal/chain"
	"dappkit/internal/model"
)

type actionFunc func(ctx context.Context, acts *actions.Actions, state bootstrap.State, from common.Address, arg string, wait bool) (actions.Result, error)

type actionOutput struct {
	Action       string               `json:"action"`
	TxHash       string               `json:"tx_hash"`
	Mined        bool                 `json:"mined"`
	Status       *uint64              `json:"status,omitempty"`
	BlockNumber  *uint64              `json:"block_number,omitempty"`
	Events       []model.DecodedEvent `json:"events,omitempty"`
	DecodeErrors []model.DecodeError  `json:"decode_errors,omitempty"`
}

func newWrapCmd() *cobra.Command {
	return newActionCmd("wrap <ether>", "Wrap ether into the ether token",
		func(ctx context.Context, acts *actions.Actions, _ bootstrap.State, from common.Address, arg string, wait bool) (actions.Result, error) {
			amount, err := account.Wei(arg)
			if err != nil {
				return actions.Result{}, err
			}
			return acts.WrapETH(ctx, from, amount, wait)
		})
}

func newUnwrapCmd() *cobra.Command {
	return newActionCmd("unwrap <ether>", "Unwrap ether token back into ether",
		func(ctx context.Context, acts *actions.Actions, _ bootstrap.State, from common.Address, arg string, wait bool) (actions.Result, error) {
			amount, err := account.Wei(arg)
			if err != nil {
				return actions.Result{}, err
			}
			return acts.UnwrapETH(ctx, from, amount, wait)
		})
}

func newApproveCmd() *cobra.Command {
	return newActionCmd("approve <token|zrx|weth>", "Grant the asset proxy an unlimited token allowance",
		func(ctx context.Context, acts *actions.Actions, state bootstrap.State, from common.Address, arg string, wait bool) (actions.Result, error) {
			token, err := resolveToken(state, arg)
			if err != nil {
				return actions.Result{}, err
			}
			return acts.ApproveProxy(ctx, token, from, wait)
		})
}

func newCancelUpToCmd() *cobra.Command {
	return newActionCmd("cancel-up-to <epoch>", "Cancel every order below the target epoch",
		func(ctx context.Context, acts *actions.Actions, _ bootstrap.State, from common.Address, arg string, wait bool) (actions.Result, error) {
			epoch, ok := new(big.Int).SetString(arg, 0)
			if !ok || epoch.Sign() < 0 {
				return actions.Result{}, fmt.Errorf("invalid epoch %q", arg)
			}
			return acts.CancelUpTo(ctx, from, epoch, wait)
		})
}

func newActionCmd(use, short string, fn actionFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, args[0], fn)
		},
	}
	cmd.Flags().String("account", "", "sending account (defaults to the first wallet account)")
	cmd.Flags().Bool("wait", true, "wait for the transaction to be mined")
	cmd.Flags().Duration("await-interval", time.Second, "initial receipt polling interval")
	cmd.Flags().Duration("await-max-interval", 15*time.Second, "maximum receipt polling interval")
	return cmd
}

func runAction(cmd *cobra.Command, arg string, fn actionFunc) error {
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

	from, err := senderAccount(ctx, cfg.Account, state.Client)
	if err != nil {
		return err
	}

	acts := actions.New(state.Client, state.Contracts, chain.AwaitConfig{
		Interval:    cfg.AwaitInterval,
		MaxInterval: cfg.AwaitMaxInterval,
	}, logger)

	result, err := fn(ctx, acts, state, from, arg, cfg.Wait)
	if result.TxHash != (common.Hash{}) {
		if printErr := printJSON(toActionOutput(result)); printErr != nil && err == nil {
			err = printErr
		}
	}
	return err
}

func senderAccount(ctx context.Context, configured string, client *chain.Client) (common.Address, error) {
	if configured != "" {
		if !common.IsHexAddress(configured) {
			return common.Address{}, fmt.Errorf("invalid account address: %s", configured)
		}
		return common.HexToAddress(configured), nil
	}
	accounts, err := client.Accounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, account.ErrNoAccount
	}
	return accounts[0], nil
}

func resolveToken(state bootstrap.State, input string) (common.Address, error) {
	switch input {
	case "zrx", "ZRX":
		if state.Contracts.Addresses.ZRXToken == (common.Address{}) {
			return common.Address{}, fmt.Errorf("no ZRX token on network %d", state.NetworkID)
		}
		return state.Contracts.Addresses.ZRXToken, nil
	case "weth", "WETH":
		return state.Contracts.Addresses.EtherToken, nil
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid token address: %s", input)
	}
	return common.HexToAddress(input), nil
}

func toActionOutput(result actions.Result) actionOutput {
	out := actionOutput{
		Action:       result.Action,
		TxHash:       result.TxHash.Hex(),
		Mined:        result.Mined(),
		Events:       result.Events,
		DecodeErrors: result.Failures,
	}
	if result.Receipt != nil {
		status := result.Receipt.Status
		out.Status = &status
		if result.Receipt.BlockNumber != nil {
			block := result.Receipt.BlockNumber.Uint64()
			out.BlockNumber = &block
		}
	}
	return out
}
