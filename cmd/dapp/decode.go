package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dappkit/internal/model"
)

type decodedTx struct {
	TxHash       string               `json:"tx_hash"`
	BlockNumber  uint64               `json:"block_number"`
	Status       uint64               `json:"status"`
	Events       []model.DecodedEvent `json:"events"`
	DecodeErrors []model.DecodeError  `json:"decode_errors,omitempty"`
}

func newDecodeTxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode-tx <hash>",
		Short: "Decode the logs of a mined transaction with the registered ABIs",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecodeTx,
	}
}

func runDecodeTx(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	raw := args[0]
	if len(common.FromHex(raw)) != common.HashLength {
		return fmt.Errorf("invalid transaction hash: %s", raw)
	}
	hash := common.HexToHash(raw)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, state, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer controller.Close()

	receipt, err := state.Client.TransactionReceipt(ctx, hash)
	if err != nil {
		return fmt.Errorf("receipt %s: %w", hash.Hex(), err)
	}

	events, failures := state.Client.DecodeReceiptLogs(ctx, state.NetworkID, receipt)
	logger.Info("transaction decoded",
		zap.String("tx", hash.Hex()),
		zap.Int("events", len(events)),
		zap.Int("decode_errors", len(failures)),
	)

	out := decodedTx{
		TxHash:       hash.Hex(),
		Status:       receipt.Status,
		Events:       events,
		DecodeErrors: failures,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return printJSON(out)
}
