package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrTxReverted is returned by WaitMined for a failed receipt.
var ErrTxReverted = errors.New("transaction reverted")

// MinePollInterval is how often WaitMined asks for a receipt.
var MinePollInterval = 2 * time.Second

// WaitMined polls r until the transaction is included or ctx is done.
func WaitMined(ctx context.Context, r Reader, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(MinePollInterval)
	defer ticker.Stop()
	for {
		receipt, err := r.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, ErrTxReverted
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
