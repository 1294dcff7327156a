package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// Provider is the external wallet the session mediates. It holds the keys,
// authorizes accounts and manages the wallet's active network.
type Provider interface {
	// RequestAccounts may prompt the user and fails with CodeUserRejected
	// when they decline.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts returns already authorized accounts and never prompts.
	Accounts(ctx context.Context) ([]common.Address, error)
	// SwitchChain fails with CodeUnrecognizedChain when the wallet has never
	// seen the chain.
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, n Network) error
	ChainID(ctx context.Context) (uint64, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)

	SubscribeAccounts(ctx context.Context, ch chan<- []common.Address) (event.Subscription, error)
	SubscribeChain(ctx context.Context, ch chan<- uint64) (event.Subscription, error)

	// Bind derives signing and read capabilities for an authorized account.
	Bind(ctx context.Context, account common.Address) (Capabilities, error)
}

// TxRequest is an unsigned transaction handed to the wallet for signing.
type TxRequest struct {
	To    *common.Address
	Value *big.Int
	Data  []byte
	Gas   uint64
}

// Signer submits transactions on behalf of one authorized account.
type Signer interface {
	Address() common.Address
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
}

// Reader is the read handle contract bindings use. *ethclient.Client
// satisfies it.
type Reader interface {
	bind.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Capabilities are opaque to the session; consumers such as contract
// bindings use them to read and write.
type Capabilities struct {
	Signer Signer
	Reader Reader
}
