package rpc

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps a read-only RPC connection to the target network
type Client struct {
	*ethclient.Client
	URL     string
	ChainID uint64
}

// ConnectResult holds the result of an RPC connection attempt
type ConnectResult struct {
	Client *Client
	Error  error
}

// Connect attempts to connect to an RPC endpoint serving chain want
func Connect(url string, want uint64) ConnectResult {
	return ConnectWithTimeout(url, want, 8*time.Second)
}

// ConnectWithTimeout attempts to connect with a custom timeout. A want of
// zero accepts any chain.
func ConnectWithTimeout(url string, want uint64, timeout time.Duration) ConnectResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return ConnectResult{Client: nil, Error: err}
	}

	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return ConnectResult{Client: nil, Error: fmt.Errorf("query chain id: %w", err)}
	}
	if want != 0 && id.Uint64() != want {
		client.Close()
		return ConnectResult{Client: nil, Error: fmt.Errorf("endpoint serves chain %d, want %d", id.Uint64(), want)}
	}

	return ConnectResult{
		Client: &Client{
			Client:  client,
			URL:     url,
			ChainID: id.Uint64(),
		},
		Error: nil,
	}
}

// Backend is the subset of a chain connection account details need
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenBalance represents an ERC20 token balance
type TokenBalance struct {
	Symbol   string
	Decimals uint8
	Balance  *big.Int
}

// WatchedToken represents a token to query
type WatchedToken struct {
	Symbol   string
	Decimals uint8
	Address  common.Address
}

// AccountDetails contains all balance information for an account
type AccountDetails struct {
	Address    string
	NativeWei  *big.Int
	Tokens     []TokenBalance
	LoadedAt   time.Time
	ErrMessage string
}

// Token returns the balance of symbol, or zero when it was not loaded
func (d AccountDetails) Token(symbol string) *big.Int {
	for _, t := range d.Tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			return t.Balance
		}
	}
	return big.NewInt(0)
}

// LoadAccountDetails fetches native and token balances for an address
func LoadAccountDetails(b Backend, addr common.Address, watch []WatchedToken) AccountDetails {
	return LoadAccountDetailsWithTimeout(b, addr, watch, 12*time.Second)
}

// LoadAccountDetailsWithTimeout fetches account details with a custom timeout
func LoadAccountDetailsWithTimeout(b Backend, addr common.Address, watch []WatchedToken, timeout time.Duration) AccountDetails {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	d := AccountDetails{
		Address:   addr.Hex(),
		NativeWei: big.NewInt(0),
		LoadedAt:  time.Now(),
	}

	if b == nil {
		d.ErrMessage = "No RPC client (set DATAFORGE_RPC_URL)."
		return d
	}

	wei, err := b.BalanceAt(ctx, addr, nil)
	if err != nil {
		d.ErrMessage = "Failed to load tFIL balance."
		return d
	}
	d.NativeWei = wei

	// ERC20 balances, sequential. Zero balances are kept so the UI can show
	// an empty USDFC line before funding.
	var toks []TokenBalance
	for _, t := range watch {
		bal, err := erc20BalanceOf(ctx, b, t.Address, addr)
		if err != nil {
			d.ErrMessage = fmt.Sprintf("Failed to load %s balance.", t.Symbol)
			continue
		}
		toks = append(toks, TokenBalance{
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			Balance:  bal,
		})
	}

	sort.Slice(toks, func(i, j int) bool {
		return strings.ToLower(toks[i].Symbol) < strings.ToLower(toks[j].Symbol)
	})
	d.Tokens = toks

	return d
}

// Minimal ERC20 balanceOf via eth_call.
var (
	// balanceOf(address) methodID = keccak256("balanceOf(address)")[:4]
	balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}
)

func erc20BalanceOf(ctx context.Context, b Backend, token common.Address, owner common.Address) (*big.Int, error) {
	// calldata = selector + 32-byte left-padded address
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)

	msg := ethereum.CallMsg{
		To:   &token,
		Data: data,
	}
	out, err := b.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(out), nil
}
