// Package eip1193 talks to an external wallet over JSON-RPC, the way a
// browser dapp talks to an injected window.ethereum. Desktop wallets such as
// Frame expose the same provider on a local websocket.
package eip1193

import (
	"context"
	"errors"
	"io"
	"math/big"
	"slices"
	"time"

	"dataforge-hub/wallet"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/xerrors"
)

// DefaultURL is where Frame serves its provider.
const DefaultURL = "ws://127.0.0.1:1248"

// Provider implements wallet.Provider over a go-ethereum RPC client.
type Provider struct {
	client *rpc.Client
	url    string
	poll   time.Duration
	force  bool
	log    *log.Logger
}

var _ wallet.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Provider) { p.log = l.WithPrefix("eip1193") }
}

// WithPollInterval sets how often accounts and chain are polled when the
// transport cannot push notifications (plain HTTP).
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) { p.poll = d }
}

// WithPolling forces polling even on transports that support subscriptions.
func WithPolling() Option {
	return func(p *Provider) { p.force = true }
}

// Dial connects to a wallet endpoint (ws://, http:// or an IPC path).
func Dial(ctx context.Context, url string, opts ...Option) (*Provider, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, xerrors.Errorf("dial wallet %s: %w", url, err)
	}
	p := New(c, opts...)
	p.url = url
	return p, nil
}

// New wraps an existing client.
func New(c *rpc.Client, opts ...Option) *Provider {
	p := &Provider{
		client: c,
		poll:   2 * time.Second,
		log:    log.New(io.Discard),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// URL returns the endpoint the provider was dialed with.
func (p *Provider) URL() string { return p.url }

// Close closes the underlying connection.
func (p *Provider) Close() { p.client.Close() }

func (p *Provider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	if err := p.client.CallContext(ctx, &out, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) Accounts(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	if err := p.client.CallContext(ctx, &out, "eth_accounts"); err != nil {
		return nil, err
	}
	return out, nil
}

type switchChainParams struct {
	ChainID hexutil.Uint64 `json:"chainId"`
}

func (p *Provider) SwitchChain(ctx context.Context, chainID uint64) error {
	return p.client.CallContext(ctx, nil, "wallet_switchEthereumChain", switchChainParams{ChainID: hexutil.Uint64(chainID)})
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// addChainParams is the EIP-3085 wallet_addEthereumChain parameter.
type addChainParams struct {
	ChainID           hexutil.Uint64 `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    nativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

func newAddChainParams(n wallet.Network) addChainParams {
	params := addChainParams{
		ChainID:   hexutil.Uint64(n.ChainID),
		ChainName: n.Name,
		NativeCurrency: nativeCurrency{
			Name:     n.Symbol,
			Symbol:   n.Symbol,
			Decimals: n.Decimals,
		},
		RPCURLs: []string{n.RPCURL},
	}
	if n.ExplorerURL != "" {
		params.BlockExplorerURLs = []string{n.ExplorerURL}
	}
	return params
}

func (p *Provider) AddChain(ctx context.Context, n wallet.Network) error {
	return p.client.CallContext(ctx, nil, "wallet_addEthereumChain", newAddChainParams(n))
}

func (p *Provider) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := p.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (p *Provider) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	var bal hexutil.Big
	if err := p.client.CallContext(ctx, &bal, "eth_getBalance", account, "latest"); err != nil {
		return nil, err
	}
	return (*big.Int)(&bal), nil
}

func (p *Provider) SubscribeAccounts(ctx context.Context, ch chan<- []common.Address) (event.Subscription, error) {
	if !p.force {
		raw := make(chan []common.Address, 4)
		sub, err := p.client.Subscribe(ctx, "eth", raw, "accountsChanged")
		if err == nil {
			return forward(sub, raw, ch, func(a []common.Address) []common.Address { return a }), nil
		}
		if !errors.Is(err, rpc.ErrNotificationsUnsupported) {
			return nil, xerrors.Errorf("subscribe accountsChanged: %w", err)
		}
		p.log.Warn("wallet transport cannot push events, polling", "interval", p.poll)
	}
	return p.pollAccounts(ch), nil
}

func (p *Provider) SubscribeChain(ctx context.Context, ch chan<- uint64) (event.Subscription, error) {
	if !p.force {
		raw := make(chan hexutil.Uint64, 4)
		sub, err := p.client.Subscribe(ctx, "eth", raw, "chainChanged")
		if err == nil {
			return forward(sub, raw, ch, func(id hexutil.Uint64) uint64 { return uint64(id) }), nil
		}
		if !errors.Is(err, rpc.ErrNotificationsUnsupported) {
			return nil, xerrors.Errorf("subscribe chainChanged: %w", err)
		}
	}
	return p.pollChain(ch), nil
}

// forward relays decoded notifications from an RPC subscription to ch.
func forward[In, Out any](sub *rpc.ClientSubscription, raw <-chan In, ch chan<- Out, conv func(In) Out) event.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case v := <-raw:
				select {
				case ch <- conv(v):
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
}

func (p *Provider) pollAccounts(ch chan<- []common.Address) event.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(p.poll)
		defer ticker.Stop()
		var last []common.Address
		primed := false
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), p.poll)
				accounts, err := p.Accounts(ctx)
				cancel()
				if err != nil {
					p.log.Debug("poll eth_accounts failed", "err", err)
					continue
				}
				if primed && !slices.Equal(last, accounts) {
					select {
					case ch <- accounts:
					case <-quit:
						return nil
					}
				}
				last, primed = accounts, true
			case <-quit:
				return nil
			}
		}
	})
}

func (p *Provider) pollChain(ch chan<- uint64) event.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(p.poll)
		defer ticker.Stop()
		var last uint64
		primed := false
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), p.poll)
				id, err := p.ChainID(ctx)
				cancel()
				if err != nil {
					p.log.Debug("poll eth_chainId failed", "err", err)
					continue
				}
				if primed && id != last {
					select {
					case ch <- id:
					case <-quit:
						return nil
					}
				}
				last, primed = id, true
			case <-quit:
				return nil
			}
		}
	})
}

// Bind returns a signer that asks the wallet to sign with account, and a
// read handle routed through the wallet's own RPC.
func (p *Provider) Bind(ctx context.Context, account common.Address) (wallet.Capabilities, error) {
	return wallet.Capabilities{
		Signer: &Signer{client: p.client, account: account},
		Reader: ethclient.NewClient(p.client),
	}, nil
}

// Signer submits transactions with eth_sendTransaction; the wallet fills in
// nonce and fees and prompts the user.
type Signer struct {
	client  *rpc.Client
	account common.Address
}

type txArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

func (s *Signer) Address() common.Address { return s.account }

func (s *Signer) SendTransaction(ctx context.Context, tx wallet.TxRequest) (common.Hash, error) {
	args := txArgs{From: s.account, To: tx.To, Data: tx.Data}
	if tx.Value != nil {
		args.Value = (*hexutil.Big)(tx.Value)
	}
	if tx.Gas != 0 {
		gas := hexutil.Uint64(tx.Gas)
		args.Gas = &gas
	}
	var hash common.Hash
	if err := s.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}
