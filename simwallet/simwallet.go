// Package simwallet is an in-process wallet provider. It auto-approves every
// request unless told otherwise, which makes it useful both for tests and for
// running the terminal UI without a desktop wallet.
package simwallet

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"dataforge-hub/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
)

// Provider method names, recorded in Calls.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodChainID         = "eth_chainId"
	MethodGetBalance      = "eth_getBalance"
	MethodSendTransaction = "eth_sendTransaction"
)

var errNoBackend = errors.New("simwallet: no chain backend for contract calls")

// Wallet is a scriptable wallet.Provider.
type Wallet struct {
	mu         sync.Mutex
	accounts   []common.Address
	authorized bool
	chainID    uint64
	known      map[uint64]bool
	balances   map[common.Address]*big.Int

	reject     bool
	switchErr  error
	addErr     error
	balanceErr error
	hold       chan struct{}

	calls    []string
	subs     int
	live     []*subscription
	sent     []wallet.TxRequest
	receipts map[common.Hash]*types.Receipt
	nonce    uint64
	backend  wallet.Reader
	onSend   func(tx wallet.TxRequest, receipt *types.Receipt)

	accountsFeed event.Feed
	chainFeed    event.Feed
}

var _ wallet.Provider = (*Wallet)(nil)

// New returns a wallet holding accounts and active on chainID. Only chainID
// is registered; every other chain must be added first.
func New(chainID uint64, accounts ...common.Address) *Wallet {
	return &Wallet{
		accounts: append([]common.Address(nil), accounts...),
		chainID:  chainID,
		known:    map[uint64]bool{chainID: true},
		balances: make(map[common.Address]*big.Int),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

// Authorize marks the accounts as already approved, as after a previous visit.
func (w *Wallet) Authorize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.authorized = true
}

// Register makes a chain known to the wallet without switching to it.
func (w *Wallet) Register(chainID uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.known[chainID] = true
}

// RejectRequests makes the user decline account prompts.
func (w *Wallet) RejectRequests(reject bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reject = reject
}

// FailSwitch makes SwitchChain return err.
func (w *Wallet) FailSwitch(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switchErr = err
}

// FailAdd makes AddChain return err.
func (w *Wallet) FailAdd(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addErr = err
}

// FailBalance makes Balance return err.
func (w *Wallet) FailBalance(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balanceErr = err
}

// SetBalance sets the native balance of account.
func (w *Wallet) SetBalance(account common.Address, wei *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[account] = new(big.Int).Set(wei)
}

// SetBackend routes contract reads to r.
func (w *Wallet) SetBackend(r wallet.Reader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.backend = r
}

// OnSend lets fn shape the receipt of every later transaction, for example
// to add event logs or mark it reverted.
func (w *Wallet) OnSend(fn func(tx wallet.TxRequest, receipt *types.Receipt)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onSend = fn
}

// Hold blocks the next account prompts until release is called.
func (w *Wallet) Hold() (release func()) {
	ch := make(chan struct{})
	w.mu.Lock()
	w.hold = ch
	w.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			if w.hold == ch {
				w.hold = nil
			}
			w.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns the provider methods invoked so far, in order.
func (w *Wallet) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

// Called reports whether method was invoked at least once.
func (w *Wallet) Called(method string) bool {
	for _, c := range w.Calls() {
		if c == method {
			return true
		}
	}
	return false
}

// Sent returns the transactions submitted through bound signers.
func (w *Wallet) Sent() []wallet.TxRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]wallet.TxRequest(nil), w.sent...)
}

// Subscriptions counts subscribe calls, so tests can wait for a watcher.
func (w *Wallet) Subscriptions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.subs
}

// EmitAccounts replaces the authorized accounts and notifies subscribers.
// It returns the number of subscribers reached.
func (w *Wallet) EmitAccounts(accounts ...common.Address) int {
	w.mu.Lock()
	w.accounts = append([]common.Address(nil), accounts...)
	w.authorized = len(accounts) > 0
	w.mu.Unlock()
	return w.accountsFeed.Send(append([]common.Address(nil), accounts...))
}

// EmitChain activates chainID as if the user changed it in the wallet.
// It returns the number of subscribers reached.
func (w *Wallet) EmitChain(chainID uint64) int {
	w.mu.Lock()
	w.chainID = chainID
	w.known[chainID] = true
	w.mu.Unlock()
	return w.chainFeed.Send(chainID)
}

func (w *Wallet) record(method string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, method)
}

func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.record(MethodRequestAccounts)

	w.mu.Lock()
	hold := w.hold
	w.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reject {
		return nil, &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request."}
	}
	w.authorized = true
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *Wallet) Accounts(ctx context.Context) ([]common.Address, error) {
	w.record(MethodAccounts)
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.authorized {
		return nil, nil
	}
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *Wallet) SwitchChain(ctx context.Context, chainID uint64) error {
	w.record(MethodSwitchChain)
	w.mu.Lock()
	if w.switchErr != nil {
		err := w.switchErr
		w.mu.Unlock()
		return err
	}
	if !w.known[chainID] {
		w.mu.Unlock()
		return &wallet.ProviderError{Code: wallet.CodeUnrecognizedChain, Message: "Unrecognized chain ID."}
	}
	changed := w.chainID != chainID
	w.chainID = chainID
	w.mu.Unlock()
	if changed {
		w.chainFeed.Send(chainID)
	}
	return nil
}

func (w *Wallet) AddChain(ctx context.Context, n wallet.Network) error {
	w.record(MethodAddChain)
	w.mu.Lock()
	if w.addErr != nil {
		err := w.addErr
		w.mu.Unlock()
		return err
	}
	w.known[n.ChainID] = true
	changed := w.chainID != n.ChainID
	w.chainID = n.ChainID
	w.mu.Unlock()
	if changed {
		w.chainFeed.Send(n.ChainID)
	}
	return nil
}

func (w *Wallet) ChainID(ctx context.Context) (uint64, error) {
	w.record(MethodChainID)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, nil
}

func (w *Wallet) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	w.record(MethodGetBalance)
	return w.balanceOf(account)
}

func (w *Wallet) balanceOf(account common.Address) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balanceErr != nil {
		return nil, w.balanceErr
	}
	if b, ok := w.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (w *Wallet) SubscribeAccounts(ctx context.Context, ch chan<- []common.Address) (event.Subscription, error) {
	return w.track(w.accountsFeed.Subscribe(ch)), nil
}

func (w *Wallet) SubscribeChain(ctx context.Context, ch chan<- uint64) (event.Subscription, error) {
	return w.track(w.chainFeed.Subscribe(ch)), nil
}

func (w *Wallet) track(inner event.Subscription) event.Subscription {
	sub := &subscription{inner: inner, err: make(chan error, 1)}
	w.mu.Lock()
	w.subs++
	w.live = append(w.live, sub)
	w.mu.Unlock()
	return sub
}

// DropSubscriptions fails every live subscription with err, as a wallet
// does when its connection goes away.
func (w *Wallet) DropSubscriptions(err error) {
	w.mu.Lock()
	live := w.live
	w.live = nil
	w.mu.Unlock()
	for _, sub := range live {
		sub.fail(err)
	}
}

// subscription lets DropSubscriptions fail a feed subscription.
type subscription struct {
	inner event.Subscription
	err   chan error
	once  sync.Once
}

func (s *subscription) Err() <-chan error { return s.err }

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.inner.Unsubscribe()
		close(s.err)
	})
}

func (s *subscription) fail(err error) {
	s.once.Do(func() {
		s.inner.Unsubscribe()
		s.err <- err
		close(s.err)
	})
}

func (w *Wallet) Bind(ctx context.Context, account common.Address) (wallet.Capabilities, error) {
	return wallet.Capabilities{
		Signer: &signer{w: w, account: account},
		Reader: &reader{w: w},
	}, nil
}

// signer records transactions and mines them instantly with an empty receipt.
type signer struct {
	w       *Wallet
	account common.Address
}

func (s *signer) Address() common.Address { return s.account }

func (s *signer) SendTransaction(ctx context.Context, tx wallet.TxRequest) (common.Hash, error) {
	s.w.record(MethodSendTransaction)
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.reject {
		return common.Hash{}, &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User denied transaction signature."}
	}
	s.w.nonce++
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], s.w.nonce)
	hash := crypto.Keccak256Hash(s.account.Bytes(), tx.Data, n[:])

	s.w.sent = append(s.w.sent, tx)
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(s.w.nonce),
	}
	if s.w.onSend != nil {
		s.w.onSend(tx, receipt)
	}
	s.w.receipts[hash] = receipt
	return hash, nil
}

type reader struct {
	w *Wallet
}

func (r *reader) backendReader() wallet.Reader {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	return r.w.backend
}

func (r *reader) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	b := r.backendReader()
	if b == nil {
		return nil, errNoBackend
	}
	return b.CodeAt(ctx, contract, blockNumber)
}

func (r *reader) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b := r.backendReader()
	if b == nil {
		return nil, errNoBackend
	}
	return b.CallContract(ctx, call, blockNumber)
}

func (r *reader) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return r.w.balanceOf(account)
}

func (r *reader) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if rc, ok := r.w.receipts[txHash]; ok {
		return rc, nil
	}
	return nil, ethereum.NotFound
}
