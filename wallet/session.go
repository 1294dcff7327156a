// Package wallet owns the application's single connection to an external
// wallet provider. A Session mediates every provider interaction and hands
// consumers immutable snapshots of (account, chain, balance, capabilities).
package wallet

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jpillora/backoff"
)

// State is the connection state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// zeroBalance is shown whenever no balance is known.
const zeroBalance = "0"

// Snapshot is a read-only copy of the session. It may be invalidated by a
// provider notification at any time, so re-read instead of caching.
type Snapshot struct {
	Account      common.Address
	ChainID      uint64
	Balance      string
	BalanceWei   *big.Int
	BalanceStale bool
	State        State
	Caps         *Capabilities
}

// HasAccount reports whether an account is attached.
func (s Snapshot) HasAccount() bool { return s.Account != (common.Address{}) }

// Connected reports whether the snapshot carries usable capabilities.
func (s Snapshot) Connected() bool { return s.State == StateConnected && s.Caps != nil }

// NoticeLevel grades user-facing notices.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeWarn
	NoticeError
)

// Notice is a message meant for the user, the terminal equivalent of a toast.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

// Update is published after every change to the session.
type Update struct {
	Snapshot Snapshot
	Notice   *Notice
}

// Options configure a Session.
type Options struct {
	Network Network
	Logger  *log.Logger
	Metrics *Metrics
	// CallTimeout bounds each provider call. Zero waits forever.
	CallTimeout time.Duration
	// Dial reaches the wallet when no provider was given, or again after
	// the dialed one failed. Connect and Watch call it on demand.
	Dial func(ctx context.Context) (Provider, error)
	// WatchBackoff paces resubscription after a provider subscription fails.
	WatchBackoff *backoff.Backoff
}

var errInvalidated = errors.New("session invalidated while connecting")

// Session is the single owner of wallet state. All methods are safe for
// concurrent use.
type Session struct {
	pmu      sync.Mutex
	provider Provider
	dial     func(ctx context.Context) (Provider, error)
	dialed   bool
	retry    *backoff.Backoff

	network Network
	log     *log.Logger
	metrics *Metrics
	timeout time.Duration

	mu    sync.RWMutex
	snap  Snapshot
	epoch uint64

	connecting atomic.Bool
	updates    chan Update

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a disconnected session. A nil provider without
// Options.Dial means no wallet is reachable; Connect then fails with
// ErrProviderUnavailable.
func NewSession(p Provider, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Network.ChainID == 0 {
		opts.Network = Calibration
	}
	retry := opts.WatchBackoff
	if retry == nil {
		retry = &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		provider: p,
		dial:     opts.Dial,
		retry:    retry,
		network:  opts.Network,
		log:      logger.WithPrefix("wallet"),
		metrics:  opts.Metrics,
		timeout:  opts.CallTimeout,
		snap:     Snapshot{Balance: zeroBalance, State: StateDisconnected},
		updates:  make(chan Update, 64),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.metrics.setState(StateDisconnected)
	return s
}

// Network returns the target network.
func (s *Session) Network() Network { return s.network }

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Updates delivers a snapshot after every change. Updates are dropped while
// the buffer is full, so readers should re-read Snapshot rather than rely on
// seeing every transition.
func (s *Session) Updates() <-chan Update { return s.updates }

// Close stops background balance refreshes and closes a dialed provider.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
	s.pmu.Lock()
	if s.dialed {
		closeProvider(s.provider)
		s.provider, s.dialed = nil, false
	}
	s.pmu.Unlock()
}

func closeProvider(p Provider) {
	if c, ok := p.(interface{ Close() }); ok {
		c.Close()
	}
}

// currentProvider returns the provider without dialing.
func (s *Session) currentProvider() Provider {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	return s.provider
}

// ensureProvider returns the provider, dialing it first when missing.
func (s *Session) ensureProvider(ctx context.Context) (Provider, error) {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	if s.provider != nil {
		return s.provider, nil
	}
	if s.dial == nil || s.ctx.Err() != nil {
		return nil, ErrProviderUnavailable
	}
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	p, err := s.dial(cctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProviderUnavailable
	}
	s.provider, s.dialed = p, true
	s.log.Info("wallet provider reached")
	return p, nil
}

// dropProvider forgets a dialed provider so the next call dials again. It
// reports whether p was dropped.
func (s *Session) dropProvider(p Provider) bool {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	if !s.dialed || s.provider != p {
		return false
	}
	closeProvider(p)
	s.provider, s.dialed = nil, false
	return true
}

// Connect authorizes an account, moves the wallet to the target network and
// binds capabilities. On success the snapshot is fully populated.
func (s *Session) Connect(ctx context.Context) error {
	const op = "connect"
	provider, perr := s.ensureProvider(ctx)
	if provider == nil {
		err := &Error{Kind: KindProviderUnavailable, Op: op}
		if !errors.Is(perr, ErrProviderUnavailable) {
			err.Err = perr
		}
		s.metrics.connect(err.Kind.String())
		s.notify(NoticeError, "No wallet provider detected. Start a wallet or run with --sim.", err)
		return err
	}
	if !s.connecting.CompareAndSwap(false, true) {
		return &Error{Kind: KindConnectInProgress, Op: op}
	}
	defer s.connecting.Store(false)

	s.mu.Lock()
	prev := s.snap
	epoch := s.epoch
	s.snap.State = StateConnecting
	s.mu.Unlock()
	s.metrics.setState(StateConnecting)
	s.publish(nil)

	cctx, cancel := s.callCtx(ctx)
	accounts, err := provider.RequestAccounts(cctx)
	cancel()
	if err == nil && len(accounts) == 0 {
		err = errors.New("no accounts found")
	}
	if err != nil {
		s.restore(prev, epoch)
		kerr := &Error{Kind: classify(err, KindUnknown), Op: op, Err: err}
		s.metrics.connect(kerr.Kind.String())
		msg := "Failed to connect wallet"
		if kerr.Kind == KindUserRejected {
			msg = "Connection request rejected in the wallet"
		}
		s.notify(NoticeError, msg, kerr)
		return kerr
	}

	if err := s.switchNetwork(ctx); err != nil {
		s.abort(epoch)
		var kerr *Error
		if errors.As(err, &kerr) {
			s.metrics.connect(kerr.Kind.String())
		}
		return err
	}

	account := accounts[0]
	caps, err := s.bind(ctx, account)
	if err != nil {
		s.abort(epoch)
		kerr := &Error{Kind: classify(err, KindUnknown), Op: op, Err: err}
		s.metrics.connect(kerr.Kind.String())
		s.notify(NoticeError, "Failed to bind wallet account", kerr)
		return kerr
	}
	wei, balErr := s.balance(ctx, account)

	if !s.commit(epoch, account, caps, wei, balErr) {
		kerr := &Error{Kind: KindUnknown, Op: op, Err: errInvalidated}
		s.metrics.connect(kerr.Kind.String())
		s.notify(NoticeWarn, "Connection cancelled, the wallet changed while connecting", kerr)
		return kerr
	}
	s.metrics.connect("ok")
	s.log.Info("wallet connected", "account", account.Hex(), "chain", s.network.ChainID)
	s.notify(NoticeSuccess, "Wallet connected successfully!", nil)
	return nil
}

// Disconnect clears the session. It never fails and is a no-op when the
// session is already disconnected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.snap.State == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	s.mu.Unlock()
	s.metrics.setState(StateDisconnected)
	s.log.Info("wallet disconnected")
	s.notify(NoticeSuccess, "Wallet disconnected", nil)
}

// Restore reconnects silently at startup when the wallet already authorized
// an account and is already on the target network. It never prompts.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	provider, _ := s.ensureProvider(ctx)
	if provider == nil {
		return false, nil
	}
	if !s.connecting.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.connecting.Store(false)

	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	cctx, cancel := s.callCtx(ctx)
	accounts, err := provider.Accounts(cctx)
	cancel()
	if err != nil {
		s.log.Error("failed to check connection", "err", err)
		return false, &Error{Kind: classify(err, KindUnknown), Op: "restore", Err: err}
	}
	if len(accounts) == 0 {
		return false, nil
	}

	cctx, cancel = s.callCtx(ctx)
	chainID, err := provider.ChainID(cctx)
	cancel()
	if err != nil {
		s.log.Error("failed to read wallet network", "err", err)
		return false, &Error{Kind: classify(err, KindUnknown), Op: "restore", Err: err}
	}
	if chainID != s.network.ChainID {
		s.mu.Lock()
		if s.epoch == epoch {
			s.snap.ChainID = chainID
		}
		s.mu.Unlock()
		s.log.Info("auto-reconnect skipped, wallet on another network", "chain", chainID, "want", s.network.ChainID)
		s.publish(nil)
		return false, nil
	}

	caps, err := s.bind(ctx, accounts[0])
	if err != nil {
		s.log.Error("failed to bind restored account", "err", err)
		return false, &Error{Kind: classify(err, KindUnknown), Op: "restore", Err: err}
	}
	wei, balErr := s.balance(ctx, accounts[0])
	if !s.commit(epoch, accounts[0], caps, wei, balErr) {
		return false, nil
	}
	s.log.Info("wallet restored", "account", accounts[0].Hex())
	return true, nil
}

// RefreshBalance re-reads the balance of the current account.
func (s *Session) RefreshBalance(ctx context.Context) error {
	snap := s.Snapshot()
	if !snap.Connected() {
		return nil
	}
	wei, err := s.balance(ctx, snap.Account)
	s.applyBalance(snap.Account, wei, err)
	if err != nil {
		return &Error{Kind: KindBalanceQueryFailed, Op: "refresh balance", Err: err}
	}
	return nil
}

// Watch bridges provider notifications into the session until ctx is done.
// A failed subscription is retried with backoff; a dialed provider is
// dialed again first. Subscriptions are released when it returns.
func (s *Session) Watch(ctx context.Context) error {
	if s.currentProvider() == nil && s.dial == nil {
		return ErrProviderUnavailable
	}
	var lost bool
	for {
		p, err := s.ensureProvider(ctx)
		if p != nil {
			err = s.watch(ctx, p, lost)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.ctx.Err() != nil {
			return ErrProviderUnavailable
		}
		if p != nil && s.dropProvider(p) {
			lost = true
			s.connectionLost()
		}
		d := s.retry.Duration()
		s.log.Warn("wallet events interrupted, retrying", "in", d, "attempt", s.retry.Attempt(), "err", err)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.ctx.Done():
			timer.Stop()
			return ErrProviderUnavailable
		case <-timer.C:
		}
	}
}

// connectionLost clears a session whose capabilities came from a provider
// that is gone.
func (s *Session) connectionLost() {
	s.mu.Lock()
	was := s.snap.State
	s.clearLocked()
	s.mu.Unlock()
	if was == StateDisconnected {
		return
	}
	s.metrics.setState(StateDisconnected)
	s.notify(NoticeWarn, "Lost the wallet connection, reconnecting", nil)
}

// watch serves one pair of subscriptions until one of them fails. With
// restore set the session is re-initialized once both are live.
func (s *Session) watch(ctx context.Context, p Provider, restore bool) error {
	accCh := make(chan []common.Address, 8)
	chainCh := make(chan uint64, 8)

	accSub, err := p.SubscribeAccounts(ctx, accCh)
	if err != nil {
		return err
	}
	defer accSub.Unsubscribe()

	chainSub, err := p.SubscribeChain(ctx, chainCh)
	if err != nil {
		return err
	}
	defer chainSub.Unsubscribe()
	s.retry.Reset()
	if restore && !s.Snapshot().Connected() {
		if _, err := s.Restore(ctx); err != nil {
			s.log.Error("re-initialization after reconnect failed", "err", err)
		}
	}

	for {
		select {
		case accounts := <-accCh:
			s.metrics.event("accountsChanged")
			s.handleAccountsChanged(ctx, accounts)
		case id := <-chainCh:
			s.metrics.event("chainChanged")
			s.handleChainChanged(ctx, id)
		case err := <-accSub.Err():
			return errSubscriptionClosed(err)
		case err := <-chainSub.Err():
			return errSubscriptionClosed(err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func errSubscriptionClosed(err error) error {
	if err == nil {
		return errors.New("subscription closed")
	}
	return err
}

func (s *Session) handleAccountsChanged(ctx context.Context, accounts []common.Address) {
	if len(accounts) == 0 {
		s.log.Info("wallet reported no authorized accounts")
		s.Disconnect()
		return
	}
	next := accounts[0]
	snap := s.Snapshot()
	if snap.State != StateConnected || snap.Account == next {
		return
	}

	caps, err := s.bind(ctx, next)
	if err != nil {
		s.log.Error("failed to bind switched account", "account", next.Hex(), "err", err)
		s.Disconnect()
		s.notify(NoticeError, "Could not use the selected account", err)
		return
	}

	s.mu.Lock()
	if s.snap.State != StateConnected {
		s.mu.Unlock()
		return
	}
	s.snap.Account = next
	s.snap.Caps = &caps
	s.snap.BalanceStale = true
	s.mu.Unlock()
	s.log.Info("account changed", "account", next.Hex())
	s.notify(NoticeInfo, "Switched to account "+next.Hex(), nil)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		wei, err := s.balance(s.ctx, next)
		s.applyBalance(next, wei, err)
	}()
}

// handleChainChanged treats every network change as invalidating the whole
// capability set and re-runs startup initialization.
func (s *Session) handleChainChanged(ctx context.Context, chainID uint64) {
	s.mu.Lock()
	if chainID == s.network.ChainID &&
		(s.connecting.Load() || (s.snap.State == StateConnected && s.snap.ChainID == chainID)) {
		// our own switch request, or a repeat of the chain we are bound to
		s.mu.Unlock()
		s.log.Debug("network change ignored", "chain", chainID)
		return
	}
	was := s.snap.State
	s.clearLocked()
	s.snap.ChainID = chainID
	s.mu.Unlock()
	s.metrics.setState(StateDisconnected)
	s.log.Info("network changed, resetting session", "chain", chainID)
	if was != StateDisconnected {
		s.notify(NoticeWarn, "Wallet network changed, session reset", nil)
	} else {
		s.publish(nil)
	}
	if _, err := s.Restore(ctx); err != nil {
		s.log.Error("re-initialization after network change failed", "err", err)
	}
}

// commit installs a connected session unless it was invalidated since epoch.
func (s *Session) commit(epoch uint64, account common.Address, caps Capabilities, wei *big.Int, balErr error) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	s.snap = Snapshot{
		Account: account,
		ChainID: s.network.ChainID,
		State:   StateConnected,
		Caps:    &caps,
	}
	s.setBalanceLocked(wei, balErr)
	s.mu.Unlock()
	s.metrics.setState(StateConnected)

	if balErr != nil {
		s.notify(NoticeWarn, "Could not load balance", &Error{Kind: KindBalanceQueryFailed, Op: "balance", Err: balErr})
	} else {
		s.publish(nil)
	}
	return true
}

func (s *Session) applyBalance(account common.Address, wei *big.Int, err error) {
	s.mu.Lock()
	if s.snap.State != StateConnected || s.snap.Account != account {
		s.mu.Unlock()
		return
	}
	if err != nil {
		// keep the last known value, flagged stale
		s.snap.BalanceStale = true
	} else {
		s.setBalanceLocked(wei, nil)
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("balance refresh failed", "account", account.Hex(), "err", err)
		s.notify(NoticeWarn, "Could not refresh balance", &Error{Kind: KindBalanceQueryFailed, Op: "balance", Err: err})
		return
	}
	s.publish(nil)
}

func (s *Session) setBalanceLocked(wei *big.Int, err error) {
	if err != nil || wei == nil {
		s.snap.Balance = zeroBalance
		s.snap.BalanceWei = nil
		s.snap.BalanceStale = true
		return
	}
	s.snap.Balance = FormatUnits(wei, s.network.Decimals)
	s.snap.BalanceWei = wei
	s.snap.BalanceStale = false
}

// restore puts back the pre-connect snapshot if nothing else changed it.
func (s *Session) restore(prev Snapshot, epoch uint64) {
	s.mu.Lock()
	if s.epoch == epoch {
		s.snap = prev
	}
	state := s.snap.State
	s.mu.Unlock()
	s.metrics.setState(state)
	s.publish(nil)
}

// abort leaves the session disconnected after a failed connect.
func (s *Session) abort(epoch uint64) {
	s.mu.Lock()
	if s.epoch == epoch {
		s.clearLocked()
	}
	state := s.snap.State
	s.mu.Unlock()
	s.metrics.setState(state)
	s.publish(nil)
}

// clearLocked drops everything bound to the current account and bumps the
// epoch so in-flight connects cannot commit. The chain id is kept: it is
// what the wallet reports, not something the session owns.
func (s *Session) clearLocked() {
	s.epoch++
	s.snap = Snapshot{
		ChainID: s.snap.ChainID,
		Balance: zeroBalance,
		State:   StateDisconnected,
	}
}

func (s *Session) bind(ctx context.Context, account common.Address) (Capabilities, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	p := s.currentProvider()
	if p == nil {
		return Capabilities{}, ErrProviderUnavailable
	}
	return p.Bind(cctx, account)
}

func (s *Session) balance(ctx context.Context, account common.Address) (*big.Int, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	p := s.currentProvider()
	if p == nil {
		return nil, ErrProviderUnavailable
	}
	return p.Balance(cctx, account)
}

func (s *Session) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Session) notify(level NoticeLevel, msg string, err error) {
	switch level {
	case NoticeError:
		s.log.Error(msg, "err", err)
	case NoticeWarn:
		s.log.Warn(msg, "err", err)
	}
	s.publish(&Notice{Level: level, Message: msg, Err: err})
}

func (s *Session) publish(n *Notice) {
	u := Update{Snapshot: s.Snapshot(), Notice: n}
	select {
	case s.updates <- u:
	default:
		s.log.Debug("update dropped, reader is behind")
	}
}
