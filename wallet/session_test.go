package wallet_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"dataforge-hub/simwallet"
	"dataforge-hub/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var (
	acctA = common.HexToAddress("0xAAA0000000000000000000000000000000000001")
	acctB = common.HexToAddress("0xBBB0000000000000000000000000000000000002")
	acctC = common.HexToAddress("0xCCC0000000000000000000000000000000000003")
	acctD = common.HexToAddress("0xDDD0000000000000000000000000000000000004")
)

const target = 314159

func fil(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func newSession(t *testing.T, p wallet.Provider, opts wallet.Options) *wallet.Session {
	t.Helper()
	if opts.Network.ChainID == 0 {
		opts.Network = wallet.Calibration
	}
	s := wallet.NewSession(p, opts)
	t.Cleanup(s.Close)
	return s
}

// watch runs the event bridge and waits until both subscriptions are live.
func watch(t *testing.T, s *wallet.Session, sim *simwallet.Wallet) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	before := sim.Subscriptions()
	go func() { done <- s.Watch(ctx) }()
	require.Eventually(t, func() bool { return sim.Subscriptions() == before+2 }, time.Second, 5*time.Millisecond)

	var stopped bool
	var err error
	stop = func() error {
		if !stopped {
			cancel()
			err = <-done
			stopped = true
		}
		return err
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func TestDisconnectIsIdempotent(t *testing.T) {
	s := newSession(t, simwallet.New(target, acctA), wallet.Options{})

	before := s.Snapshot()
	s.Disconnect()
	s.Disconnect()
	require.Equal(t, before, s.Snapshot())
	require.Equal(t, wallet.StateDisconnected, s.Snapshot().State)
}

func TestDisconnectClearsSession(t *testing.T) {
	sim := simwallet.New(target, acctA)
	sim.SetBalance(acctA, fil(3))
	s := newSession(t, sim, wallet.Options{})

	require.NoError(t, s.Connect(context.Background()))
	s.Disconnect()

	snap := s.Snapshot()
	require.Equal(t, wallet.StateDisconnected, snap.State)
	require.False(t, snap.HasAccount())
	require.Nil(t, snap.Caps)
	require.Nil(t, snap.BalanceWei)
	require.Equal(t, "0", snap.Balance)
}

func TestConnect(t *testing.T) {
	t.Run("already on target network", func(t *testing.T) {
		sim := simwallet.New(target, acctA)
		sim.SetBalance(acctA, fil(12))
		s := newSession(t, sim, wallet.Options{})

		require.NoError(t, s.Connect(context.Background()))

		snap := s.Snapshot()
		require.Equal(t, wallet.StateConnected, snap.State)
		require.Equal(t, acctA, snap.Account)
		require.EqualValues(t, target, snap.ChainID)
		require.NotNil(t, snap.Caps)
		require.NotNil(t, snap.Caps.Signer)
		require.NotNil(t, snap.Caps.Reader)
		require.Equal(t, acctA, snap.Caps.Signer.Address())
		require.Equal(t, "12.0", snap.Balance)
		require.False(t, snap.BalanceStale)
		require.False(t, sim.Called(simwallet.MethodAddChain))
	})

	t.Run("registers unknown network", func(t *testing.T) {
		sim := simwallet.New(1, acctB)
		s := newSession(t, sim, wallet.Options{})

		require.NoError(t, s.Connect(context.Background()))

		snap := s.Snapshot()
		require.Equal(t, wallet.StateConnected, snap.State)
		require.Equal(t, acctB, snap.Account)
		require.EqualValues(t, target, snap.ChainID)
		require.True(t, sim.Called(simwallet.MethodSwitchChain))
		require.True(t, sim.Called(simwallet.MethodAddChain))
	})

	t.Run("switches to known network", func(t *testing.T) {
		sim := simwallet.New(1, acctB)
		sim.Register(target)
		s := newSession(t, sim, wallet.Options{})

		require.NoError(t, s.Connect(context.Background()))
		require.True(t, sim.Called(simwallet.MethodSwitchChain))
		require.False(t, sim.Called(simwallet.MethodAddChain))
		require.EqualValues(t, target, s.Snapshot().ChainID)
	})
}

func TestConnectWithoutProvider(t *testing.T) {
	s := newSession(t, nil, wallet.Options{})
	before := s.Snapshot()

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, wallet.ErrProviderUnavailable)
	require.Equal(t, before, s.Snapshot())
}

func TestConnectRejected(t *testing.T) {
	t.Run("from disconnected", func(t *testing.T) {
		sim := simwallet.New(target, acctA)
		sim.RejectRequests(true)
		s := newSession(t, sim, wallet.Options{})
		before := s.Snapshot()

		err := s.Connect(context.Background())
		require.ErrorIs(t, err, wallet.ErrUserRejected)
		require.Equal(t, before, s.Snapshot())
		require.False(t, sim.Called(simwallet.MethodSwitchChain))
	})

	t.Run("from connected", func(t *testing.T) {
		sim := simwallet.New(target, acctA)
		s := newSession(t, sim, wallet.Options{})
		require.NoError(t, s.Connect(context.Background()))
		before := s.Snapshot()

		sim.RejectRequests(true)
		err := s.Connect(context.Background())
		require.ErrorIs(t, err, wallet.ErrUserRejected)
		require.Equal(t, before, s.Snapshot())
	})
}

func TestConnectNetworkFailures(t *testing.T) {
	t.Run("switch error does not attempt registration", func(t *testing.T) {
		sim := simwallet.New(1, acctA)
		sim.FailSwitch(&wallet.ProviderError{Code: -32603, Message: "internal error"})
		s := newSession(t, sim, wallet.Options{})

		err := s.Connect(context.Background())
		require.ErrorIs(t, err, wallet.ErrNetworkSwitchFailed)
		require.False(t, sim.Called(simwallet.MethodAddChain))

		snap := s.Snapshot()
		require.Equal(t, wallet.StateDisconnected, snap.State)
		require.False(t, snap.HasAccount())
		require.Nil(t, snap.Caps)
	})

	t.Run("registration failure", func(t *testing.T) {
		sim := simwallet.New(1, acctA)
		sim.FailAdd(errors.New("user closed the dialog"))
		s := newSession(t, sim, wallet.Options{})

		err := s.Connect(context.Background())
		require.ErrorIs(t, err, wallet.ErrRegistrationFailed)
		require.True(t, sim.Called(simwallet.MethodAddChain))
		require.Equal(t, wallet.StateDisconnected, s.Snapshot().State)
		require.Nil(t, s.Snapshot().Caps)
	})
}

func TestConnectBalanceFailureDefaultsToZero(t *testing.T) {
	sim := simwallet.New(target, acctA)
	sim.FailBalance(errors.New("rpc unavailable"))
	s := newSession(t, sim, wallet.Options{})

	require.NoError(t, s.Connect(context.Background()))

	snap := s.Snapshot()
	require.Equal(t, wallet.StateConnected, snap.State)
	require.Equal(t, "0", snap.Balance)
	require.True(t, snap.BalanceStale)

	sim.FailBalance(nil)
	sim.SetBalance(acctA, fil(1))
	require.NoError(t, s.RefreshBalance(context.Background()))
	require.Equal(t, "1.0", s.Snapshot().Balance)
	require.False(t, s.Snapshot().BalanceStale)
}

func TestConnectInProgress(t *testing.T) {
	sim := simwallet.New(target, acctA)
	release := sim.Hold()
	s := newSession(t, sim, wallet.Options{})

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background()) }()
	require.Eventually(t, func() bool { return s.Snapshot().State == wallet.StateConnecting }, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, s.Connect(context.Background()), wallet.ErrConnectInProgress)

	release()
	require.NoError(t, <-done)
	require.Equal(t, wallet.StateConnected, s.Snapshot().State)
}

func TestDisconnectDuringConnectWins(t *testing.T) {
	sim := simwallet.New(target, acctA)
	release := sim.Hold()
	s := newSession(t, sim, wallet.Options{})

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background()) }()
	require.Eventually(t, func() bool { return s.Snapshot().State == wallet.StateConnecting }, time.Second, 5*time.Millisecond)

	s.Disconnect()
	release()
	require.Error(t, <-done)

	snap := s.Snapshot()
	require.Equal(t, wallet.StateDisconnected, snap.State)
	require.Nil(t, snap.Caps)

	var warned bool
	for _, n := range drainNotices(s) {
		if n.Level == wallet.NoticeWarn && strings.HasPrefix(n.Message, "Connection cancelled") {
			warned = true
		}
	}
	require.True(t, warned, "a discarded connect is reported to the user")
}

func TestConnectTimeout(t *testing.T) {
	sim := simwallet.New(target, acctA)
	release := sim.Hold()
	defer release()
	s := newSession(t, sim, wallet.Options{CallTimeout: 20 * time.Millisecond})

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, wallet.ErrTimedOut)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, wallet.StateDisconnected, s.Snapshot().State)
}

func TestSwitchToExpectedNetwork(t *testing.T) {
	sim := simwallet.New(1, acctA)
	s := newSession(t, sim, wallet.Options{})

	ok, err := s.SwitchToExpectedNetwork(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, target, s.Snapshot().ChainID)
	require.Equal(t, wallet.StateDisconnected, s.Snapshot().State)

	chainID, err := sim.ChainID(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, target, chainID)
}

func TestAccountsChanged(t *testing.T) {
	t.Run("empty list disconnects", func(t *testing.T) {
		sim := simwallet.New(target, acctA)
		s := newSession(t, sim, wallet.Options{})
		watch(t, s, sim)
		require.NoError(t, s.Connect(context.Background()))

		reference := newSession(t, simwallet.New(target, acctA), wallet.Options{})
		require.NoError(t, reference.Connect(context.Background()))
		reference.Disconnect()

		require.Equal(t, 1, sim.EmitAccounts())
		require.Eventually(t, func() bool { return s.Snapshot().State == wallet.StateDisconnected }, time.Second, 5*time.Millisecond)
		require.Equal(t, reference.Snapshot(), s.Snapshot())
	})

	t.Run("empty list while disconnected", func(t *testing.T) {
		sim := simwallet.New(target, acctA)
		s := newSession(t, sim, wallet.Options{})
		watch(t, s, sim)
		before := s.Snapshot()

		sim.EmitAccounts()
		require.Never(t, func() bool { return s.Snapshot() != before }, 50*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("new account is adopted and balance refreshed", func(t *testing.T) {
		sim := simwallet.New(target, acctC, acctD)
		sim.SetBalance(acctC, fil(5))
		sim.SetBalance(acctD, fil(7))
		s := newSession(t, sim, wallet.Options{})
		watch(t, s, sim)
		require.NoError(t, s.Connect(context.Background()))
		require.Equal(t, "5.0", s.Snapshot().Balance)

		sim.EmitAccounts(acctD, acctC)
		require.Eventually(t, func() bool { return s.Snapshot().Account == acctD }, time.Second, 5*time.Millisecond)
		require.Equal(t, wallet.StateConnected, s.Snapshot().State)
		require.Equal(t, acctD, s.Snapshot().Caps.Signer.Address())
		require.Eventually(t, func() bool { return s.Snapshot().Balance == "7.0" }, time.Second, 5*time.Millisecond)
	})
}

func TestChainChangedReinitializes(t *testing.T) {
	sim := simwallet.New(target, acctA)
	s := newSession(t, sim, wallet.Options{})
	watch(t, s, sim)
	require.NoError(t, s.Connect(context.Background()))

	sim.EmitChain(1)
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.State == wallet.StateDisconnected && snap.ChainID == 1
	}, time.Second, 5*time.Millisecond)
	require.Nil(t, s.Snapshot().Caps)

	// back on the target network the startup path reconnects without a prompt
	prompts := countCalls(sim, simwallet.MethodRequestAccounts)
	sim.EmitChain(target)
	require.Eventually(t, func() bool { return s.Snapshot().State == wallet.StateConnected }, time.Second, 5*time.Millisecond)
	require.Equal(t, prompts, countCalls(sim, simwallet.MethodRequestAccounts))
}

func TestOwnNetworkSwitchKeepsSession(t *testing.T) {
	unchanged := func(t *testing.T, s *wallet.Session) {
		t.Helper()
		caps := s.Snapshot().Caps
		require.NotNil(t, caps)
		require.Never(t, func() bool {
			snap := s.Snapshot()
			return snap.State != wallet.StateConnected || snap.Caps != caps
		}, 200*time.Millisecond, 5*time.Millisecond)
		for _, n := range drainNotices(s) {
			require.NotEqual(t, "Wallet network changed, session reset", n.Message)
		}
	}

	t.Run("connect switches from another chain", func(t *testing.T) {
		sim := simwallet.New(1, acctA)
		sim.Register(target)
		s := newSession(t, sim, wallet.Options{})
		watch(t, s, sim)

		require.NoError(t, s.Connect(context.Background()))
		require.True(t, sim.Called(simwallet.MethodSwitchChain))
		unchanged(t, s)
	})

	t.Run("repeat of the bound chain", func(t *testing.T) {
		sim := simwallet.New(target, acctA)
		s := newSession(t, sim, wallet.Options{})
		watch(t, s, sim)
		require.NoError(t, s.Connect(context.Background()))

		require.Equal(t, 1, sim.EmitChain(target))
		unchanged(t, s)
	})
}

func TestConnectDialsLazily(t *testing.T) {
	sim := simwallet.New(target, acctA)
	var dials int
	s := newSession(t, nil, wallet.Options{
		Dial: func(ctx context.Context) (wallet.Provider, error) {
			dials++
			if dials == 1 {
				return nil, errors.New("connection refused")
			}
			return sim, nil
		},
	})

	require.ErrorIs(t, s.Connect(context.Background()), wallet.ErrProviderUnavailable)
	require.Equal(t, wallet.StateDisconnected, s.Snapshot().State)

	require.NoError(t, s.Connect(context.Background()))
	require.Equal(t, wallet.StateConnected, s.Snapshot().State)
	require.Equal(t, 2, dials)

	require.NoError(t, s.Connect(context.Background()))
	require.Equal(t, 2, dials, "a reachable provider is reused")
}

func fastRetry() *backoff.Backoff {
	return &backoff.Backoff{Min: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
}

func TestWatchResubscribes(t *testing.T) {
	sim := simwallet.New(target, acctA, acctB)
	s := newSession(t, sim, wallet.Options{WatchBackoff: fastRetry()})
	watch(t, s, sim)
	require.NoError(t, s.Connect(context.Background()))

	sim.DropSubscriptions(errors.New("connection reset"))
	require.Eventually(t, func() bool { return sim.Subscriptions() == 4 }, time.Second, 5*time.Millisecond)
	require.Equal(t, wallet.StateConnected, s.Snapshot().State)

	sim.EmitAccounts(acctB)
	require.Eventually(t, func() bool { return s.Snapshot().Account == acctB }, time.Second, 5*time.Millisecond)
}

func TestWatchRedialsLostProvider(t *testing.T) {
	first := simwallet.New(target, acctA)
	second := simwallet.New(target, acctB)
	second.Authorize()

	var mu sync.Mutex
	providers := []*simwallet.Wallet{first, second}
	s := newSession(t, nil, wallet.Options{
		WatchBackoff: fastRetry(),
		Dial: func(ctx context.Context) (wallet.Provider, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(providers) == 0 {
				return nil, errors.New("no wallet")
			}
			p := providers[0]
			providers = providers[1:]
			return p, nil
		},
	})
	watch(t, s, first)
	require.NoError(t, s.Connect(context.Background()))
	require.Equal(t, acctA, s.Snapshot().Account)

	first.DropSubscriptions(errors.New("wallet closed"))
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Connected() && snap.Account == acctB
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, second.Subscriptions())
	require.False(t, second.Called(simwallet.MethodRequestAccounts), "reconnect never prompts")
}

func TestWatchReleasesSubscriptions(t *testing.T) {
	sim := simwallet.New(target, acctA)
	s := newSession(t, sim, wallet.Options{})
	stop := watch(t, s, sim)

	require.ErrorIs(t, stop(), context.Canceled)
	require.Zero(t, sim.EmitAccounts(acctB))
	require.Zero(t, sim.EmitChain(1))
}

func TestRestore(t *testing.T) {
	t.Run("authorized on target network", func(t *testing.T) {
		sim := simwallet.New(target, acctA)
		sim.Authorize()
		s := newSession(t, sim, wallet.Options{})

		ok, err := s.Restore(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, wallet.StateConnected, s.Snapshot().State)
		require.Equal(t, acctA, s.Snapshot().Account)
		require.False(t, sim.Called(simwallet.MethodRequestAccounts))
		require.False(t, sim.Called(simwallet.MethodSwitchChain))
	})

	t.Run("authorized on another network", func(t *testing.T) {
		sim := simwallet.New(1, acctA)
		sim.Authorize()
		s := newSession(t, sim, wallet.Options{})

		ok, err := s.Restore(context.Background())
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, wallet.StateDisconnected, s.Snapshot().State)
		require.False(t, s.Snapshot().HasAccount())
		require.False(t, sim.Called(simwallet.MethodRequestAccounts))
		require.False(t, sim.Called(simwallet.MethodSwitchChain))
	})

	t.Run("nothing authorized", func(t *testing.T) {
		sim := simwallet.New(target, acctA)
		s := newSession(t, sim, wallet.Options{})

		ok, err := s.Restore(context.Background())
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, wallet.StateDisconnected, s.Snapshot().State)
	})
}

func TestUpdatesCarryNotices(t *testing.T) {
	sim := simwallet.New(target, acctA)
	s := newSession(t, sim, wallet.Options{})
	require.NoError(t, s.Connect(context.Background()))

	var last wallet.Update
	var notices []string
	for len(s.Updates()) > 0 {
		last = <-s.Updates()
		if last.Notice != nil {
			notices = append(notices, last.Notice.Message)
		}
	}
	require.Equal(t, wallet.StateConnected, last.Snapshot.State)
	require.Contains(t, notices, "Wallet connected successfully!")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := wallet.NewMetrics(reg)

	sim := simwallet.New(target, acctA)
	s := newSession(t, sim, wallet.Options{Metrics: m})
	require.NoError(t, s.Connect(context.Background()))

	sim.RejectRequests(true)
	require.Error(t, s.Connect(context.Background()))

	count, err := testutil.GatherAndCount(reg, "dataforge_wallet_connect_attempts_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func drainNotices(s *wallet.Session) []wallet.Notice {
	var out []wallet.Notice
	for len(s.Updates()) > 0 {
		if u := <-s.Updates(); u.Notice != nil {
			out = append(out, *u.Notice)
		}
	}
	return out
}

func countCalls(sim *simwallet.Wallet, method string) int {
	n := 0
	for _, c := range sim.Calls() {
		if c == method {
			n++
		}
	}
	return n
}
