package main

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"dataforge-hub/config"
	"dataforge-hub/registry"
	"dataforge-hub/wallet"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func testModel(t *testing.T) *model {
	t.Helper()
	s := wallet.NewSession(nil, wallet.Options{})
	t.Cleanup(s.Close)
	m := newModel(context.Background(), appDeps{
		cfg:        config.DefaultConfig(),
		configPath: filepath.Join(t.TempDir(), "config.json"),
		session:    s,
	})
	return &m
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLogBufferConcurrentWrites(t *testing.T) {
	var b logBuffer
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = b.Write([]byte("x\n"))
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 800, strings.Count(b.String(), "\n"))

	b.Reset()
	require.Empty(t, b.String())
}

func TestNavigationKeys(t *testing.T) {
	m := testModel(t)
	m.activePage = config.PageWallet

	tests := []struct {
		key  string
		want config.Page
	}{
		{"b", config.PageBrowse},
		{"p", config.PageRails},
		{"s", config.PageSettings},
		{"w", config.PageWallet},
		{"esc", config.PageHome},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m.Update(keyPress(tt.key))
			require.Equal(t, tt.want, m.activePage)
		})
	}
}

func TestUpsertDataset(t *testing.T) {
	m := testModel(t)
	n := len(m.datasets)

	m.upsertDataset(registry.Dataset{ID: big.NewInt(2), Name: "renamed"})
	require.Len(t, m.datasets, n)
	require.Equal(t, 1, m.selectedDataset)
	require.Equal(t, "renamed", m.datasets[1].Name)

	m.upsertDataset(registry.Dataset{ID: big.NewInt(99), Name: "new"})
	require.Len(t, m.datasets, n+1)
	require.Equal(t, n, m.selectedDataset)
}

func TestPurchaseRequiresWallet(t *testing.T) {
	m := testModel(t)
	m.activePage = config.PageBrowse

	_, cmd := m.Update(keyPress("enter"))
	require.Nil(t, cmd)
	require.Empty(t, m.txPending)
	require.NotNil(t, m.currentNotice())
	require.Equal(t, wallet.NoticeWarn, m.notice.Level)
}

func TestRejectedPurchase(t *testing.T) {
	m := testModel(t)
	m.txPending = "purchasing"

	m.Update(purchaseDoneMsg{err: &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "denied"}})
	require.Empty(t, m.txPending)
	require.Equal(t, "Transaction rejected in the wallet", m.notice.Message)

	m.Update(purchaseDoneMsg{err: errors.New("reverted")})
	require.Equal(t, wallet.NoticeError, m.notice.Level)
}

func TestDeleteActiveRPC(t *testing.T) {
	m := testModel(t)
	m.activePage = config.PageSettings

	m.Update(keyPress("d"))
	require.True(t, m.showRPCDeleteDialog)

	_, cmd := m.Update(keyPress("enter"))
	require.False(t, m.showRPCDeleteDialog)
	require.Len(t, m.cfg.RPCURLs, 1)
	require.NotNil(t, cmd, "deleting the active endpoint reconnects")
	require.True(t, m.rpcConnecting)
	require.Equal(t, wallet.Calibration.RPCURL, m.rpcURL)

	_, err := os.Stat(m.configPath)
	require.NoError(t, err)
}

func TestSessionClosedStopsListening(t *testing.T) {
	m := testModel(t)
	_, cmd := m.Update(sessionUpdateMsg{ok: false})
	require.Nil(t, cmd)
}

func TestRegisteredDatasetIsSelected(t *testing.T) {
	m := testModel(t)
	m.txPending = "registering Waves"
	n := len(m.datasets)

	m.Update(registeredMsg{dataset: registry.Dataset{ID: big.NewInt(42), Name: "Waves"}})
	require.Empty(t, m.txPending)
	require.Len(t, m.datasets, n+1)
	require.Equal(t, n, m.selectedDataset)
	require.Equal(t, "Registered `Waves` as dataset #42", m.notice.Message)

	m.Update(registeredMsg{dataset: registry.Dataset{Name: "Broken"}, err: wallet.ErrTxReverted})
	require.Equal(t, wallet.NoticeError, m.notice.Level)
	require.Len(t, m.datasets, n+1)
}
