package main

import (
	"context"
	"math/big"
	"strings"
	"time"

	"dataforge-hub/payments"
	"dataforge-hub/registry"
	"dataforge-hub/rpc"
	"dataforge-hub/store"
	"dataforge-hub/wallet"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mdp/qrterminal/v3"
)

// readTimeout bounds contract reads; writes wait for inclusion up to txTimeout.
const (
	readTimeout = 15 * time.Second
	txTimeout   = 5 * time.Minute
)

// -------------------- COMMAND FUNCTIONS --------------------
// Functions that return tea.Cmd for async operations

// waitForSession delivers the next wallet session update
func waitForSession(s *wallet.Session) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-s.Updates()
		return sessionUpdateMsg{update: u, ok: ok}
	}
}

// restoreSession reconnects silently if the wallet already trusts us
func restoreSession(ctx context.Context, s *wallet.Session) tea.Cmd {
	return func() tea.Msg {
		_, err := s.Restore(ctx)
		return sessionOpMsg{op: "restore", err: err}
	}
}

// connectWallet asks the wallet for an account
func connectWallet(ctx context.Context, s *wallet.Session) tea.Cmd {
	return func() tea.Msg {
		return sessionOpMsg{op: "connect", err: s.Connect(ctx)}
	}
}

// switchNetwork moves the wallet to the target network
func switchNetwork(ctx context.Context, s *wallet.Session) tea.Cmd {
	return func() tea.Msg {
		_, err := s.SwitchToExpectedNetwork(ctx)
		return sessionOpMsg{op: "switch", err: err}
	}
}

// refreshBalance re-reads the session balance
func refreshBalance(ctx context.Context, s *wallet.Session) tea.Cmd {
	return func() tea.Msg {
		return sessionOpMsg{op: "refresh", err: s.RefreshBalance(ctx)}
	}
}

// connectRPC establishes a read-only connection to the target network
func connectRPC(url string, chainID uint64) tea.Cmd {
	return func() tea.Msg {
		result := rpc.Connect(url, chainID)
		return rpcConnectedMsg{client: result.Client, err: result.Error}
	}
}

// initLogViewport initializes the log viewport
func initLogViewport() tea.Cmd {
	return func() tea.Msg {
		return logInitMsg{}
	}
}

// loadDetails fetches native and token balances of addr
func loadDetails(b rpc.Backend, addr common.Address, watch []rpc.WatchedToken) tea.Cmd {
	return func() tea.Msg {
		return detailsLoadedMsg{d: rpc.LoadAccountDetails(b, addr, watch)}
	}
}

// copyToClipboard copies text to clipboard
func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		err := clipboard.WriteAll(text)
		if err == nil {
			return clipboardCopiedMsg{}
		}
		return nil
	}
}

// clearClipboardMsg waits 2 seconds then sends a message to clear clipboard feedback
func clearClipboardMsg() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return clearCopiedMsg{}
	})
}

// generateQR renders text as a half-block terminal QR code
func generateQR(text string) string {
	var b strings.Builder
	qrterminal.GenerateHalfBlock(text, qrterminal.L, &b)
	return b.String()
}

// lookupDataset reads a dataset and its owner from the registry
func lookupDataset(ctx context.Context, r *registry.Registry, id *big.Int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		d, err := r.Lookup(ctx, id)
		return datasetLoadedMsg{d: d, err: err}
	}
}

// purchaseDataset pays for dataset access through the registry
func purchaseDataset(ctx context.Context, r *registry.Registry, caps wallet.Capabilities, d registry.Dataset) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, txTimeout)
		defer cancel()
		p, tx, err := r.Purchase(ctx, caps, d.ID, d.Price)
		return purchaseDoneMsg{payment: p, tx: tx, err: err}
	}
}

// registerDataset mints a dataset NFT for the connected account
func registerDataset(ctx context.Context, r *registry.Registry, caps wallet.Capabilities, d registry.Dataset) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, txTimeout)
		defer cancel()
		id, tx, err := r.Register(ctx, caps, d)
		if err == nil {
			d.ID = id
			d.Owner = caps.Signer.Address()
		}
		return registeredMsg{dataset: d, tx: tx, err: err}
	}
}

// loadRails reads the locally recorded rails and settlement history
func loadRails(ctx context.Context, s *store.Store) tea.Cmd {
	return func() tea.Msg {
		rails, err := s.ActiveRails(ctx)
		if err != nil {
			return railsLoadedMsg{err: err}
		}
		history, err := s.Settlements(ctx)
		return railsLoadedMsg{rails: rails, history: history, err: err}
	}
}

// loadPayBalance reads the Filecoin Pay balances of account
func loadPayBalance(ctx context.Context, c *payments.Client, account common.Address) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		bal, err := c.Balance(ctx, account)
		return payBalanceMsg{bal: bal, err: err}
	}
}

// loadRailInfo reads a rail's on-chain state
func loadRailInfo(ctx context.Context, c *payments.Client, rail common.Hash) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		info, err := c.RailInfo(ctx, rail)
		return railInfoMsg{rail: rail, info: info, err: err}
	}
}

// ensurePayAccount opens the signer's Filecoin Pay account
func ensurePayAccount(ctx context.Context, c *payments.Client, caps wallet.Capabilities) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, txTimeout)
		defer cancel()
		tx, err := c.EnsureAccount(ctx, caps)
		return railTxMsg{op: "account", tx: tx, err: err}
	}
}

// createRail opens a payment rail
func createRail(ctx context.Context, c *payments.Client, caps wallet.Capabilities, cfg payments.RailConfig) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, txTimeout)
		defer cancel()
		rail, tx, err := c.CreateRail(ctx, caps, cfg)
		return railTxMsg{op: "create", rail: rail, tx: tx, err: err}
	}
}

// settleRail settles the payments accrued on a rail
func settleRail(ctx context.Context, c *payments.Client, caps wallet.Capabilities, rail common.Hash) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, txTimeout)
		defer cancel()
		tx, err := c.Settle(ctx, caps, rail)
		return railTxMsg{op: "settle", rail: rail, tx: tx, err: err}
	}
}

// terminateRail ends a rail
func terminateRail(ctx context.Context, c *payments.Client, caps wallet.Capabilities, rail common.Hash) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, txTimeout)
		defer cancel()
		tx, err := c.Terminate(ctx, caps, rail)
		return railTxMsg{op: "terminate", rail: rail, tx: tx, err: err}
	}
}

// -------------------- MODEL HELPER METHODS --------------------
// These methods help with state management and command generation

// addLog adds a log entry with timestamp and type
func (m *model) addLog(logType, message string) {
	if m.logger == nil {
		return
	}

	// Use the logger to write messages
	switch logType {
	case "info":
		m.logger.Info(message)
	case "success":
		m.logger.Info("✓", "msg", message)
	case "error":
		m.logger.Error(message)
	case "warning":
		m.logger.Warn(message)
	case "debug":
		m.logger.Debug(message)
	default:
		m.logger.Print(message)
	}

	// Update viewport content
	m.updateLogViewport()
}

// updateLogViewport refreshes the viewport content with log output
func (m *model) updateLogViewport() {
	if !m.logEnabled || !m.logReady || m.logBuffer == nil {
		return
	}

	// Get content from log buffer
	content := m.logBuffer.String()
	m.logViewport.SetContent(content)
	// Scroll to bottom to show latest entries
	m.logViewport.GotoBottom()
}

// textInputActive returns true if any form is currently taking keys
func (m *model) textInputActive() bool {
	if m.form == nil {
		return false
	}
	return m.settingsMode != "list" || m.browseMode != "list" || m.railsMode != "list"
}

// backend returns the read handle for balances: the RPC connection when up,
// otherwise the connected wallet's own read handle.
func (m *model) backend() rpc.Backend {
	if m.ethClient != nil {
		return m.ethClient
	}
	if m.snap.Connected() {
		return m.snap.Caps.Reader
	}
	return nil
}

// caller returns the contract read handle, see backend.
func (m *model) caller() bind.ContractCaller {
	if m.ethClient != nil {
		return m.ethClient
	}
	if m.snap.Connected() {
		return m.snap.Caps.Reader
	}
	return nil
}

// registry binds the dataset registry, or nil when nothing can serve reads
func (m *model) registry() *registry.Registry {
	c := m.caller()
	if c == nil {
		return nil
	}
	return registry.New(common.HexToAddress(m.cfg.RegistryAddress), c)
}

// payments binds Filecoin Pay, or nil when nothing can serve reads
func (m *model) payments() *payments.Client {
	c := m.caller()
	if c == nil {
		return nil
	}
	opts := []payments.Option{payments.WithLogger(m.logger)}
	if m.store != nil {
		opts = append(opts, payments.WithStore(m.store))
	}
	return payments.New(common.HexToAddress(m.cfg.FilPayAddress), c, opts...)
}

// caps returns the session capabilities if connected
func (m *model) caps() (wallet.Capabilities, bool) {
	if !m.snap.Connected() {
		return wallet.Capabilities{}, false
	}
	return *m.snap.Caps, true
}

// loadAccountDetails loads balances of the connected account
func (m *model) loadAccountDetails() tea.Cmd {
	if !m.snap.HasAccount() {
		m.details = rpc.AccountDetails{}
		return nil
	}
	m.loading = true
	m.details = rpc.AccountDetails{Address: m.snap.Account.Hex()}
	return loadDetails(m.backend(), m.snap.Account, m.tokenWatch)
}

// loadPayments refreshes the Filecoin Pay balance of the connected account
func (m *model) loadPayments() tea.Cmd {
	c := m.payments()
	if c == nil || !m.snap.HasAccount() {
		return nil
	}
	return loadPayBalance(m.ctx, c, m.snap.Account)
}
