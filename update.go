package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dataforge-hub/config"
	"dataforge-hub/helpers"
	"dataforge-hub/registry"
	"dataforge-hub/rpc"
	"dataforge-hub/views/home"
	"dataforge-hub/wallet"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/common"
)

// toast shows a short notice in the header
func (m *model) toast(level wallet.NoticeLevel, msg string) {
	m.notice = &wallet.Notice{Level: level, Message: msg}
	m.noticeAt = time.Now()
}

// txFailed reports a failed contract transaction
func (m *model) txFailed(what string, err error) {
	m.addLog("error", fmt.Sprintf("%s failed: %s", what, err))
	if wallet.ErrorCode(err) == wallet.CodeUserRejected {
		m.toast(wallet.NoticeWarn, "Transaction rejected in the wallet")
		return
	}
	m.toast(wallet.NoticeError, what+" failed")
}

// reconnectRPC drops the current read connection and dials url
func (m *model) reconnectRPC(url string) tea.Cmd {
	if m.ethClient != nil {
		m.ethClient.Close()
		m.ethClient = nil
	}
	m.rpcURL = url
	m.rpcConnected = false
	m.rpcConnecting = true
	return connectRPC(url, m.cfg.Network.ChainID)
}

// navigate switches page and loads what the page needs
func (m *model) navigate(page config.Page) tea.Cmd {
	m.activePage = page
	m.addLog("debug", "page "+page.String())
	switch page {
	case config.PageHome:
		m.homeForm = home.CreateForm()
	case config.PageWallet:
		if m.snap.HasAccount() && m.details.LoadedAt.IsZero() && !m.loading {
			return m.loadAccountDetails()
		}
	case config.PageRails:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, loadRails(m.ctx, m.store))
		}
		cmds = append(cmds, m.loadPayments())
		return tea.Batch(cmds...)
	case config.PageSettings:
		m.configErrs = m.cfg.Validate()
	}
	return nil
}

func (m *model) onSessionUpdate(msg sessionUpdateMsg) tea.Cmd {
	if !msg.ok {
		return nil
	}
	prev := m.snap
	m.snap = msg.update.Snapshot
	if n := msg.update.Notice; n != nil {
		m.notice = n
		m.noticeAt = time.Now()
	}
	m.updateLogViewport()

	cmds := []tea.Cmd{waitForSession(m.session)}
	switch {
	case !m.snap.HasAccount():
		m.showQR = false
		m.details = rpc.AccountDetails{}
		m.payErr = ""
		m.railInfo = nil
	case m.snap.Account != prev.Account || (m.snap.Connected() && !prev.Connected()):
		cmds = append(cmds, m.loadAccountDetails(), m.loadPayments())
	}
	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case sessionUpdateMsg:
		return m, m.onSessionUpdate(msg)

	case sessionOpMsg:
		m.busy = ""
		if msg.err != nil {
			if errors.Is(msg.err, wallet.ErrConnectInProgress) {
				m.toast(wallet.NoticeWarn, "A wallet request is already pending")
			}
			m.addLog("debug", fmt.Sprintf("%s: %s", msg.op, msg.err))
		}
		return m, nil

	case logInitMsg:
		if !m.logEnabled {
			return m, nil
		}
		m.logReady = true
		m.addLog("info", "Logger enabled")
		return m, nil

	case rpcConnectedMsg:
		m.rpcConnecting = false
		if msg.err != nil {
			m.ethClient = nil
			m.rpcConnected = false
			m.addLog("error", fmt.Sprintf("RPC connection failed: `%s`", msg.err.Error()))
			return m, nil
		}
		m.ethClient = msg.client
		m.rpcConnected = true
		if m.sim != nil {
			m.sim.SetBackend(msg.client)
		}
		m.addLog("success", fmt.Sprintf("RPC connected to `%s` (chain %d)", msg.client.URL, msg.client.ChainID))
		if m.snap.HasAccount() {
			return m, tea.Batch(m.loadAccountDetails(), m.loadPayments())
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.w, m.h = msg.Width, msg.Height
		if m.logEnabled {
			// Width accounts for border and padding
			m.logViewport.Width = max(0, msg.Width-6)
			m.updateLogViewport()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		var cmds []tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
		// Update log spinner too if log is enabled but not ready
		if m.logEnabled && !m.logReady {
			m.logSpinner, cmd = m.logSpinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case detailsLoadedMsg:
		if !strings.EqualFold(msg.d.Address, m.snap.Account.Hex()) {
			// account changed while loading
			return m, nil
		}
		m.loading = false
		m.details = msg.d
		if m.details.ErrMessage != "" {
			m.addLog("error", fmt.Sprintf("Account `%s`: %s", helpers.ShortenAddr(m.details.Address), m.details.ErrMessage))
		} else {
			m.addLog("success", fmt.Sprintf("Loaded balances for `%s` - %s", helpers.ShortenAddr(m.details.Address),
				helpers.FormatAmount(m.details.NativeWei, m.cfg.Network.Decimals, m.cfg.Network.Symbol)))
		}
		return m, nil

	case datasetLoadedMsg:
		m.reading = false
		if msg.err != nil {
			m.addLog("error", "Dataset lookup failed: "+msg.err.Error())
			m.toast(wallet.NoticeError, "Dataset not found")
			return m, nil
		}
		m.upsertDataset(msg.d)
		m.addLog("success", fmt.Sprintf("Loaded dataset #%s `%s`", msg.d.ID, msg.d.Name))
		return m, nil

	case purchaseDoneMsg:
		m.txPending = ""
		if msg.err != nil {
			m.txFailed("Purchase", msg.err)
			return m, nil
		}
		m.lastTx = msg.tx
		m.lastPayment = &msg.payment
		m.toast(wallet.NoticeSuccess, fmt.Sprintf("Purchased dataset #%s", msg.payment.TokenID))
		m.addLog("success", fmt.Sprintf("Purchase confirmed in `%s`", msg.tx.Hex()))
		return m, tea.Batch(refreshBalance(m.ctx, m.session), m.loadAccountDetails())

	case registeredMsg:
		m.txPending = ""
		if msg.err != nil {
			m.txFailed("Registration", msg.err)
			return m, nil
		}
		m.lastTx = msg.tx
		m.lastPayment = nil
		d := msg.dataset
		if d.ID == nil {
			m.toast(wallet.NoticeSuccess, fmt.Sprintf("Registered `%s`", d.Name))
			m.addLog("warning", fmt.Sprintf("Registered `%s` in `%s`, no token id in the receipt", d.Name, msg.tx.Hex()))
			return m, nil
		}
		m.upsertDataset(d)
		m.toast(wallet.NoticeSuccess, fmt.Sprintf("Registered `%s` as dataset #%s", d.Name, d.ID))
		m.addLog("success", fmt.Sprintf("Registered dataset #%s `%s` in `%s`", d.ID, d.Name, msg.tx.Hex()))
		return m, nil

	case railsLoadedMsg:
		if msg.err != nil {
			m.addLog("error", "Failed to read rail history: "+msg.err.Error())
			return m, nil
		}
		m.rails, m.history = msg.rails, msg.history
		if m.selectedRail >= len(m.rails) {
			m.selectedRail = max(0, len(m.rails)-1)
		}
		return m, nil

	case payBalanceMsg:
		m.payBalance = msg.bal
		m.payErr = ""
		if msg.err != nil {
			m.payErr = "Failed to load Filecoin Pay balance."
			m.addLog("error", msg.err.Error())
		}
		return m, nil

	case railInfoMsg:
		m.reading = false
		if msg.err != nil {
			m.railInfo = nil
			m.addLog("error", "Rail info failed: "+msg.err.Error())
			m.toast(wallet.NoticeError, "Could not read rail "+helpers.ShortenAddr(msg.rail.Hex()))
			return m, nil
		}
		m.railInfo = msg.info
		return m, nil

	case railTxMsg:
		m.txPending = ""
		if msg.err != nil {
			m.txFailed("Rail "+msg.op, msg.err)
			return m, nil
		}
		m.lastTx = msg.tx
		m.lastPayment = nil
		switch msg.op {
		case "create":
			m.toast(wallet.NoticeSuccess, "Rail created "+helpers.ShortenAddr(msg.rail.Hex()))
		case "settle":
			m.toast(wallet.NoticeSuccess, "Rail settled")
		case "terminate":
			m.railInfo = nil
			m.toast(wallet.NoticeSuccess, "Rail terminated")
		case "account":
			m.toast(wallet.NoticeSuccess, "Filecoin Pay account ready")
		}
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, loadRails(m.ctx, m.store))
		}
		cmds = append(cmds, m.loadPayments())
		return m, tea.Batch(cmds...)

	case clipboardCopiedMsg:
		m.copiedMsg = "Copied!"
		return m, clearClipboardMsg()

	case clearCopiedMsg:
		m.copiedMsg = ""
		return m, nil
	}

	if m.activePage == config.PageHome {
		return m.updateHome(msg)
	}

	if m.textInputActive() {
		return m.updateForm(msg)
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(keyMsg)
	}
	return m, nil
}

// updateHome drives the home menu form
func (m *model) updateHome(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "l", "L":
			return m, m.toggleLogger()
		}
	}
	if m.homeForm == nil {
		m.homeForm = home.CreateForm()
	}

	form, cmd := m.homeForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.homeForm = f
		if m.homeForm.State == huh.StateCompleted {
			switch home.TempSelection {
			case "wallet":
				return m, m.navigate(config.PageWallet)
			case "browse":
				return m, m.navigate(config.PageBrowse)
			case "rails":
				return m, m.navigate(config.PageRails)
			case "settings":
				return m, m.navigate(config.PageSettings)
			}
			m.homeForm = home.CreateForm()
			return m, nil
		}
	}
	return m, cmd
}

// toggleLogger shows or hides the log panel
func (m *model) toggleLogger() tea.Cmd {
	m.logEnabled = !m.logEnabled
	m.cfg.Logger = m.logEnabled
	m.saveConfig()
	if m.logEnabled {
		if m.w > 0 {
			m.logViewport.Width = m.w - 6
		}
		m.logReady = false
		return tea.Batch(initLogViewport(), m.logSpinner.Tick)
	}
	// Clear logs and de-initialize when disabling
	m.logBuffer.Reset()
	m.logReady = false
	return nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showRPCDeleteDialog {
		return m.handleDeleteDialog(msg)
	}

	// global keys
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "l", "L":
		return m, m.toggleLogger()
	case "pageup", "pagedown":
		if m.logEnabled && m.logReady {
			var cmd tea.Cmd
			m.logViewport, cmd = m.logViewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case "esc", "h":
		return m, m.navigate(config.PageHome)
	case "w":
		return m, m.navigate(config.PageWallet)
	case "b":
		return m, m.navigate(config.PageBrowse)
	case "p":
		return m, m.navigate(config.PageRails)
	case "s":
		return m, m.navigate(config.PageSettings)
	}

	// page-specific behavior
	switch m.activePage {
	case config.PageWallet:
		return m.handleWalletKey(msg)
	case config.PageBrowse:
		return m.handleBrowseKey(msg)
	case config.PageRails:
		return m.handleRailsKey(msg)
	case config.PageSettings:
		return m.handleSettingsKey(msg)
	}
	return m, nil
}

func (m *model) handleWalletKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "c", "C":
		if m.busy != "" || m.snap.Connected() {
			return m, nil
		}
		m.busy = "connecting"
		m.addLog("info", "Requesting wallet connection")
		return m, connectWallet(m.ctx, m.session)

	case "x", "X":
		m.session.Disconnect()
		m.showQR = false
		return m, nil

	case "n", "N":
		if m.busy != "" {
			return m, nil
		}
		m.busy = "switching network"
		m.addLog("info", fmt.Sprintf("Switching wallet to %s", m.cfg.Network.Name))
		return m, switchNetwork(m.ctx, m.session)

	case "y", "Y":
		if !m.snap.HasAccount() {
			return m, nil
		}
		m.addLog("info", fmt.Sprintf("Copied address `%s`", m.snap.Account.Hex()))
		return m, copyToClipboard(m.snap.Account.Hex())

	case "f", "F":
		if m.snap.HasAccount() {
			m.showQR = !m.showQR
		}
		return m, nil

	case "r", "R":
		if !m.snap.Connected() {
			return m, nil
		}
		return m, tea.Batch(refreshBalance(m.ctx, m.session), m.loadAccountDetails())
	}
	return m, nil
}

// upsertDataset replaces the dataset with the same id or appends it, and
// selects it
func (m *model) upsertDataset(d registry.Dataset) {
	for i, existing := range m.datasets {
		if existing.ID != nil && d.ID != nil && existing.ID.Cmp(d.ID) == 0 {
			m.datasets[i] = d
			m.selectedDataset = i
			return
		}
	}
	m.datasets = append(m.datasets, d)
	m.selectedDataset = len(m.datasets) - 1
}

func (m *model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.datasets)
	switch msg.String() {
	case "left", "shift+tab":
		if m.selectedDataset > 0 {
			m.selectedDataset--
		}
	case "right", "tab":
		if m.selectedDataset < n-1 {
			m.selectedDataset++
		}
	case "up", "k":
		if m.selectedDataset >= 3 {
			m.selectedDataset -= 3
		}
	case "down", "j":
		if m.selectedDataset+3 < n {
			m.selectedDataset += 3
		}

	case "f", "F", "/":
		m.browseMode = "lookup"
		m.createLookupForm()

	case "a", "A":
		if !m.snap.Connected() {
			m.toast(wallet.NoticeWarn, "Connect your wallet first")
			return m, nil
		}
		m.browseMode = "register"
		m.createRegisterForm()

	case "y", "Y":
		if m.selectedDataset < n {
			return m, copyToClipboard(m.datasets[m.selectedDataset].CID)
		}

	case "enter":
		if m.selectedDataset >= n || m.txPending != "" {
			return m, nil
		}
		caps, ok := m.caps()
		if !ok {
			m.toast(wallet.NoticeWarn, "Connect your wallet first")
			return m, nil
		}
		d := m.datasets[m.selectedDataset]
		m.txPending = "purchasing " + d.Name
		m.addLog("info", fmt.Sprintf("Purchasing dataset #%s for %s", d.ID, registry.FormatPrice(d.Price)))
		return m, purchaseDataset(m.ctx, m.registry(), caps, d)
	}
	return m, nil
}

func (m *model) selectedRailID() (common.Hash, bool) {
	if m.selectedRail < 0 || m.selectedRail >= len(m.rails) {
		return common.Hash{}, false
	}
	return common.HexToHash(m.rails[m.selectedRail].ID), true
}

func (m *model) handleRailsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selectedRail > 0 {
			m.selectedRail--
			m.railInfo = nil
		}
		return m, nil
	case "down", "j":
		if m.selectedRail < len(m.rails)-1 {
			m.selectedRail++
			m.railInfo = nil
		}
		return m, nil
	case "r", "R":
		return m, m.navigate(config.PageRails)
	case "i", "I":
		rail, ok := m.selectedRailID()
		c := m.payments()
		if !ok || c == nil {
			return m, nil
		}
		m.reading = true
		return m, loadRailInfo(m.ctx, c, rail)
	}

	if m.txPending != "" {
		return m, nil
	}
	caps, connected := m.caps()

	switch msg.String() {
	case "a", "A":
		if !connected {
			m.toast(wallet.NoticeWarn, "Connect your wallet first")
			return m, nil
		}
		m.railsMode = "create"
		m.createRailForm()

	case "o", "O":
		if !connected {
			m.toast(wallet.NoticeWarn, "Connect your wallet first")
			return m, nil
		}
		m.txPending = "opening Filecoin Pay account"
		return m, ensurePayAccount(m.ctx, m.payments(), caps)

	case "enter":
		rail, ok := m.selectedRailID()
		if !ok {
			return m, nil
		}
		if !connected {
			m.toast(wallet.NoticeWarn, "Connect your wallet first")
			return m, nil
		}
		m.txPending = "settling " + helpers.ShortenAddr(rail.Hex())
		return m, settleRail(m.ctx, m.payments(), caps, rail)

	case "t", "T":
		rail, ok := m.selectedRailID()
		if !ok {
			return m, nil
		}
		if !connected {
			m.toast(wallet.NoticeWarn, "Connect your wallet first")
			return m, nil
		}
		m.txPending = "terminating " + helpers.ShortenAddr(rail.Hex())
		return m, terminateRail(m.ctx, m.payments(), caps, rail)
	}
	return m, nil
}

func (m *model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "a", "A":
		m.settingsMode = "add"
		m.createAddRPCForm()

	case "e", "E":
		if len(m.cfg.RPCURLs) > 0 {
			m.settingsMode = "edit"
			m.createEditRPCForm(m.selectedRPCIdx)
		}

	case "d", "D", "delete", "backspace":
		if m.selectedRPCIdx < len(m.cfg.RPCURLs) {
			m.showRPCDeleteDialog = true
			m.deleteRPCDialogYesSelected = true
			m.deleteRPCDialogIdx = m.selectedRPCIdx
			name := strings.TrimSpace(m.cfg.RPCURLs[m.selectedRPCIdx].Name)
			if name == "" {
				name = m.cfg.RPCURLs[m.selectedRPCIdx].URL
			}
			m.deleteRPCDialogName = name
		}

	case "up", "k":
		if m.selectedRPCIdx > 0 {
			m.selectedRPCIdx--
		}

	case "down", "j":
		if m.selectedRPCIdx < len(m.cfg.RPCURLs)-1 {
			m.selectedRPCIdx++
		}

	case "enter", " ":
		// Set as active and reconnect
		if m.selectedRPCIdx < len(m.cfg.RPCURLs) {
			for i := range m.cfg.RPCURLs {
				m.cfg.RPCURLs[i].Active = i == m.selectedRPCIdx
			}
			m.saveConfig()
			m.configErrs = m.cfg.Validate()
			return m, m.reconnectRPC(m.cfg.ActiveRPC())
		}
	}
	return m, nil
}

func (m *model) handleDeleteDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "right", "tab":
		m.deleteRPCDialogYesSelected = !m.deleteRPCDialogYesSelected
	case "enter":
		m.showRPCDeleteDialog = false
		idx := m.deleteRPCDialogIdx
		if !m.deleteRPCDialogYesSelected || idx < 0 || idx >= len(m.cfg.RPCURLs) {
			return m, nil
		}
		wasActive := m.cfg.RPCURLs[idx].Active
		m.cfg.RPCURLs = append(m.cfg.RPCURLs[:idx], m.cfg.RPCURLs[idx+1:]...)
		if m.selectedRPCIdx >= len(m.cfg.RPCURLs) && m.selectedRPCIdx > 0 {
			m.selectedRPCIdx--
		}
		m.saveConfig()
		m.addLog("warning", fmt.Sprintf("Deleted RPC endpoint `%s`", m.deleteRPCDialogName))
		if wasActive {
			// fall back to the network's own endpoint
			return m, m.reconnectRPC(m.cfg.ActiveRPC())
		}
	case "esc":
		m.showRPCDeleteDialog = false
	}
	return m, nil
}
