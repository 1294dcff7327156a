package main

import (
	"fmt"
	"strings"
	"time"

	"dataforge-hub/config"
	"dataforge-hub/helpers"
	"dataforge-hub/styles"
	"dataforge-hub/views/account"
	"dataforge-hub/views/browse"
	"dataforge-hub/views/home"
	logview "dataforge-hub/views/log"
	"dataforge-hub/views/rails"
	"dataforge-hub/views/settings"
	"dataforge-hub/wallet"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
)

// -------------------- VIEW --------------------

func (m *model) renderRPCDeleteDialog() string {
	var (
		dialogBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#874BFD")).
				Padding(1, 0)

		buttonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFF7DB")).
				Background(lipgloss.Color("#888B7E")).
				Padding(0, 3).
				MarginTop(1)

		activeButtonStyle = buttonStyle.
					Foreground(lipgloss.Color("#FFF7DB")).
					Background(lipgloss.Color("#F25D94")).
					MarginRight(2).
					Underline(true)
	)
	msg := helpers.FadeString("Delete the RPC endpoint "+m.deleteRPCDialogName+"?", "#F25D94", "#EDFF82")
	question := lipgloss.NewStyle().Width(50).Align(lipgloss.Center).Render(msg)

	var okButton, cancelButton string
	if m.deleteRPCDialogYesSelected {
		okButton = activeButtonStyle.Render("Yes")
		cancelButton = buttonStyle.Render("No")
	} else {
		okButton = buttonStyle.MarginRight(2).Render("Yes")
		cancelButton = activeButtonStyle.MarginRight(0).Render("No")
	}

	buttons := lipgloss.JoinHorizontal(lipgloss.Top, okButton, cancelButton)
	ui := lipgloss.JoinVertical(lipgloss.Center, question, buttons)

	return lipgloss.Place(
		m.w, m.h,
		lipgloss.Center, lipgloss.Center,
		dialogBoxStyle.Render(ui),
	)
}

// walletStatus is the header's right column: session state and RPC health
func (m *model) walletStatus() string {
	var icon, text string
	color := cError
	switch m.snap.State {
	case wallet.StateConnected:
		icon, text, color = "●", "Connected", cAccent
		if m.snap.ChainID != m.cfg.Network.ChainID {
			icon, text, color = "●", "Wrong network", cWarn
		}
	case wallet.StateConnecting:
		icon, text, color = "○", "Connecting...", cWarn
	default:
		icon, text = "○", "Disconnected"
	}

	rpcText := "No RPC"
	rpcColor := cError
	switch {
	case m.rpcConnecting:
		rpcText = "RPC…"
	case m.rpcConnected:
		rpcText, rpcColor = "RPC", cAccent
	case m.rpcURL != "":
		rpcText = "RPC failed"
	}

	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(icon+" "+text) + "  " +
		lipgloss.NewStyle().Foreground(rpcColor).Render(rpcText)
}

func (m *model) globalHeader() string {
	availableWidth := max(0, m.w-8) // Account for panel padding

	var addrDisplay string
	if m.snap.HasAccount() {
		addrDisplay = lipgloss.NewStyle().
			Foreground(cAccent2).
			Bold(true).
			Render("Account: " + helpers.FadeString(helpers.ShortenAddr(m.snap.Account.Hex()), "#F25D94", "#EDFF82") +
				"  " + m.snap.Balance + " " + m.cfg.Network.Symbol)
	} else {
		addrDisplay = lipgloss.NewStyle().
			Foreground(cMuted).
			Render("Account: not connected")
	}

	statusDisplay := m.walletStatus()

	titleText := lipgloss.NewStyle().
		Foreground(cAccent).
		Bold(true).
		Render(helpers.FadeString("dataforge hub", "#7EE787", "#82CFFD"))

	addrWidth := lipgloss.Width(addrDisplay)
	statusWidth := lipgloss.Width(statusDisplay)
	titleWidth := lipgloss.Width(titleText)
	totalOtherWidth := addrWidth + statusWidth + titleWidth

	var headerLine string
	if totalOtherWidth+4 > availableWidth {
		// Not enough space, stack vertically
		headerLine = addrDisplay + "\n" + titleText + "\n" + statusDisplay
	} else {
		remainingSpace := availableWidth - totalOtherWidth
		leftPadding := remainingSpace / 2
		rightPadding := remainingSpace - leftPadding

		headerLine = addrDisplay + strings.Repeat(" ", max(1, leftPadding)) +
			titleText + strings.Repeat(" ", max(1, rightPadding)) + statusDisplay
	}

	separator := lipgloss.NewStyle().
		Foreground(cBorder).
		Render(strings.Repeat("─", availableWidth))

	out := headerLine + "\n" + separator
	if n := m.currentNotice(); n != nil {
		out += "\n" + renderNotice(n)
	}
	return out
}

// currentNotice returns the latest session notice while it is fresh
func (m *model) currentNotice() *wallet.Notice {
	if m.notice == nil || time.Since(m.noticeAt) > noticeTTL {
		return nil
	}
	return m.notice
}

func renderNotice(n *wallet.Notice) string {
	var st lipgloss.Style
	icon := "ℹ"
	switch n.Level {
	case wallet.NoticeSuccess:
		st, icon = lipgloss.NewStyle().Foreground(cAccent), "✓"
	case wallet.NoticeWarn:
		st, icon = lipgloss.NewStyle().Foreground(cWarn), "⚠"
	case wallet.NoticeError:
		st, icon = lipgloss.NewStyle().Foreground(cError), "✗"
	default:
		st = lipgloss.NewStyle().Foreground(cAccent2)
	}
	return st.Render(icon + " " + n.Message)
}

// txStatus renders the contract transaction in flight or the last result
func (m *model) txStatus() string {
	if m.txPending != "" {
		return m.spin.View() + " " + lipgloss.NewStyle().Foreground(cMuted).Render(m.txPending+"… confirm in your wallet")
	}
	if m.reading {
		return m.spin.View() + " " + lipgloss.NewStyle().Foreground(cMuted).Render("reading chain…")
	}
	if m.lastTx == (common.Hash{}) {
		return ""
	}
	link := helpers.Hyperlink(m.cfg.Network.TxURL(m.lastTx.Hex()), helpers.ShortenAddr(m.lastTx.Hex()))
	s := lipgloss.NewStyle().Foreground(cAccent).Render("✓ last transaction ") + link
	if m.lastPayment != nil {
		s += lipgloss.NewStyle().Foreground(cMuted).Render(fmt.Sprintf("  paid %s for dataset #%s",
			helpers.FormatAmount(m.lastPayment.Amount, 18, "USDFC"), m.lastPayment.TokenID))
	}
	return s
}

func (m *model) View() string {
	headerPanel := panelStyle.Width(max(0, m.w-2)).Render(m.globalHeader())

	var pageContent string
	var nav string

	switch m.activePage {
	case config.PageHome:
		pageContent = panelStyle.Width(max(0, m.w-2)).Render(home.Render(m.homeForm))
		nav = home.Nav(m.w - 2)

	case config.PageWallet:
		qr := ""
		if m.showQR && m.snap.HasAccount() {
			qr = generateQR(m.snap.Account.Hex())
		}
		content := account.Render(account.Props{
			Snapshot:    m.snap,
			Network:     m.cfg.Network,
			Provider:    m.providerLabel(),
			Details:     m.details,
			Loading:     m.loading,
			Busy:        m.busy,
			CopiedMsg:   m.copiedMsg,
			SpinnerView: m.spin.View(),
			QR:          qr,
		})
		pageContent = panelStyle.Width(max(0, m.w-2)).Render(content)
		nav = account.Nav(m.w-2, m.snap)

	case config.PageBrowse:
		content := browse.Render(m.datasets, m.selectedDataset, m.txStatus())
		if m.browseMode != "list" && m.form != nil {
			title := "Find Dataset"
			if m.browseMode == "register" {
				title = "Register Dataset"
			}
			content = styles.TitleStyle.Render(title) + "\n\n" + m.form.View()
		}
		pageContent = panelStyle.Width(max(0, m.w-2)).Render(content)
		nav = browse.Nav(m.w-2, m.browseMode)

	case config.PageRails:
		content := rails.Render(rails.Props{
			Rails:       m.rails,
			Selected:    m.selectedRail,
			History:     m.history,
			Balance:     m.payBalance,
			BalanceErr:  m.payErr,
			Info:        m.railInfo,
			Network:     m.cfg.Network,
			Status:      m.txStatus(),
			HistoryOnly: m.store == nil,
		})
		if m.railsMode != "list" && m.form != nil {
			content = styles.TitleStyle.Render("New Payment Rail") + "\n\n" + m.form.View()
		}
		pageContent = panelStyle.Width(max(0, m.w-2)).Render(content)
		nav = rails.Nav(m.w-2, m.railsMode)

	case config.PageSettings:
		content := settings.Render(m.cfg, m.configErrs, m.selectedRPCIdx)
		if (m.settingsMode == "add" || m.settingsMode == "edit") && m.form != nil {
			content = styles.TitleStyle.Render("RPC Settings") + "\n\n" + m.form.View()
		}
		pageContent = panelStyle.Width(max(0, m.w-2)).Render(content)
		nav = settings.Nav(m.w-2, m.settingsMode)

		if m.showRPCDeleteDialog {
			return m.renderRPCDeleteDialog()
		}
	}

	sections := []string{headerPanel, pageContent, nav}
	if m.logEnabled {
		m.logViewport.Height = logview.Height(m.h)
		sections = append(sections, logview.Render(m.w, m.h, m.logReady, m.logSpinner.View(), m.logViewport))
	}
	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// providerLabel names where the wallet is reached
func (m *model) providerLabel() string {
	if m.sim != nil {
		return "simulated wallet"
	}
	return m.cfg.WalletURL
}
