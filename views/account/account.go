package account

import (
	"fmt"
	"strings"

	"dataforge-hub/helpers"
	"dataforge-hub/rpc"
	"dataforge-hub/styles"
	"dataforge-hub/wallet"

	"github.com/charmbracelet/lipgloss"
)

// Props is everything the wallet page shows
type Props struct {
	Snapshot    wallet.Snapshot
	Network     wallet.Network
	Provider    string // where the wallet is reached
	Details     rpc.AccountDetails
	Loading     bool
	Busy        string
	CopiedMsg   string
	SpinnerView string
	QR          string // rendered when non-empty
}

// Nav returns the navigation bar for the wallet view
func Nav(width int, snap wallet.Snapshot) string {
	var keys []string
	if snap.HasAccount() {
		keys = append(keys,
			styles.Key("y")+" copy address",
			styles.Key("f")+" fund (QR)",
			styles.Key("r")+" refresh",
			styles.Key("n")+" switch network",
			styles.Key("x")+" disconnect",
		)
	} else {
		keys = append(keys,
			styles.Key("c")+" connect",
			styles.Key("n")+" switch network",
		)
	}
	keys = append(keys,
		styles.Key("b")+" datasets",
		styles.Key("p")+" rails",
		styles.Key("l")+" logger",
		styles.Key("Esc")+" back",
	)
	return styles.NavStyle.Width(width).Render(strings.Join(keys, "   "))
}

func muted(s string) string { return lipgloss.NewStyle().Foreground(styles.CMuted).Render(s) }

func stateLine(snap wallet.Snapshot, busy, spinnerView string) string {
	var st lipgloss.Style
	switch snap.State {
	case wallet.StateConnected:
		st = lipgloss.NewStyle().Foreground(styles.CAccent).Bold(true)
	case wallet.StateConnecting:
		st = lipgloss.NewStyle().Foreground(styles.CWarn).Bold(true)
	default:
		st = lipgloss.NewStyle().Foreground(styles.CMuted).Bold(true)
	}
	line := st.Render(snap.State.String())
	if busy != "" {
		line += "  " + spinnerView + " " + muted(busy+"…")
	}
	return line
}

func chainLine(snap wallet.Snapshot, n wallet.Network) string {
	if snap.ChainID == 0 {
		return muted("network unknown")
	}
	if snap.ChainID != n.ChainID {
		return lipgloss.NewStyle().Foreground(styles.CWarn).Render(
			fmt.Sprintf("⚠ wallet is on chain %d, expected %s (%d). Press ", snap.ChainID, n.Name, n.ChainID)) +
			styles.Key("n") + lipgloss.NewStyle().Foreground(styles.CWarn).Render(" to switch.")
	}
	return lipgloss.NewStyle().Foreground(styles.CAccent2).Render(fmt.Sprintf("%s (%d)", n.Name, n.ChainID))
}

// Render renders the wallet view
func Render(p Props) string {
	h := styles.TitleStyle.Render("Wallet")
	snap := p.Snapshot

	lines := []string{h, stateLine(snap, p.Busy, p.SpinnerView), chainLine(snap, p.Network)}

	if !snap.HasAccount() {
		lines = append(lines,
			"",
			muted("No wallet connected."),
			muted("Provider: ")+lipgloss.NewStyle().Foreground(styles.CText).Render(p.Provider),
			"",
			muted("Press ")+styles.Key("c")+muted(" to connect and approve the request in your wallet."),
		)
		return strings.Join(lines, "\n")
	}

	// Address links to the block explorer
	addr := snap.Account.Hex()
	addrStyle := lipgloss.NewStyle().Foreground(styles.CMuted).Underline(true)
	sub := helpers.Hyperlink(p.Network.AddressURL(addr), addrStyle.Render(addr))
	if p.CopiedMsg != "" {
		sub += "  " + lipgloss.NewStyle().Foreground(styles.CAccent).Render(p.CopiedMsg)
	}
	lines = append(lines, sub, "")

	balance := lipgloss.NewStyle().Foreground(styles.CText).Render(snap.Balance + " " + p.Network.Symbol)
	if snap.BalanceStale {
		balance += "  " + lipgloss.NewStyle().Foreground(styles.CWarn).Render("(stale)")
	}
	lines = append(lines, fmt.Sprintf("%s  %s",
		lipgloss.NewStyle().Foreground(styles.CAccent2).Bold(true).Render(p.Network.Symbol),
		balance,
	))

	switch {
	case p.Loading:
		lines = append(lines, "", p.SpinnerView+" fetching balances…")
	case p.Details.ErrMessage != "":
		lines = append(lines, "", lipgloss.NewStyle().Foreground(styles.CWarn).Render("⚠ "+p.Details.ErrMessage))
	}
	for _, t := range p.Details.Tokens {
		lines = append(lines, fmt.Sprintf("%-6s  %s",
			lipgloss.NewStyle().Foreground(styles.CAccent).Render(t.Symbol),
			lipgloss.NewStyle().Foreground(styles.CText).Render(helpers.FormatToken(t.Balance, t.Decimals, t.Symbol)),
		))
	}
	if !p.Loading {
		lines = append(lines, muted("updated "+helpers.LoadedAt(p.Details.LoadedAt, false)))
	}

	if p.QR != "" {
		lines = append(lines, "", muted("Send "+p.Network.Symbol+" or USDFC to this address:"), p.QR)
	}
	return strings.Join(lines, "\n")
}
