package settings

import (
	"fmt"
	"strings"

	"dataforge-hub/config"
	"dataforge-hub/helpers"
	"dataforge-hub/styles"

	"github.com/charmbracelet/lipgloss"
)

// Nav returns the navigation bar for settings view
func Nav(width int, settingsMode string) string {
	var left string
	if settingsMode == "add" || settingsMode == "edit" {
		left = strings.Join([]string{
			styles.Key("l") + " debug log",
			styles.Key("Esc") + " cancel",
		}, "   ")
	} else {
		left = strings.Join([]string{
			styles.Key("↑/↓") + " select",
			styles.Key("Enter") + " activate",
			styles.Key("a") + " add",
			styles.Key("e") + " edit",
			styles.Key("d") + " delete",
			styles.Key("h") + " home",
			styles.Key("l") + " debug log",
			styles.Key("Esc") + " back",
		}, "   ")
	}

	return styles.NavStyle.Width(width).Render(left)
}

func muted(s string) string { return lipgloss.NewStyle().Foreground(styles.CMuted).Render(s) }

func row(label, value string) string {
	return fmt.Sprintf("%s %s", muted(fmt.Sprintf("%-14s", label)), lipgloss.NewStyle().Foreground(styles.CText).Render(value))
}

// RenderSummary renders the network, wallet and contract configuration
func RenderSummary(cfg config.Config, errs []error) string {
	n := cfg.Network
	lines := []string{
		styles.TitleStyle.Render("Network"),
		row("network", fmt.Sprintf("%s (%d, %s)", n.Name, n.ChainID, n.HexChainID())),
		row("currency", fmt.Sprintf("%s, %d decimals", n.Symbol, n.Decimals)),
		row("explorer", helpers.Hyperlink(n.ExplorerURL, n.ExplorerURL)),
		row("wallet", cfg.WalletURL),
		row("registry", cfg.RegistryAddress),
		row("USDFC", cfg.USDFCAddress),
		row("Filecoin Pay", cfg.FilPayAddress),
		row("warm storage", cfg.WarmStorageAddress),
	}
	if cfg.ValidatorAddress != "" {
		lines = append(lines, row("validator", cfg.ValidatorAddress))
	}
	if len(errs) > 0 {
		lines = append(lines, "")
		warn := lipgloss.NewStyle().Foreground(styles.CWarn)
		for _, e := range errs {
			lines = append(lines, warn.Render("⚠ "+e.Error()))
		}
	}
	return strings.Join(lines, "\n")
}

// Render renders the settings view
func Render(cfg config.Config, errs []error, selectedIdx int) string {
	h := styles.TitleStyle.Render("RPC Endpoints")

	lines := []string{RenderSummary(cfg, errs), "", h, ""}

	if len(cfg.RPCURLs) == 0 {
		lines = append(lines, muted("No RPC URLs configured, using "+cfg.Network.RPCURL+"."))
		lines = append(lines, "")
		lines = append(lines, muted("Press ")+styles.Key("a")+muted(" to add an RPC URL."))
		return strings.Join(lines, "\n")
	}

	for i, rpc := range cfg.RPCURLs {
		var marker string
		if rpc.Active {
			marker = lipgloss.NewStyle().Foreground(styles.CAccent).Render("● ")
		} else {
			marker = muted("○ ")
		}

		nameStyle := lipgloss.NewStyle().Foreground(styles.CText)
		urlStyle := lipgloss.NewStyle().Foreground(styles.CMuted)

		if i == selectedIdx {
			nameStyle = nameStyle.Background(styles.CPanel).Foreground(styles.CAccent2).Bold(true)
			urlStyle = urlStyle.Background(styles.CPanel)
			marker = lipgloss.NewStyle().Foreground(styles.CAccent2).Render("▶ ")
		}

		lines = append(lines, marker+nameStyle.Render(rpc.Name))
		lines = append(lines, "  "+urlStyle.Render(rpc.URL))
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}
