package rails

import (
	"fmt"
	"math/big"
	"strings"

	"dataforge-hub/helpers"
	"dataforge-hub/payments"
	"dataforge-hub/store"
	"dataforge-hub/styles"
	"dataforge-hub/wallet"

	"github.com/charmbracelet/lipgloss"
)

// Props is everything the rails page shows
type Props struct {
	Rails       []store.Rail
	Selected    int
	History     []store.Settlement
	Balance     payments.AccountBalance
	BalanceErr  string
	Info        *payments.RailInfo
	Network     wallet.Network
	Status      string
	HistoryOnly bool // no local store
}

// Nav returns the navigation bar for the rails view
func Nav(width int, mode string) string {
	var left string
	if mode != "list" {
		left = strings.Join([]string{
			styles.Key("l") + " logger",
			styles.Key("Esc") + " cancel",
		}, "   ")
	} else {
		left = strings.Join([]string{
			styles.Key("↑/↓") + " move",
			styles.Key("a") + " new rail",
			styles.Key("Enter") + " settle",
			styles.Key("t") + " terminate",
			styles.Key("i") + " rail info",
			styles.Key("o") + " open account",
			styles.Key("r") + " refresh",
			styles.Key("l") + " logger",
			styles.Key("Esc") + " back",
		}, "   ")
	}

	return styles.NavStyle.Width(width).Render(left)
}

func muted(s string) string { return lipgloss.NewStyle().Foreground(styles.CMuted).Render(s) }

func usdfc(v *big.Int) string {
	return helpers.FormatAmount(v, payments.RateDecimals, "USDFC")
}

// RenderList renders the active rails
func RenderList(rails []store.Rail, selectedIdx int) string {
	if len(rails) == 0 {
		return muted("No active rails. Press 'a' to open one.")
	}

	var items []string
	for i, r := range rails {
		rate, _ := new(big.Int).SetString(r.MaxRate, 10)
		daily := payments.ExpectedPayment(rate, 24*60*60, payments.DefaultEpochLength)

		var marker, title, detail string
		if i == selectedIdx {
			marker = lipgloss.NewStyle().Foreground(styles.CAccent2).Bold(true).Render("▶ ")
			title = lipgloss.NewStyle().Foreground(styles.CAccent2).Bold(true).Render(helpers.ShortenAddr(r.ID))
		} else {
			marker = "  "
			title = helpers.FadeString(helpers.ShortenAddr(r.ID), "#F25D94", "#EDFF82")
		}
		detail = fmt.Sprintf("→ %s  %s USDFC/epoch  ≈ %s/day  lockup %ss",
			helpers.ShortenAddr(r.Payee), payments.FormatRate(rate), usdfc(daily), r.LockupPeriod)
		items = append(items, marker+title+"  "+muted(r.CreatedAt.Local().Format("2006-01-02 15:04"))+"\n  "+
			lipgloss.NewStyle().Foreground(styles.CText).Render(detail))
	}
	return strings.Join(items, "\n\n")
}

// RenderHistory renders recent settlements, newest first
func RenderHistory(history []store.Settlement, n wallet.Network) string {
	if len(history) == 0 {
		return muted("No settlements yet.")
	}
	var lines []string
	for _, s := range history {
		tx := helpers.Hyperlink(n.TxURL(s.TxHash), helpers.ShortenAddr(s.TxHash))
		lines = append(lines, fmt.Sprintf("%s  rail %s  tx %s",
			muted(s.SettledAt.Local().Format("01-02 15:04:05")), helpers.ShortenAddr(s.RailID), tx))
	}
	return strings.Join(lines, "\n")
}

func renderInfo(info *payments.RailInfo) string {
	if info == nil {
		return ""
	}
	validator := "none"
	if info.Validator.Big().Sign() != 0 {
		validator = helpers.ShortenAddr(info.Validator.Hex())
	}
	return fmt.Sprintf("payer %s  payee %s  rate %s  lockup %s  validator %s  last settled epoch %s",
		helpers.ShortenAddr(info.Payer.Hex()), helpers.ShortenAddr(info.Payee.Hex()),
		payments.FormatRate(info.MaxRate), info.LockupPeriod, validator, info.LastSettlementEpoch)
}

// Render renders the full rails view
func Render(p Props) string {
	header := styles.TitleStyle.Render("Payment Rails")
	subtitle := muted("Streaming USDFC payments through Filecoin Pay")

	bal := fmt.Sprintf("%s %s   %s %s   %s %s",
		muted("available"), usdfc(p.Balance.Available),
		muted("locked"), usdfc(p.Balance.Locked),
		muted("obligations"), usdfc(p.Balance.Obligations))
	if p.BalanceErr != "" {
		bal += "\n" + lipgloss.NewStyle().Foreground(styles.CWarn).Render("⚠ "+p.BalanceErr)
	}

	parts := []string{header, subtitle, "", bal, ""}
	if p.HistoryOnly {
		parts = append(parts, lipgloss.NewStyle().Foreground(styles.CWarn).Render("⚠ local history unavailable, rails are not remembered"), "")
	}
	parts = append(parts, RenderList(p.Rails, p.Selected))
	if info := renderInfo(p.Info); info != "" {
		parts = append(parts, "", lipgloss.NewStyle().Foreground(styles.CAccent2).Render(info))
	}
	parts = append(parts, "", styles.TitleStyle.Render("Recent settlements"), RenderHistory(p.History, p.Network))
	if p.Status != "" {
		parts = append(parts, "", p.Status)
	}
	parts = append(parts, "", muted(fmt.Sprintf("%d active rails", len(p.Rails))))
	return strings.Join(parts, "\n")
}
