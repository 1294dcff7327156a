package styles

import "github.com/charmbracelet/lipgloss"

// Theme colors
var (
	bg       = lipgloss.Color("#0B0F14")
	CPanel   = lipgloss.Color("#0F1720")
	CBorder  = lipgloss.Color("#874BFD")
	CMuted   = lipgloss.Color("#8AA0B6")
	CText    = lipgloss.Color("#D6E2F0")
	CAccent  = lipgloss.Color("#7EE787") // success, verified
	CAccent2 = lipgloss.Color("#79C0FF") // links, info
	CWarn    = lipgloss.Color("#FFA657") // wrong network, pending
	CError   = lipgloss.Color("#FF5F56")
)

// Shared styles
var (
	AppStyle = lipgloss.NewStyle().
			Background(bg).
			Foreground(CText)

	TitleStyle = lipgloss.NewStyle().
			Foreground(CAccent2).
			Bold(true)

	PanelStyle = lipgloss.NewStyle().
			Background(CPanel).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(CBorder).
			Padding(1, 2)

	NavStyle = lipgloss.NewStyle().
			Background(CPanel).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(CBorder).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(CAccent).
			Bold(true)
)

// Key renders a hotkey in the nav bars
func Key(s string) string {
	return keyStyle.Render(s)
}
