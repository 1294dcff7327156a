package browse

import (
	"fmt"
	"strings"

	"dataforge-hub/helpers"
	"dataforge-hub/registry"
	"dataforge-hub/styles"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
)

// Nav returns the navigation bar for the dataset browser
func Nav(width int, mode string) string {
	var left string
	if mode != "list" {
		left = strings.Join([]string{
			styles.Key("l") + " logger",
			styles.Key("Esc") + " cancel",
		}, "   ")
	} else {
		left = strings.Join([]string{
			styles.Key("←/→") + " select",
			styles.Key("Enter") + " purchase",
			styles.Key("f") + " find by id",
			styles.Key("a") + " register",
			styles.Key("y") + " copy CID",
			styles.Key("l") + " logger",
			styles.Key("Esc") + " back",
		}, "   ")
	}

	return styles.NavStyle.Width(width).Render(left)
}

// cardStyle returns the style for a dataset card
func cardStyle(focused bool) lipgloss.Style {
	s := lipgloss.NewStyle().
		Width(30).
		Height(8).
		Align(lipgloss.Center, lipgloss.Center).
		Background(styles.CPanel).
		Padding(1, 2)
	if focused {
		return s.BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("69"))
	}
	return s.BorderStyle(lipgloss.HiddenBorder())
}

// renderCard renders a single dataset card
func renderCard(d registry.Dataset, focused bool) string {
	badge := lipgloss.NewStyle().Foreground(styles.CWarn).Render("○ unverified")
	if d.Verified {
		badge = lipgloss.NewStyle().Foreground(styles.CAccent).Render("✓ PDP verified")
	}

	id := "#?"
	if d.ID != nil {
		id = "#" + d.ID.String()
	}

	name := lipgloss.NewStyle().
		Foreground(styles.CText).
		Bold(true).
		Render(d.Name)

	content := lipgloss.NewStyle().Foreground(styles.CMuted).Render(id) + "\n" +
		name + "\n" +
		lipgloss.NewStyle().Foreground(styles.CAccent2).Render(registry.FormatPrice(d.Price)) + "\n" +
		helpers.FadeString(helpers.ShortenAddr(d.CID), "#F25D94", "#EDFF82") + "\n" +
		badge
	if d.Owner != (common.Address{}) {
		content += "\n" + lipgloss.NewStyle().Foreground(styles.CMuted).Render("owner "+helpers.ShortenAddr(d.Owner.Hex()))
	}

	return cardStyle(focused).Render(content)
}

// Render renders the dataset grid and the selected dataset's description
func Render(datasets []registry.Dataset, selectedIdx int, status string) string {
	h := styles.TitleStyle.Render("Datasets")

	if len(datasets) == 0 {
		return h + "\n\n" + lipgloss.NewStyle().Foreground(styles.CMuted).Render("No datasets.")
	}

	const columnsPerRow = 3
	const horizontalSpacing = "  "
	var rows []string

	for i := 0; i < len(datasets); i += columnsPerRow {
		var rowCards []string
		for j := 0; j < columnsPerRow && i+j < len(datasets); j++ {
			rowCards = append(rowCards, renderCard(datasets[i+j], i+j == selectedIdx))
			if j < columnsPerRow-1 && i+j+1 < len(datasets) {
				rowCards = append(rowCards, horizontalSpacing)
			}
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, rowCards...))
	}

	out := h + "\n\n" + strings.Join(rows, "\n")

	if selectedIdx >= 0 && selectedIdx < len(datasets) {
		d := datasets[selectedIdx]
		out += "\n\n" + lipgloss.NewStyle().Foreground(styles.CText).Render(d.Description)
		out += "\n" + lipgloss.NewStyle().Foreground(styles.CMuted).Render(fmt.Sprintf("CID %s", d.CID))
	}
	if status != "" {
		out += "\n\n" + status
	}
	return out
}
