package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"storefront/internal/domain"
	"storefront/internal/layout"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
)

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+styleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+styleDim.Render(fmt.Sprintf(format, args...)))
}

func printKeyValue(w io.Writer, key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Fprintln(w, keyStyle.Render(key)+" "+styleValue.Render(value))
}

// =============================================================================
// Tables
// =============================================================================

func newTable(headers ...string) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cell
		})
}

// renderBlocks draws one row per block in display order.
func renderBlocks(blocks []domain.Block) string {
	t := newTable("#", "Position ID", "Type", "Height", "Spacing", "Align", "Width", "Summary")
	for _, s := range layout.Summarize(blocks) {
		e := s.Block
		height := "auto"
		if e.Height != nil {
			height = strconv.Itoa(*e.Height)
		}
		kind := e.LayoutType
		if s.Placeholder {
			kind += " (unknown)"
		}
		t.Row(strconv.Itoa(e.Position), s.PositionID, kind, height,
			dash(e.Spacing), dash(e.TextAlignment), dash(e.BlockWidth), summaryOf(e))
	}
	return t.Render()
}

func renderPages(pages []domain.Page) string {
	t := newTable("ID", "Name", "Blocks", "Updated")
	for _, p := range pages {
		n := len(layout.ParseJSON(p.Layout))
		t.Row(p.ID, p.Name, strconv.Itoa(n), p.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return t.Render()
}

func renderRevisions(revs []domain.Revision) string {
	t := newTable("ID", "Label", "Blocks", "Created")
	for _, r := range revs {
		t.Row(r.ID, r.Label, strconv.Itoa(len(layout.ParseJSON(r.Layout))), r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return t.Render()
}

func renderProducts(products []domain.Product) string {
	t := newTable("ID", "Name", "Price", "Available")
	for _, p := range products {
		avail := "yes"
		if !p.Available {
			avail = "no"
		}
		t.Row(p.ID, p.Name, strconv.FormatFloat(p.Price, 'f', 2, 64), avail)
	}
	return t.Render()
}

// summaryOf picks the field that best identifies a block at a glance.
func summaryOf(e domain.LayoutEntry) string {
	var s string
	switch {
	case e.Title != "":
		s = e.Title
	case e.Content != "":
		s = e.Content
	case e.ProductID != "":
		s = "product " + e.ProductID
	case len(e.ProductIDs) > 0:
		s = strings.Join(e.ProductIDs, ", ")
	}
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 32 {
		s = string(r[:31]) + "…"
	}
	return dash(s)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
