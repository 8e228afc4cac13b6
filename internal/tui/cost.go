package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/po-stats/internal/events"
)

// ---------------------------------------------------------------------------
// Multi-size block-character digit fonts for the cost odometer.
//
// Three sizes are available; renderCostDisplay picks the largest one that
// fits the available content height.
//
//   - Large  (5 rows, 6-wide) — full block segments, easy to read at a glance
//   - Medium (3 rows, 4-wide) — compact flip-clock style
//   - Small  — plain styled text, used when the panel is very short
// ---------------------------------------------------------------------------

// digitFontLarge: 6-wide x 5-tall block segments.
var digitFontLarge = map[rune][5]string{
	'0': {"█▀▀▀▀█", "█    █", "█    █", "█    █", "█▄▄▄▄█"},
	'1': {"    ▀█", "     █", "     █", "     █", "    ▄█"},
	'2': {" ▀▀▀▀█", "     █", "█▀▀▀▀ ", "█     ", "█▄▄▄▄▄"},
	'3': {"▀▀▀▀▀█", "     █", " ▀▀▀▀█", "     █", "▄▄▄▄▄█"},
	'4': {"█    █", "█    █", "▀▀▀▀▀█", "     █", "     █"},
	'5': {"█▀▀▀▀▀", "█     ", "▀▀▀▀▀█", "     █", "▄▄▄▄▄█"},
	'6': {"█▀▀▀▀▀", "█     ", "█▀▀▀▀█", "█    █", "█▄▄▄▄█"},
	'7': {"▀▀▀▀▀█", "     █", "     █", "     █", "     █"},
	'8': {"█▀▀▀▀█", "█    █", "█▀▀▀▀█", "█    █", "█▄▄▄▄█"},
	'9': {"█▀▀▀▀█", "█    █", "▀▀▀▀▀█", "     █", "▄▄▄▄▄█"},
	'.': {"      ", "      ", "      ", "      ", "  █   "},
	',': {"      ", "      ", "      ", "      ", "  █   "},
}

// digitFontMedium: 4-wide x 3-tall half-block flip-clock style.
var digitFontMedium = map[rune][3]string{
	'0': {"█▀▀█", "█  █", "█▄▄█"},
	'1': {"  ▀█", "   █", "  ▄█"},
	'2': {"▀▀▀█", "█▀▀▀", "█▄▄▄"},
	'3': {"▀▀▀█", " ▀▀█", "▄▄▄█"},
	'4': {"█  █", "▀▀▀█", "   █"},
	'5': {"█▀▀▀", "▀▀▀█", "▄▄▄█"},
	'6': {"█▀▀▀", "█▀▀█", "█▄▄█"},
	'7': {"▀▀▀█", "   █", "   █"},
	'8': {"█▀▀█", "█▀▀█", "█▄▄█"},
	'9': {"█▀▀█", "▀▀▀█", "▄▄▄█"},
	'.': {"   ", "   ", " ▄ "},
	',': {"   ", "   ", " ▄ "},
}

// renderCostPanel renders the all-time cost odometer with the session
// spend and token usage underneath.
func (m Model) renderCostPanel(w, h int) string {
	cum := m.snap.Cumulative
	sess := m.snap.Session

	contentH := h - 2
	if contentH < 1 {
		contentH = 1
	}
	contentW := w - 4
	if contentW < 10 {
		contentW = 10
	}

	var lines []string
	lines = append(lines, panelTitleStyle.Render("All-time Cost"))

	// Rows besides the odometer: the title and three summary lines.
	extraLines := 4
	costStr := fmt.Sprintf("%.2f", cum.Cost)
	lines = append(lines, renderCostDisplay(costStr, contentH-extraLines, contentW, m.costStyle(cum.Cost)))

	lines = append(lines, m.costStyle(sess.Cost).Render("Session "+events.FormatCost(sess.Cost)))
	lines = append(lines, dimStyle.Render(fmt.Sprintf("%s tokens all-time, %s this session",
		events.FormatTokenCount(cum.Tokens.Total), events.FormatTokenCount(sess.Tokens.Total))))
	lines = append(lines, dimStyle.Render(fmt.Sprintf("%s API calls saved", formatNumber(cum.APICallsSaved()))))

	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

// renderCostDisplay renders a cost string at the largest font size that fits
// within the given height and width budget. Sizes tried (largest first):
//
//	5-row large  (needs availH >= 5, ~7 chars per digit width)
//	3-row medium (needs availH >= 3, ~5 chars per digit width)
//	1-row plain  (always fits)
func renderCostDisplay(s string, availH, availW int, style lipgloss.Style) string {
	// Try large font (5 rows, each digit 6 wide + 1 gap).
	if availH >= 5 {
		largeW := digitWidth(s, 6)
		if largeW <= availW {
			return renderDigitFont(s, digitFontLarge, 5, style)
		}
	}

	// Try medium font (3 rows, each digit 4 wide + 1 gap).
	if availH >= 3 {
		medW := digitWidth(s, 4)
		if medW <= availW {
			return renderDigitFont(s, digitFontMedium, 3, style)
		}
	}

	// Fallback: plain styled text.
	return style.Render("$" + s)
}

// digitWidth returns the total rendered width for a string at a given
// per-character width (charW wide + 1 space gap between characters),
// plus 1 for the "$" prefix column.
func digitWidth(s string, charW int) int {
	n := len([]rune(s))
	if n == 0 {
		return 1
	}
	return 1 + n*charW + (n - 1) // prefix + digits + gaps
}

// renderDigitFont renders a numeric string using the given font map.
// A "$" prefix is placed on the vertically-centred row.
func renderDigitFont[T [3]string | [5]string](s string, font map[rune]T, nRows int, style lipgloss.Style) string {
	rows := make([]string, nRows)
	for i, ch := range s {
		pattern, ok := font[ch]
		if !ok {
			pattern = font['.']
		}
		for row := 0; row < nRows; row++ {
			if i > 0 {
				rows[row] += " "
			}
			rows[row] += pattern[row]
		}
	}

	midRow := nRows / 2
	var result []string
	for i, row := range rows {
		prefix := " "
		if i == midRow {
			prefix = "$"
		}
		result = append(result, style.Render(prefix+row))
	}
	return strings.Join(result, "\n")
}

// costStyle colors a cost by the configured display thresholds.
func (m Model) costStyle(cost float64) lipgloss.Style {
	switch {
	case cost < m.cfg.Display.CostColorGreenBelow:
		return costGreenStyle
	case cost < m.cfg.Display.CostColorYellowBelow:
		return costYellowStyle
	default:
		return costRedStyle
	}
}

// formatNumber formats an int64 with comma separators (e.g., 1,234,567).
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}

	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
