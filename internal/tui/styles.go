package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"calcdesk/internal/calc"
)

var (
	colorCyan     = lipgloss.Color("#00FFFF")
	colorMagenta  = lipgloss.Color("#FF00FF")
	colorGreen    = lipgloss.Color("#39FF14")
	colorHotPink  = lipgloss.Color("#FF2E97")
	colorAmber    = lipgloss.Color("#FFB000")
	colorBgHeader = lipgloss.Color("#1A0A2E")
	colorFg       = lipgloss.Color("#E0E0E0")
	colorMuted    = lipgloss.Color("#6B7280")
	colorFaint    = lipgloss.Color("#374151")
	colorBorder   = lipgloss.Color("#00BFFF")
)

var (
	headerFillStyle  = lipgloss.NewStyle().Background(colorBgHeader)
	headerTitleStyle = headerFillStyle.Foreground(colorCyan).Bold(true)
	headerSubStyle   = headerFillStyle.Foreground(colorMagenta)
	headerLabelStyle = headerFillStyle.Foreground(colorMuted)
	headerValueStyle = headerFillStyle.Foreground(colorCyan).Bold(true)

	panelStyle        = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(colorBorder).Padding(0, 1)
	panelFocusedStyle = panelStyle.BorderForeground(colorMagenta)
	panelTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorMagenta)

	labelStyle = lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle = lipgloss.NewStyle().Foreground(colorFg)
	faintStyle = lipgloss.NewStyle().Foreground(colorFaint)
	infoStyle  = lipgloss.NewStyle().Foreground(colorAmber)
	errorStyle = lipgloss.NewStyle().Foreground(colorHotPink)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)

	footerKeyStyle  = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	footerDescStyle = lipgloss.NewStyle().Foreground(colorFaint)
)

func renderHeader(width int, left, right string) string {
	if width <= 0 {
		return left + " " + right
	}
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + headerFillStyle.Render(strings.Repeat(" ", gap)) + right
}

func renderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().Foreground(colorBorder).Render(strings.Repeat("═", width))
}

func renderFooterKeys(width int, pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, footerKeyStyle.Render(pairs[i])+" "+footerDescStyle.Render(pairs[i+1]))
	}
	line := strings.Join(parts, footerDescStyle.Render("  "))
	if width > 0 {
		return lipgloss.NewStyle().Width(width).Render(line)
	}
	return line
}

func renderPanel(title string, width int, focused bool, content string) string {
	body := content
	if strings.TrimSpace(title) != "" {
		body = panelTitleStyle.Render(title) + "\n" + content
	}
	s := panelStyle
	if focused {
		s = panelFocusedStyle
	}
	if width > 0 {
		// Width includes padding but not the border.
		s = s.Width(max(0, width-2))
	}
	return s.Render(body)
}

func renderSelector(prompt string, items []string, activeIdx int, focused bool) string {
	parts := make([]string, 0, len(items))
	for i, it := range items {
		switch {
		case i == activeIdx && focused:
			parts = append(parts, lipgloss.NewStyle().Foreground(colorCyan).Bold(true).Render(it))
		case i == activeIdx:
			parts = append(parts, valueStyle.Render(it))
		default:
			parts = append(parts, faintStyle.Render(it))
		}
	}
	ps := lipgloss.NewStyle().Foreground(colorMuted)
	arrow := lipgloss.NewStyle().Foreground(colorMuted)
	if focused {
		ps = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
		return ps.Render(prompt) + arrow.Render("◄ ") + strings.Join(parts, "  ") + arrow.Render(" ►")
	}
	return ps.Render(prompt) + strings.Join(parts, "  ")
}

// outcomeStyle colours an output area by what was last written into it.
func outcomeStyle(kind calc.Kind, pending bool) lipgloss.Style {
	if pending {
		return infoStyle
	}
	switch kind {
	case calc.KindResult:
		return okStyle
	case calc.KindPrompt:
		return labelStyle
	case calc.KindAppError, calc.KindNetworkError, calc.KindParseError, calc.KindFormatError:
		return errorStyle
	default:
		return valueStyle
	}
}

func renderStatusLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return okStyle.Render(s)
}

func renderErrorLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return errorStyle.Render(s)
}
