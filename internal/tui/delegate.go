package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	tea "github.com/charmbracelet/bubbletea"

	"calcdesk/internal/history"
)

type historyItem history.Entry

func (i historyItem) Title() string {
	if i.Handler == "matrix" {
		return i.Op + " " + strings.Join(nonEmpty(i.Input), " · ")
	}
	return strings.Join(i.Input, " ")
}

func (i historyItem) Description() string {
	return oneLine(i.Output)
}

func (i historyItem) FilterValue() string {
	return strings.TrimSpace(i.Title() + " " + i.Output)
}

// historyDelegate draws one entry per line: time, input, result.
type historyDelegate struct{}

func (d historyDelegate) Height() int                             { return 1 }
func (d historyDelegate) Spacing() int                            { return 0 }
func (d historyDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d historyDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(historyItem)
	if !ok || m.Width() <= 0 {
		return
	}

	prefix := "  "
	prefixStyle := faintStyle
	titleStyle := valueStyle
	if index == m.Index() {
		prefix = "▸ "
		prefixStyle = lipgloss.NewStyle().Foreground(colorMagenta).Bold(true)
		titleStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	}

	resultStyle := okStyle
	if it.Outcome != "result" {
		resultStyle = errorStyle
	}

	stamp := labelStyle.Render(it.Time.Format("15:04:05")) + " "
	textW := m.Width() - lipgloss.Width(prefix) - lipgloss.Width(stamp)
	if textW < 0 {
		textW = 0
	}
	title := ansi.Truncate(it.Title(), textW/2, "...")
	rest := textW - lipgloss.Width(title) - 3
	result := ""
	if rest > 0 {
		result = ansi.Truncate(it.Description(), rest, "...")
	}

	line := prefixStyle.Render(prefix) + stamp + titleStyle.Render(title)
	if result != "" {
		line += faintStyle.Render(" = ") + resultStyle.Render(result)
	}
	_, _ = fmt.Fprint(w, line)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
