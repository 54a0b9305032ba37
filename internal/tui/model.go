package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"calcdesk/internal/calc"
	"calcdesk/internal/history"
)

type screen int

const (
	screenMain screen = iota
	screenFilePicker
)

const (
	focusExpr = iota
	focusMatA
	focusMatB
	focusOp
	focusCount
)

type panel int

const (
	panelExpr panel = iota
	panelMatrix
)

const maxMatrixFileBytes = 1 << 20

// Options wires the model to its collaborators.
type Options struct {
	API          calc.API
	Ops          []string
	HistoryDir   string
	HistoryLabel string
	FormatEval   calc.Formatter
	FormatMatrix calc.Formatter
	Log          logrus.FieldLogger
	Title        string
}

type model struct {
	eval    *calc.Evaluator
	matrix  *calc.MatrixRunner
	hist    *history.Log
	histDir string
	log     logrus.FieldLogger
	title   string

	w int
	h int

	ops   []string
	opIdx int

	expr textinput.Model
	matA textinput.Model
	matB textinput.Model

	exprOut  *calc.Box
	exprKind calc.Kind
	matOut   *calc.Box
	matKind  calc.Kind
	matView  viewport.Model

	list       list.Model
	picker     filepicker.Model
	pickTarget int
	spinner    spinner.Model

	screen   screen
	focusIdx int
	errMsg   string
	status   string

	// ctx parents every call; it is canceled when the program quits.
	ctx    context.Context
	cancel context.CancelFunc

	exprPending *calc.Call
	matPending  *calc.Call
}

type callDoneMsg struct {
	panel   panel
	call    *calc.Call
	outcome calc.Outcome
	entry   history.Entry
}

// inputSource lets a handler read a text input owned by the model.
type inputSource struct{ in *textinput.Model }

func (s inputSource) Text() string { return s.in.Value() }

func (s inputSource) SetText(v string) { s.in.SetValue(v) }

func New(opts Options) tea.Model {
	ops := opts.Ops
	if len(ops) == 0 {
		ops = []string{"add", "subtract", "multiply", "transpose", "determinant", "inverse"}
	}
	title := opts.Title
	if title == "" {
		title = "calcdesk"
	}
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	expr := textinput.New()
	expr.Placeholder = "e.g. " + calc.SampleExpression
	expr.Prompt = "Expr:   "
	expr.Focus()

	matA := textinput.New()
	matA.Placeholder = "[[1,2],[3,4]]"
	matA.Prompt = "A:      "

	matB := textinput.New()
	matB.Placeholder = "optional, e.g. [[5,6],[7,8]]"
	matB.Prompt = "B:      "

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(colorCyan)

	l := list.New(nil, historyDelegate{}, 0, 0)
	// We render our own header/footer. Keep list internals lean.
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit = key.NewBinding(key.WithDisabled())

	fp := filepicker.New()
	if wd, err := os.Getwd(); err == nil {
		fp.CurrentDirectory = wd
	}
	fp.AllowedTypes = []string{".json", ".txt"}
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.ShowPermissions = false
	fp.ShowSize = true
	fp.ShowHidden = false
	fp.AutoHeight = false
	fp.Cursor = "▸"
	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(colorMagenta).Bold(true)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	fp.Styles.File = valueStyle
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(colorCyan).Bold(true).Underline(true)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(colorMagenta).Italic(true)
	fp.Styles.EmptyDirectory = faintStyle
	fp.Styles.DisabledFile = faintStyle
	fp.Styles.DisabledCursor = faintStyle
	fp.Styles.DisabledSelected = faintStyle
	fp.KeyMap.Back = key.NewBinding(key.WithKeys("h", "backspace", "left"), key.WithHelp("←", "back"))

	m := &model{
		hist:     history.New(),
		histDir:  opts.HistoryDir,
		log:      log,
		title:    title,
		w:        80,
		h:        24,
		ops:      ops,
		expr:     expr,
		matA:     matA,
		matB:     matB,
		exprOut:  calc.NewBox(""),
		matOut:   calc.NewBox(""),
		matView:  viewport.New(0, 0),
		list:     l,
		picker:   fp,
		spinner:  sp,
		screen:   screenMain,
		focusIdx: focusExpr,
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.eval = &calc.Evaluator{
		API:    opts.API,
		Input:  inputSource{&m.expr},
		Output: calc.NewOutput(m.exprOut),
		Format: opts.FormatEval,
		Log:    log,
	}
	m.matrix = &calc.MatrixRunner{
		API:    opts.API,
		A:      inputSource{&m.matA},
		B:      inputSource{&m.matB},
		Output: calc.NewOutput(m.matOut),
		Format: opts.FormatMatrix,
		Log:    log,
	}
	m.hist.SetLabel(opts.HistoryLabel)
	m.applyInputStyles()
	m.onResize()
	return m
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.w = msg.Width
		m.h = msg.Height
		m.onResize()
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
	case callDoneMsg:
		m.finishCall(msg)
		return m, nil
	case spinner.TickMsg:
		if m.exprPending == nil && m.matPending == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	switch m.screen {
	case screenFilePicker:
		return m.updateFilePicker(msg)
	default:
		return m.updateMain(msg)
	}
}

func (m *model) View() string {
	switch m.screen {
	case screenFilePicker:
		return m.viewFilePicker()
	default:
		return m.viewMain()
	}
}

func (m *model) updateMain(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return m, m.quit()
		case "tab", "down":
			m.focusIdx = (m.focusIdx + 1) % focusCount
			m.syncFocus()
			return m, nil
		case "shift+tab", "up":
			m.focusIdx = (m.focusIdx + focusCount - 1) % focusCount
			m.syncFocus()
			return m, nil
		case "left":
			if m.focusIdx == focusOp {
				m.opIdx = (m.opIdx + len(m.ops) - 1) % len(m.ops)
				return m, nil
			}
		case "right":
			if m.focusIdx == focusOp {
				m.opIdx = (m.opIdx + 1) % len(m.ops)
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.matView, cmd = m.matView.Update(msg)
			return m, cmd
		case "ctrl+p", "ctrl+n":
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(listNav(msg.String()))
			return m, cmd
		case "ctrl+r":
			calc.InsertSample(inputSource{&m.expr})
			m.expr.CursorEnd()
			m.focusIdx = focusExpr
			m.syncFocus()
			return m, nil
		case "ctrl+s":
			m.saveHistory()
			return m, nil
		case "ctrl+o":
			if m.focusIdx == focusMatA || m.focusIdx == focusMatB {
				m.pickTarget = m.focusIdx
				m.screen = screenFilePicker
				m.onResize()
				return m, m.picker.Init()
			}
		case "enter":
			m.errMsg = ""
			m.status = ""
			if m.focusIdx == focusExpr {
				return m, m.startEvaluate()
			}
			return m, m.startMatrix()
		}
	}

	var cmd tea.Cmd
	m.expr, cmd = m.expr.Update(msg)
	cmds = append(cmds, cmd)
	m.matA, cmd = m.matA.Update(msg)
	cmds = append(cmds, cmd)
	m.matB, cmd = m.matB.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) startEvaluate() tea.Cmd {
	entry := history.Entry{Handler: "evaluate", Input: []string{strings.TrimSpace(m.expr.Value())}}
	c := m.eval.Start(m.ctx)
	if c == nil {
		m.exprPending = nil
		m.exprKind = calc.KindPrompt
		return nil
	}
	m.exprPending = c
	return tea.Batch(runCall(panelExpr, c, entry), m.spinner.Tick)
}

func (m *model) startMatrix() tea.Cmd {
	op := m.ops[m.opIdx]
	entry := history.Entry{
		Handler: "matrix",
		Op:      op,
		Input:   []string{strings.TrimSpace(m.matA.Value()), strings.TrimSpace(m.matB.Value())},
	}
	c := m.matrix.Start(m.ctx, op)
	m.matPending = c
	m.matView.SetContent(m.matOut.Text())
	return tea.Batch(runCall(panelMatrix, c, entry), m.spinner.Tick)
}

// quit aborts calls still in flight so their goroutines return promptly.
func (m *model) quit() tea.Cmd {
	for _, c := range []*calc.Call{m.exprPending, m.matPending} {
		if c != nil {
			c.Cancel()
		}
	}
	m.cancel()
	m.log.Debug("quitting")
	return tea.Quit
}

// runCall does the blocking part off the update loop. Rendering happens back
// in Update so the outputs are only touched from one goroutine.
func runCall(p panel, c *calc.Call, entry history.Entry) tea.Cmd {
	return func() tea.Msg {
		return callDoneMsg{panel: p, call: c, outcome: c.Run(), entry: entry}
	}
}

func (m *model) finishCall(msg callDoneMsg) {
	if !msg.call.Render(msg.outcome) {
		m.log.WithFields(logrus.Fields{"seq": msg.call.Seq(), "kind": msg.outcome.Kind}).Debug("stale response dropped")
		return
	}

	switch msg.panel {
	case panelExpr:
		m.exprKind = msg.outcome.Kind
		if m.exprPending == msg.call {
			m.exprPending = nil
		}
	case panelMatrix:
		m.matKind = msg.outcome.Kind
		if m.matPending == msg.call {
			m.matPending = nil
		}
		m.matView.SetContent(m.matOut.Text())
		m.matView.GotoTop()
	}

	e := msg.entry
	e.Time = time.Now()
	e.Output = msg.outcome.Text
	e.Outcome = msg.outcome.Kind.String()
	m.hist.Add(e)
	m.list.InsertItem(0, historyItem(e))
	m.list.Select(0)
}

func (m *model) saveHistory() {
	if m.hist.Len() == 0 {
		m.errMsg = "Nothing to save yet"
		return
	}
	path, err := m.hist.Save(m.histDir)
	if err != nil {
		m.errMsg = "Save failed: " + err.Error()
		m.log.WithError(err).Warn("history save failed")
		return
	}
	m.errMsg = ""
	m.status = "History saved: " + path
	m.log.WithField("path", path).Info("history saved")
}

func (m *model) updateFilePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			m.screen = screenMain
			m.onResize()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if didSelect, path := m.picker.DidSelectFile(msg); didSelect {
		m.loadMatrixFile(path)
		m.screen = screenMain
		m.onResize()
		return m, nil
	}

	return m, cmd
}

// loadMatrixFile puts the file content into the target field on one line.
func (m *model) loadMatrixFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxMatrixFileBytes+1))
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	if len(data) > maxMatrixFileBytes {
		m.errMsg = fmt.Sprintf("%s is larger than %d bytes", filepath.Base(path), maxMatrixFileBytes)
		return
	}

	text := strings.TrimSpace(string(data))
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(text)); err == nil {
		text = compact.String()
	} else {
		text = strings.Join(strings.Fields(text), " ")
	}

	target := &m.matA
	if m.pickTarget == focusMatB {
		target = &m.matB
	}
	target.SetValue(text)
	target.CursorEnd()
	m.errMsg = ""
	m.status = "Loaded " + filepath.Base(path)
}

func (m *model) viewMain() string {
	padX, padY, w, h := m.layout()
	container := lipgloss.NewStyle().Padding(padY, padX)
	if w < 24 || h < 10 {
		return container.Render("Terminal too small. Press esc to quit.")
	}

	left := headerTitleStyle.Render(">> "+m.title) + headerSubStyle.Render(" // calculator")
	right := headerLabelStyle.Render("Op:") + headerFillStyle.Render(" ") + headerValueStyle.Render(m.ops[m.opIdx]) +
		headerFillStyle.Render("  ") + headerLabelStyle.Render("History:") + headerFillStyle.Render(" ") +
		headerValueStyle.Render(fmt.Sprint(m.hist.Len()))

	exprBody := strings.Join([]string{
		m.expr.View(),
		m.renderOutput(m.exprOut.Text(), m.exprKind, m.exprPending != nil),
	}, "\n")

	matBody := strings.Join([]string{
		m.matA.View(),
		m.matB.View(),
		renderSelector("Op:     ", m.ops, m.opIdx, m.focusIdx == focusOp),
		m.renderMatrixOutput(),
	}, "\n")

	histView := m.list.View()
	if len(m.list.Items()) == 0 {
		histView = faintStyle.Render("No results yet.")
	}

	lines := []string{
		renderHeader(w, left, right),
		renderDivider(w),
		renderPanel("Expression", w, m.focusIdx == focusExpr, exprBody),
		renderPanel("Matrix", w, m.focusIdx != focusExpr, matBody),
		renderPanel("History", w, false, histView),
	}
	if m.status != "" {
		lines = append(lines, renderStatusLine(m.status))
	}
	if m.errMsg != "" {
		lines = append(lines, renderErrorLine(m.errMsg))
	}
	switch m.focusIdx {
	case focusExpr:
		lines = append(lines, renderFooterKeys(w, "Enter", "evaluate", "^R", "sample", "Tab", "next", "^S", "save", "Esc", "quit"))
	case focusOp:
		lines = append(lines, renderFooterKeys(w, "Enter", "run", "←→", "op", "PgUp/PgDn", "scroll", "^S", "save", "Esc", "quit"))
	default:
		lines = append(lines, renderFooterKeys(w, "Enter", "run", "^O", "load file", "Tab", "next", "^S", "save", "Esc", "quit"))
	}

	return container.Render(strings.Join(filterEmpty(lines), "\n"))
}

func (m *model) renderOutput(text string, kind calc.Kind, pending bool) string {
	if text == "" && !pending {
		return labelStyle.Render("=       ") + faintStyle.Render("—")
	}
	prefix := labelStyle.Render("=       ")
	if pending {
		prefix = labelStyle.Render("=     ") + m.spinner.View() + " "
	}
	return prefix + outcomeStyle(kind, pending).Render(text)
}

func (m *model) renderMatrixOutput() string {
	pending := m.matPending != nil
	text := m.matOut.Text()
	if pending || !strings.Contains(text, "\n") {
		return m.renderOutput(text, m.matKind, pending)
	}
	return outcomeStyle(m.matKind, false).Render(m.matView.View())
}

func (m *model) viewFilePicker() string {
	padX, padY, w, h := m.layout()
	container := lipgloss.NewStyle().Padding(padY, padX)
	if w < 24 || h < 10 {
		return container.Render("Terminal too small. Press esc to go back.")
	}

	target := "A"
	if m.pickTarget == focusMatB {
		target = "B"
	}
	left := headerTitleStyle.Render(">> "+m.title) + headerSubStyle.Render(" // load matrix "+target)
	right := headerFillStyle.Render("")

	pathLine := labelStyle.Render("  ") + valueStyle.Render(m.picker.CurrentDirectory)

	lines := []string{
		renderHeader(w, left, right),
		renderDivider(w),
		pathLine,
		renderPanel("", w, false, m.picker.View()),
		renderFooterKeys(w, "Enter", "select", "Esc", "back", "↑↓", "navigate", "→/←", "open/parent"),
	}
	return container.Render(strings.Join(filterEmpty(lines), "\n"))
}

func (m *model) syncFocus() {
	m.expr.Blur()
	m.matA.Blur()
	m.matB.Blur()
	switch m.focusIdx {
	case focusExpr:
		m.expr.Focus()
	case focusMatA:
		m.matA.Focus()
	case focusMatB:
		m.matB.Focus()
	}
	m.applyInputStyles()
}

func (m *model) applyInputStyles() {
	focused := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	blurred := lipgloss.NewStyle().Foreground(colorMuted)

	for idx, in := range map[int]*textinput.Model{focusExpr: &m.expr, focusMatA: &m.matA, focusMatB: &m.matB} {
		if m.focusIdx == idx {
			in.PromptStyle = focused
		} else {
			in.PromptStyle = blurred
		}
		in.TextStyle = valueStyle
		in.PlaceholderStyle = faintStyle
	}
}

func (m *model) layout() (padX, padY, contentW, contentH int) {
	w := m.w
	h := m.h
	if w <= 0 {
		w = 80
	}
	if h <= 0 {
		h = 24
	}

	padX = 2
	padY = 1
	if w < 70 {
		padX = 1
	}
	if h < 30 {
		padY = 0
	}

	contentW = max(0, w-padX*2)
	contentH = max(0, h-padY*2)
	return padX, padY, contentW, contentH
}

func (m *model) onResize() {
	_, _, contentW, contentH := m.layout()

	// Panel border (2) + padding (2).
	innerW := max(10, contentW-4)
	inputW := max(20, innerW-10)
	m.expr.Width = inputW
	m.matA.Width = inputW
	m.matB.Width = inputW

	// header + divider + footer, three panels with title rows and borders,
	// expression rows, matrix input rows.
	fixed := 3 + 3*3 + 2 + 3
	if m.status != "" {
		fixed++
	}
	if m.errMsg != "" {
		fixed++
	}
	free := max(2, contentH-fixed)
	viewH := max(1, free*2/3)
	listH := max(1, free-viewH)

	m.matView.Width = innerW
	m.matView.Height = viewH
	m.list.SetSize(innerW, listH)

	// filepicker height: header + divider + pathLine + panel borders + footer = 6 lines
	m.picker.SetHeight(max(3, contentH-6))
}

func listNav(k string) tea.KeyMsg {
	if k == "ctrl+p" {
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyDown}
}

func filterEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, s := range lines {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
