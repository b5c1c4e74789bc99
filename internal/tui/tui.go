// Package tui provides a Bubble Tea TUI for browsing the lie history of a
// file.
package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/report"
	"github.com/baicai99/ilovelie/internal/toggle"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	timeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))

	truthStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	lieStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	hideStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	diffAddStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	diffDelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabRecords
	tabTimeline
	tabTruth
	tabLie
	tabCount
)

var tabNames = [tabCount]string{"Summary", "Records", "Timeline", "Truth", "Lie"}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	history   *report.History
	truth     string
	lie       string
	filename  string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool
	// Records tab: cursor position and expanded set
	cursor   int
	expanded map[int]bool
}

// New creates a model for h. truth and lie are the two renderings of the
// file; either may be empty when unknown.
func New(h *report.History, truth, lie string) Model {
	return Model{
		history:  h,
		truth:    truth,
		lie:      lie,
		filename: filepath.Base(h.Status.Path),
		expanded: make(map[int]bool),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4", "5":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabTimeline {
				m.sortAsc = !m.sortAsc
				m.refresh(tabTimeline)
				m.viewports[tabTimeline].GotoTop()
			}
		case "up", "k":
			if m.activeTab == tabRecords && m.cursor > 0 {
				m.cursor--
				m.refresh(tabRecords)
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabRecords && m.cursor < len(m.history.Records)-1 {
				m.cursor++
				m.refresh(tabRecords)
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabRecords && len(m.history.Records) > 0 {
				if m.expanded[m.cursor] {
					delete(m.expanded, m.cursor)
				} else {
					m.expanded[m.cursor] = true
				}
				m.refresh(tabRecords)
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  ilovelie  " + m.filename)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-5 jump  q quit"
	switch m.activeTab {
	case tabTimeline:
		dir := "newest first"
		if m.sortAsc {
			dir = "oldest first"
		}
		hint += "  s sort (" + dir + ")"
	case tabRecords:
		hint += "  enter expand/collapse"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) refresh(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabRecords:
		return m.renderRecords()
	case tabTimeline:
		return m.renderTimeline()
	case tabTruth:
		return renderText("Truth", m.truth)
	case tabLie:
		return renderText("Lie", m.lie)
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func stateBadge(s toggle.State) string {
	if s == toggle.Lie {
		return lieStyle.Render("LIE")
	}
	return truthStyle.Render("TRUTH")
}

func (m *Model) renderSummary() string {
	st := m.history.Status
	var sb strings.Builder
	sb.WriteString(heading("File"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-16s", label)) + "  " + value + "\n")
	}
	row("Path:", st.Path)
	row("Showing:", stateBadge(st.CurrentState))
	if !st.LastToggleTime.IsZero() {
		row("Last toggle:", st.LastToggleTime.Format("2006-01-02 15:04:05 MST"))
	}
	session := "none"
	switch {
	case st.SessionActive:
		session = "active"
	case st.HasSnapshot:
		session = "ended"
	}
	row("Session:", session)

	sb.WriteString(heading("Counts"))
	row("Records:", fmt.Sprintf("%d", len(m.history.Records)))
	row("Lies:", fmt.Sprintf("%d", st.Substitutions))
	row("Hidden comments:", fmt.Sprintf("%d", st.HiddenComments))
	return sb.String()
}

func typeBadge(t history.RecordType) string {
	label := fmt.Sprintf("%-20s", t)
	switch t {
	case history.TypeSessionStart:
		return markerStyle.Render(label)
	case history.TypeHideComment:
		return hideStyle.Render(label)
	}
	return lieStyle.Render(label)
}

func (m *Model) renderRecords() string {
	var sb strings.Builder
	recs := m.history.Records
	sb.WriteString(heading(fmt.Sprintf("Records (%d)", len(recs))))
	if len(recs) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for i, rec := range recs {
		arrow := dimStyle.Render("  ▶ ")
		if m.expanded[i] {
			arrow = dimStyle.Render("  ▼ ")
		}
		where := "whole file"
		if !rec.IsMarker() {
			where = fmt.Sprintf("%s v%d", rec.Range(), rec.VersionNumber)
		}
		row := fmt.Sprintf("%s%s  %s  %s", arrow, timeStyle.Render(rec.Timestamp.Format("15:04:05")), typeBadge(rec.Type), where)
		if i == m.cursor {
			row = selectedRowStyle.Width(m.width - 2).Render(row)
		}
		sb.WriteString(row + "\n")
		if m.expanded[i] {
			sb.WriteString(renderRecordDetail(rec, m.width))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderRecordDetail shows a record as a small -/+ diff.
func renderRecordDetail(rec history.Record, width int) string {
	var sb strings.Builder
	border := dimStyle.Render("  " + strings.Repeat("─", max(width-4, 1)))
	sb.WriteString(border + "\n")
	sb.WriteString(dimStyle.Render("  id "+rec.ID) + "\n")
	if rec.SessionID != "" {
		sb.WriteString(dimStyle.Render("  session "+rec.SessionID) + "\n")
	}
	if rec.IsMarker() {
		if rec.FileSnapshot != nil {
			sb.WriteString(dimStyle.Render(fmt.Sprintf("  baseline of %d lines", strings.Count(*rec.FileSnapshot, "\n")+1)) + "\n")
		}
	} else {
		for _, l := range strings.Split(rec.OriginalText, "\n") {
			sb.WriteString(diffDelStyle.Render("  - "+l) + "\n")
		}
		for _, l := range strings.Split(rec.NewText, "\n") {
			sb.WriteString(diffAddStyle.Render("  + "+l) + "\n")
		}
	}
	sb.WriteString(border + "\n")
	return sb.String()
}

func (m *Model) renderTimeline() string {
	var sb strings.Builder
	dir := "newest first"
	if m.sortAsc {
		dir = "oldest first"
	}
	sb.WriteString(heading(fmt.Sprintf("Timeline (%s)", dir)))

	recs := append([]history.Record(nil), m.history.Records...)
	if m.sortAsc {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
	} else {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	}
	if len(recs) == 0 {
		sb.WriteString(dimStyle.Render("  (no records for this file)") + "\n")
		return sb.String()
	}
	for _, rec := range recs {
		ts := timeStyle.Render(rec.Timestamp.Format("2006-01-02 15:04:05"))
		text := report.FormatRecord(rec)
		if rec.SessionEndTime != nil {
			text += dimStyle.Render("  ended " + rec.SessionEndTime.Format("15:04:05"))
		}
		sb.WriteString("  " + ts + "  " + typeBadge(rec.Type) + "\n    " + text + "\n\n")
	}
	return sb.String()
}

func renderText(name, text string) string {
	var sb strings.Builder
	sb.WriteString(heading(name))
	if text == "" {
		sb.WriteString(dimStyle.Render("  (unavailable without a session baseline)") + "\n")
		return sb.String()
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  %4d │ ", i+1)) + l + "\n")
	}
	return sb.String()
}

// Run starts the TUI.
func Run(h *report.History, truth, lie string) error {
	p := tea.NewProgram(New(h, truth, lie), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
