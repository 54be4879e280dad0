// Package ui renders stress run progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/tc39/proposal-richer-keys/internal/stress"
)

type progressModel struct {
	title      string
	events     <-chan stress.Event
	spinner    spinner.Model
	prog       progress.Model
	items      []workerItem
	stageLabel string
	width      int
	done       bool
	failed     bool
}

type workerItem struct {
	name   string
	status string
	stage  stress.Stage
	done   int
	total  int
}

type eventMsg stress.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model with one row per worker.
func NewProgressModel(title string, workers int, events <-chan stress.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]workerItem, workers)
	for i := range items {
		items[i] = workerItem{name: fmt.Sprintf("worker %d", i), status: "queued"}
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(stress.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.stageLabel != "" {
		header = fmt.Sprintf("%s (%s)", header, m.stageLabel)
	}
	switch {
	case m.done && m.failed:
		header = fmt.Sprintf("failed: %s", header)
	case m.done:
		header = fmt.Sprintf("done: %s", header)
	default:
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}

	for _, item := range m.items {
		name := item.name
		if item.total > 0 {
			name = fmt.Sprintf("%s  %d/%d", name, item.done, item.total)
		}
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%12s", item.status))
		fmt.Fprintf(&b, "  %s %s\n", statusStyled, truncate(name, nameWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev stress.Event) tea.Cmd {
	label := statusLabel(ev.Stage, ev.Status)
	if ev.Status == stress.StatusError {
		m.failed = true
	}
	if ev.Worker == stress.NoWorker {
		if label != "" {
			m.stageLabel = fmt.Sprintf("%s: %s", ev.Stage, label)
		}
		return nil
	}
	if ev.Worker < 0 || ev.Worker >= len(m.items) {
		return nil
	}
	item := &m.items[ev.Worker]
	if label != "" {
		item.status = label
	}
	item.stage = ev.Stage
	item.done = ev.Done
	if ev.Total > 0 {
		item.total = ev.Total
	}

	total := 0.0
	for _, it := range m.items {
		total += itemProgress(it)
	}
	return m.prog.SetPercent(total / float64(len(m.items)))
}

// itemProgress splits a worker's share evenly between interning and
// verification.
func itemProgress(it workerItem) float64 {
	if it.status == "done" || it.status == "error" {
		return 1.0
	}
	frac := 0.0
	if it.total > 0 {
		frac = float64(it.done) / float64(it.total)
	}
	switch it.stage {
	case stress.StageIntern:
		return frac / 2
	case stress.StageVerify:
		return 0.5 + frac/2
	default:
		return 0.0
	}
}

func statusLabel(stage stress.Stage, status stress.Status) string {
	switch status {
	case stress.StatusQueued:
		return "queued"
	case stress.StatusDone:
		return "done"
	case stress.StatusError:
		return "error"
	case stress.StatusWorking:
		return stageLabel(stage)
	default:
		return ""
	}
}

func stageLabel(stage stress.Stage) string {
	switch stage {
	case stress.StageIntern:
		return "interning"
	case stress.StageVerify:
		return "verifying"
	case stress.StageRelease:
		return "releasing"
	case stress.StageCollect:
		return "collecting"
	default:
		return ""
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "interning", "verifying", "releasing", "collecting":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
