package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"lowir/internal/driver"
)

// maxRows bounds the function list; the rest is summarised in one line.
const maxRows = 20

type progressModel struct {
	title   string
	events  <-chan driver.Event
	spinner spinner.Model
	prog    progress.Model
	items   []funcItem
	index   map[string]int
	note    string
	width   int
	done    bool
}

type funcItem struct {
	name   string
	status driver.Status
	ms     float64
}

type eventMsg driver.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders per-function
// lowering progress. Functions not listed in funcs are added when their
// queued event arrives.
func NewProgressModel(title string, funcs []string, events <-chan driver.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]funcItem, 0, len(funcs))
	index := make(map[string]int, len(funcs))
	for i, name := range funcs {
		items = append(items, funcItem{name: name, status: driver.StatusQueued})
		index[name] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(driver.Event(msg))
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
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.note != "" {
		header = fmt.Sprintf("%s (%s)", header, m.note)
	}
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 9
	timeWidth := 10
	nameWidth := m.width - statusWidth - timeWidth - 6
	if nameWidth < 20 {
		nameWidth = 20
	}

	shown := m.items
	if len(shown) > maxRows {
		shown = m.visibleItems()
	}
	for _, item := range shown {
		status := styleStatus(item.status).Render(fmt.Sprintf("%9s", item.status))
		name := pad(truncate(item.name, nameWidth), nameWidth)
		line := fmt.Sprintf("  %s %s", status, name)
		if item.ms > 0 {
			line += fmt.Sprintf(" %7.2f ms", item.ms)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if hidden := len(m.items) - len(shown); hidden > 0 {
		fmt.Fprintf(&b, "  %9s %d more\n", "", hidden)
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

// visibleItems keeps active and failed functions on screen ahead of
// finished and queued ones.
func (m *progressModel) visibleItems() []funcItem {
	out := make([]funcItem, 0, maxRows)
	for _, want := range []driver.Status{driver.StatusWorking, driver.StatusError, driver.StatusQueued, driver.StatusDone, driver.StatusSkipped} {
		for _, item := range m.items {
			if len(out) == maxRows {
				return out
			}
			if item.status == want {
				out = append(out, item)
			}
		}
	}
	return out
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

func (m *progressModel) applyEvent(ev driver.Event) tea.Cmd {
	if ev.Func == "" {
		if ev.Status == driver.StatusCached {
			m.note = "cached"
			for i := range m.items {
				m.items[i].status = driver.StatusCached
			}
			return m.prog.SetPercent(1.0)
		}
		return nil
	}
	idx, ok := m.index[ev.Func]
	if !ok {
		if ev.Status != driver.StatusQueued {
			return nil
		}
		idx = len(m.items)
		m.items = append(m.items, funcItem{name: ev.Func})
		m.index[ev.Func] = idx
	}
	m.items[idx].status = ev.Status
	if ev.Elapsed > 0 {
		m.items[idx].ms = float64(ev.Elapsed.Microseconds()) / 1000
	}
	return m.prog.SetPercent(m.fraction())
}

// fraction is the share of functions that reached a final status.
func (m *progressModel) fraction() float64 {
	if len(m.items) == 0 {
		return 0
	}
	finished := 0
	for _, item := range m.items {
		switch item.status {
		case driver.StatusDone, driver.StatusError, driver.StatusSkipped, driver.StatusCached:
			finished++
		}
	}
	return float64(finished) / float64(len(m.items))
}

func styleStatus(status driver.Status) lipgloss.Style {
	switch status {
	case driver.StatusDone, driver.StatusCached:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case driver.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case driver.StatusWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	case driver.StatusSkipped:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
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

func pad(value string, width int) string {
	return runewidth.FillRight(value, width)
}
