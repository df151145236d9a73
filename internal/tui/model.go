package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/cueline/internal/core/schedule"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	countdownStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	pausedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	lateStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	aheadStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("84"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	doneStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Strikethrough(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
)

// Model is the watch view. It holds no timer of its own; every countdown
// update arrives as a pushed state frame.
type Model struct {
	client  *streamClient
	cancel  context.CancelFunc
	spinner spinner.Model

	connected bool
	lastErr   error
	state     schedule.StateSnapshot
	slots     []schedule.SlotView
	quitting  bool
}

// NewModel creates a watch view connected to the given stream URL.
func NewModel(url string) Model {
	ctx, cancel := context.WithCancel(context.Background())
	client := newStreamClient(url)
	client.start(ctx)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		client:  client,
		cancel:  cancel,
		spinner: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.client.waitForEvent())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case connectedMsg:
		m.connected = true
		m.lastErr = nil
		return m, m.client.waitForEvent()

	case disconnectedMsg:
		m.connected = false
		m.lastErr = msg.err
		return m, m.client.waitForEvent()

	case stateMsg:
		m.state = schedule.StateSnapshot(msg)
		return m, m.client.waitForEvent()

	case listMsg:
		m.slots = msg
		return m, m.client.waitForEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("cueline") + "\n\n")

	if !m.connected {
		b.WriteString(m.spinner.View() + " connecting to server...")
		if m.lastErr != nil {
			b.WriteString("\n" + dimStyle.Render(m.lastErr.Error()))
		}
		b.WriteString(helpStyle.Render("\nq to quit"))
		return b.String()
	}

	b.WriteString(m.renderState())
	b.WriteString(m.renderSlots())
	b.WriteString(helpStyle.Render("q to quit"))
	return b.String()
}

func (m Model) renderState() string {
	var b strings.Builder

	switch {
	case m.state.ActiveSlot == nil:
		b.WriteString(dimStyle.Render("No slot running") + "\n")
	default:
		active := m.state.ActiveSlot
		b.WriteString(fmt.Sprintf("Now: %s  %s\n", active.Name, dimStyle.Render(strings.Join(active.Members, ", "))))

		countdown := countdownStyle.Render(formatClock(m.state.RemainingSeconds))
		if m.state.IsPaused {
			countdown += "  " + pausedStyle.Render("PAUSED")
		}
		b.WriteString(countdown + "\n")

		if next := m.state.NextSlot; next != nil {
			b.WriteString(fmt.Sprintf("Next: %s  %s\n", next.Name, dimStyle.Render(strings.Join(next.Members, ", "))))
		}
	}

	drift := m.state.TotalDriftDisplay
	switch {
	case m.state.TotalDriftSeconds > 0:
		drift = lateStyle.Render(drift + " late")
	case m.state.TotalDriftSeconds < 0:
		drift = aheadStyle.Render(drift + " ahead")
	default:
		drift = dimStyle.Render(drift)
	}
	b.WriteString("Drift: " + drift + "\n\n")

	return b.String()
}

func (m Model) renderSlots() string {
	if len(m.slots) == 0 {
		return dimStyle.Render("No slots scheduled") + "\n"
	}

	var b strings.Builder
	activeID := int64(0)
	if m.state.ActiveSlot != nil {
		activeID = m.state.ActiveSlot.ID
	}

	for _, slot := range m.slots {
		line := fmt.Sprintf("%2d. %s (%dm)", slot.Order, slot.Name, slot.PlannedMinutes)
		switch {
		case slot.IsCompleted:
			line = doneStyle.Render(line) + " " + dimStyle.Render(slot.DriftDisplay)
		case slot.ID == activeID:
			line = countdownStyle.Render("> " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
