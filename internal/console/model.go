package console

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/tturner/absim/internal/simserver"
)

// refreshInterval is how often the console polls the server for a fresh
// connection snapshot.
const refreshInterval = 500 * time.Millisecond

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the bubbletea model for the `serve --tui` operator console.
type Model struct {
	server  *simserver.Server
	family  string
	started time.Time

	conns    []simserver.ConnSnapshot
	selected int
	status   string

	rearmForm *huh.Form
	rearmN    string
}

// NewModel builds a console Model bound to srv.
func NewModel(srv *simserver.Server, family string) Model {
	return Model{server: srv, family: family, started: time.Now()}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd { return tick() }

// Update handles key presses and refresh ticks. The 'r' key opens a huh
// confirmation/input form to re-arm --reject_fo at runtime; 'y' copies
// the selected connection's session handle and connection id to the
// clipboard.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.rearmForm != nil {
		formModel, cmd := m.rearmForm.Update(msg)
		m.rearmForm = formModel.(*huh.Form)
		if m.rearmForm.State == huh.StateCompleted {
			n := 0
			fmt.Sscanf(m.rearmN, "%d", &n)
			m.server.SetRejectFOCount(n)
			m.status = fmt.Sprintf("reject_fo re-armed to %d for future connections", n)
			m.rearmForm = nil
		} else if m.rearmForm.State == huh.StateAborted {
			m.rearmForm = nil
		}
		return m, cmd
	}

	switch msg := msg.(type) {
	case tickMsg:
		m.conns = m.server.Snapshot()
		if m.selected >= len(m.conns) {
			m.selected = len(m.conns) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
		return m, tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.conns)-1 {
				m.selected++
			}
		case "r":
			m.rearmN = fmt.Sprintf("%d", m.server.RejectFOCount())
			m.rearmForm = huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("Re-arm --reject_fo").
					Description("Forward-Open rejections to apply to connections accepted from now on.").
					Value(&m.rearmN),
			))
			return m, m.rearmForm.Init()
		case "y":
			if m.selected < len(m.conns) {
				handle := fmt.Sprintf("session=0x%08x conn=0x%08x", m.conns[m.selected].SessionID, m.conns[m.selected].ConnID)
				if err := clipboard.WriteAll(handle); err != nil {
					m.status = fmt.Sprintf("clipboard error: %v", err)
				} else {
					m.status = "copied " + handle + " to clipboard"
				}
			}
		}
	}
	return m, nil
}

// View renders the connection table and status line.
func (m Model) View() string {
	header := titleStyle.Render(fmt.Sprintf("absim — %s — uptime %s", m.family, time.Since(m.started).Round(time.Second)))
	header += "  " + dimStyle.Render(fmt.Sprintf("accepted=%d active=%d reject_fo=%d", m.server.Accepted(), len(m.conns), m.server.RejectFOCount()))

	body := "no active connections"
	if len(m.conns) > 0 {
		rows := make([]string, 0, len(m.conns)+1)
		rows = append(rows, dimStyle.Render(fmt.Sprintf("%-22s %-10s %-10s %-10s", "remote", "session", "cip", "conn_id")))
		for i, c := range m.conns {
			cipState := warnStyle.Render("closed")
			if c.CIPOpen {
				cipState = okStyle.Render("open")
			}
			line := fmt.Sprintf("%-22s 0x%08x %-10s 0x%08x", c.Remote, c.SessionID, cipState, c.ConnID)
			if i == m.selected {
				line = "> " + line
			} else {
				line = "  " + line
			}
			rows = append(rows, line)
		}
		body = joinLines(rows)
	}

	out := header + "\n\n" + frameStyle.Render(body)
	if m.rearmForm != nil {
		out += "\n\n" + frameStyle.Render(m.rearmForm.View())
	}
	if m.status != "" {
		out += "\n" + dimStyle.Render(m.status)
	}
	out += "\n" + dimStyle.Render("↑/↓ select · r re-arm reject_fo · y copy handle · q quit")
	return out
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
