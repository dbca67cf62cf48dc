package console

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/absim/internal/simserver"
)

// Run drives the console until the user quits (q / Ctrl-C). It blocks
// the calling goroutine; callers run it alongside the already-started
// simserver.Server, never instead of it.
func Run(srv *simserver.Server, family string) error {
	p := tea.NewProgram(NewModel(srv, family))
	_, err := p.Run()
	return err
}
