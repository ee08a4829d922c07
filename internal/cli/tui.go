package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/maxyzli/whisper-flow/internal/app"
)

func NewTUICmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal UI (requires a running daemon)",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := app.New(app.Options{
				SocketPath:  deps.Config.SocketPath,
				JournalPath: deps.Config.JournalPath(),
				Model:       deps.Config.DefaultModel,
				Language:    deps.Config.Language,
			})
			_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}
