package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/maxyzli/whisper-flow/internal/mcpserver"
)

func NewMCPCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve transcription and history tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal := deps.openJournal()
			reg := deps.registry()
			ctrl := deps.controller(reg, journal, withoutDesktop)

			opts := []mcpserver.Option{
				mcpserver.WithLogger(deps.Logger),
				mcpserver.WithDefaults(mcpserver.Defaults{
					Model:    deps.Config.DefaultModel,
					Language: deps.Config.Language,
					Prompt:   deps.Config.Prompt,
				}),
			}
			if journal != nil {
				defer journal.Close()
				opts = append(opts, mcpserver.WithJournal(journal))
			}

			srv := mcpserver.New(ctrl, deps.history(), reg, opts...)
			deps.Logger.Info("mcp server ready on stdio")
			return srv.Serve(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}
