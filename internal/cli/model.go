package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maxyzli/whisper-flow/internal/models"
)

func NewModelCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage whisper.cpp model files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known models and whether they are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := deps.registry()
			f := NewFormatter(os.Stdout)
			f.Header("Models in " + reg.Dir())
			for _, name := range models.Names() {
				st := reg.Status(name)
				detail := "not installed"
				if st.Exists {
					detail = formatBytes(st.SizeBytes)
				}
				f.Check(name, st.Exists, detail)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status [name]",
		Short: "Show one model's location and size",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := deps.registry().Status(modelArg(deps, args))
			f := NewFormatter(os.Stdout)
			if !st.Exists {
				f.Warning(fmt.Sprintf("%s is not installed (expected at %s)", st.Name, st.Path))
				return nil
			}
			f.Success(fmt.Sprintf("%s %s at %s", st.Name, formatBytes(st.SizeBytes), st.Path))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "download [name]",
		Short: "Download a model from Hugging Face",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := modelArg(deps, args)
			f := NewFormatter(os.Stdout)
			f.Info("downloading " + name)

			path, err := deps.registry().Download(cmd.Context(), name, func(p models.Progress) {
				fmt.Fprintf(os.Stderr, "\r%s %3d%% of %s", p.Name, p.Percent, formatBytes(p.TotalBytes))
			})
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			f.Success("saved " + path)
			return nil
		},
	})

	return cmd
}

func modelArg(deps *Dependencies, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return deps.Config.DefaultModel
}
