package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maxyzli/whisper-flow/internal/pipeline"
)

func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := deps.controller(deps.registry(), nil, withoutDesktop)
			devices := ctrl.Devices(cmd.Context())
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(devices)
			}
			f := NewFormatter(os.Stdout)
			for _, d := range devices {
				f.Info(fmt.Sprintf("[%s] %s", d.ID, d.Name))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print devices as JSON")
	return cmd
}

func NewTranscribeCmd(deps *Dependencies) *cobra.Command {
	var req pipeline.FileRequest

	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe an audio or video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Path = args[0]
			if req.Model == "" {
				req.Model = deps.Config.DefaultModel
			}
			if req.Language == "" {
				req.Language = deps.Config.Language
			}
			if req.Prompt == "" {
				req.Prompt = deps.Config.Prompt
			}

			journal := deps.openJournal()
			if journal != nil {
				defer journal.Close()
			}
			ctrl := deps.controller(deps.registry(), journal, withoutDesktop)

			res, err := ctrl.TranscribeFile(cmd.Context(), req)
			if err != nil {
				return err
			}
			f := NewFormatter(os.Stdout)
			if res.Empty {
				f.Warning("no speech recognized; see " + res.TranscriptPath)
				return nil
			}
			f.Text(res.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Model, "model", "m", "", "whisper model name")
	cmd.Flags().StringVarP(&req.Language, "language", "l", "", "language code or auto")
	cmd.Flags().StringVar(&req.Prompt, "prompt", "", "vocabulary hint")
	cmd.Flags().BoolVarP(&req.Timestamps, "timestamps", "t", false, "output SRT with timestamps")
	return cmd
}
