package cli

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(os.Stdout)
			cfg := deps.Config
			ok := true

			check := func(name, path, hint string) {
				if resolved, err := exec.LookPath(path); err != nil {
					f.Check(name, false, "not found. "+hint)
					ok = false
				} else {
					f.Check(name, true, resolved)
				}
			}
			check("ffmpeg", cfg.FFmpegPath, "Install with: brew install ffmpeg")
			check("whisper-cli", cfg.WhisperPath, "Install with: brew install whisper-cpp")

			st := deps.registry().Status(cfg.DefaultModel)
			if st.Exists {
				f.Check("model "+st.Name, true, formatBytes(st.SizeBytes))
			} else {
				f.Check("model "+st.Name, false, "missing. Run: whisperflow model download "+st.Name)
				ok = false
			}

			if err := os.MkdirAll(cfg.RecordingsDir(), 0o755); err != nil {
				f.Check("recordings", false, err.Error())
				ok = false
			} else {
				f.Check("recordings", true, cfg.RecordingsDir())
			}

			if client, err := deps.client(); err != nil {
				f.Check("daemon", false, "not running. Start with: whisperflow daemon")
			} else {
				client.Close()
				f.Check("daemon", true, cfg.SocketPath)
			}

			if ok {
				f.Success("All prerequisites met. Ready to dictate!")
			} else {
				f.Warning("Some prerequisites are missing.")
			}
			return nil
		},
	}
}
