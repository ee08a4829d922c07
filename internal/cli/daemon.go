package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maxyzli/whisper-flow/internal/daemon"
	"github.com/maxyzli/whisper-flow/internal/pipeline"
)

func NewDaemonCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the recording daemon in the foreground",
		Long:  "Own the microphone pipeline and serve start/stop and history commands on a Unix socket.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := deps.Config
			log := deps.Logger

			ln, err := daemon.Listen(cfg.SocketPath)
			if err != nil {
				return err
			}
			defer os.Remove(cfg.SocketPath)

			journal := deps.openJournal()
			if journal != nil {
				defer journal.Close()
			}

			events := daemon.NewBroadcaster(log)
			reg := deps.registry()
			ctrl := deps.controller(reg, journal, withDesktop, pipeline.WithNotifier(events))

			opts := []daemon.ServerOption{
				daemon.WithLogger(log),
				daemon.WithDefaults(deps.defaults()),
			}
			if journal != nil {
				opts = append(opts, daemon.WithJournal(journal))
			}
			srv := daemon.NewServer(ctrl, deps.history(), reg, events, opts...)

			log.Infof("listening on %s (recordings in %s)", cfg.SocketPath, cfg.RecordingsDir())
			if err := srv.Serve(ctx, ln); err != nil {
				return err
			}
			log.Info("daemon stopped")
			return nil
		},
	}
}
