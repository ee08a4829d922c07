// Package cli builds the whisperflow command tree.
package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maxyzli/whisper-flow/internal/config"
	"github.com/maxyzli/whisper-flow/internal/logging"
	"github.com/maxyzli/whisper-flow/internal/version"
)

// Dependencies are resolved once per invocation, before any subcommand runs.
type Dependencies struct {
	ConfigPath string
	Verbose    bool

	Config *config.Config
	Logger *zap.SugaredLogger
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "whisperflow",
		Short:         "Local push-to-talk dictation with whisper.cpp",
		Long:          "Record from a microphone with ffmpeg, transcribe locally with whisper.cpp, and copy or paste the text.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return deps.load(topLevel(cmd).Name())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if deps.Logger != nil {
				_ = deps.Logger.Sync()
			}
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.PersistentFlags().StringVar(&deps.ConfigPath, "config", "", "config file (default ~/.config/whisper-flow/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&deps.Verbose, "verbose", "v", false, "log to stderr at debug level")

	rootCmd.AddCommand(NewDaemonCmd(deps))
	rootCmd.AddCommand(NewTUICmd(deps))
	rootCmd.AddCommand(NewStartCmd(deps))
	rootCmd.AddCommand(NewStopCmd(deps))
	rootCmd.AddCommand(NewCancelCmd(deps))
	rootCmd.AddCommand(NewStatusCmd(deps))
	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewTranscribeCmd(deps))
	rootCmd.AddCommand(NewHistoryCmd(deps))
	rootCmd.AddCommand(NewRunsCmd(deps))
	rootCmd.AddCommand(NewModelCmd(deps))
	rootCmd.AddCommand(NewMCPCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}

// load reads configuration and builds the logger. Commands that own stdout
// (tui, mcp) log to file only.
func (d *Dependencies) load(command string) error {
	if d.Config != nil {
		return nil
	}
	cfg, err := config.Load(d.ConfigPath)
	if err != nil {
		return err
	}
	d.Config = cfg

	level := cfg.LogLevel
	if d.Verbose {
		level = "debug"
	}
	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(cfg.DataDir, "logs")
	}
	console := d.Verbose || command == "daemon"
	if command == "tui" || command == "mcp" {
		console = false
	}

	logger, err := logging.New(
		logging.Name("whisperflow-"+command),
		logging.Path(logDir),
		logging.Level(level),
		logging.Console(console),
	)
	if err != nil {
		return err
	}
	d.Logger = logger
	return nil
}

func topLevel(cmd *cobra.Command) *cobra.Command {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd
}
