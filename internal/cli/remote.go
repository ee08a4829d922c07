package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxyzli/whisper-flow/internal/daemon"
)

// ErrDaemonNotRunning is returned when no daemon answers on the socket.
var ErrDaemonNotRunning = errors.New("daemon not running; start it with: whisperflow daemon")

func (d *Dependencies) do(cmd daemon.Command) (daemon.Response, error) {
	client, err := d.client()
	if err != nil {
		d.Logger.Debugf("connect: %v", err)
		return daemon.Response{}, ErrDaemonNotRunning
	}
	defer client.Close()
	return client.Do(cmd)
}

func NewStartCmd(deps *Dependencies) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start recording on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(os.Stdout)
			resp, err := deps.do(daemon.Command{Cmd: daemon.CmdStart, Device: device})
			if err != nil {
				return err
			}
			if resp.AlreadyActive != nil && *resp.AlreadyActive {
				f.Warning("already recording session " + resp.SessionID)
				return nil
			}
			f.Success("recording session " + resp.SessionID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "capture device id (see: whisperflow devices)")
	return cmd
}

func NewStopCmd(deps *Dependencies) *cobra.Command {
	var model, language, prompt string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop recording and print the transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(os.Stdout)
			resp, err := deps.do(daemon.Command{
				Cmd:      daemon.CmdStop,
				Model:    model,
				Language: language,
				Prompt:   prompt,
			})
			if err != nil {
				return err
			}
			if resp.Empty != nil && *resp.Empty {
				f.Warning("no speech recognized; see " + resp.TranscriptPath)
				return nil
			}
			f.Text(resp.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "whisper model name")
	cmd.Flags().StringVarP(&language, "language", "l", "", "language code or auto")
	cmd.Flags().StringVar(&prompt, "prompt", "", "vocabulary hint")
	return cmd
}

func NewCancelCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Discard the active recording without transcribing",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := deps.do(daemon.Command{Cmd: daemon.CmdCancel})
			if err != nil {
				return err
			}
			NewFormatter(os.Stdout).Success("cancelled session " + resp.SessionID)
			return nil
		},
	}
}

func NewStatusCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(os.Stdout)
			resp, err := deps.do(daemon.Command{Cmd: daemon.CmdStatus})
			if err != nil {
				return err
			}
			if resp.Recording == nil || !*resp.Recording {
				f.Info("idle")
				return nil
			}
			elapsed := ""
			if resp.StartedAt != nil {
				elapsed = " for " + time.Since(*resp.StartedAt).Round(time.Second).String()
			}
			f.Success(fmt.Sprintf("recording session %s on device %s%s", resp.SessionID, resp.Device, elapsed))
			return nil
		},
	}
}
