package cli

import (
	"github.com/maxyzli/whisper-flow/internal/daemon"
	"github.com/maxyzli/whisper-flow/internal/db"
	"github.com/maxyzli/whisper-flow/internal/effects"
	"github.com/maxyzli/whisper-flow/internal/history"
	"github.com/maxyzli/whisper-flow/internal/models"
	"github.com/maxyzli/whisper-flow/internal/pipeline"
)

func (d *Dependencies) registry() *models.Registry {
	return models.NewRegistry(d.Config.ModelsDir(), models.WithLogger(d.Logger))
}

func (d *Dependencies) history() *history.Store {
	return history.New(d.Config.RecordingsDir())
}

// openJournal opens the session journal. The journal is best-effort: on
// failure the error is logged and nil returned.
func (d *Dependencies) openJournal() *db.Store {
	store, err := db.Open(d.Config.JournalPath())
	if err != nil {
		d.Logger.Warnf("journal disabled: %v", err)
		return nil
	}
	return store
}

func (d *Dependencies) pipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig(d.Config.RecordingsDir())
	cfg.FFmpeg = pipeline.Tool{Path: d.Config.FFmpegPath}
	cfg.Whisper = pipeline.Tool{Path: d.Config.WhisperPath}
	cfg.CaptureFormat = d.Config.CaptureFormat
	cfg.Threads = d.Config.Threads
	cfg.StopTimeout = d.Config.StopTimeout()
	cfg.MinArtifactBytes = d.Config.MinArtifactBytes
	cfg.AutoPaste = d.Config.AutoPaste
	return cfg
}

// desktop reports whether the controller should touch the clipboard,
// play cues and paste.
type desktop bool

const (
	withDesktop    desktop = true
	withoutDesktop desktop = false
)

func (d *Dependencies) controller(reg *models.Registry, journal *db.Store, fx desktop, extra ...pipeline.Option) *pipeline.Controller {
	opts := []pipeline.Option{pipeline.WithLogger(d.Logger)}
	if journal != nil {
		opts = append(opts, pipeline.WithJournal(journal))
	}
	if fx {
		opts = append(opts,
			pipeline.WithClipboard(effects.Clipboard{}),
			pipeline.WithCue(effects.NewCue(d.Config.Sounds, d.Config.Notifications)),
			pipeline.WithPaster(effects.NewPaster()),
		)
	}
	opts = append(opts, extra...)
	return pipeline.New(d.pipelineConfig(), reg, opts...)
}

func (d *Dependencies) client() (*daemon.Client, error) {
	return daemon.Connect(d.Config.SocketPath)
}

func (d *Dependencies) defaults() daemon.Defaults {
	return daemon.Defaults{
		Device:   "0",
		Model:    d.Config.DefaultModel,
		Language: d.Config.Language,
		Prompt:   d.Config.Prompt,
	}
}
