// Package effects implements the desktop side effects that follow a
// successful transcription: clipboard, audible cue and paste keystroke.
// Every adapter is best-effort; callers log and ignore their errors.
package effects

import (
	"errors"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gen2brain/beeep"
	"github.com/micmonay/keybd_event"
)

// AppName titles desktop notifications.
const AppName = "whisper-flow"

// ErrUnsupported is returned when the platform has no backend.
var ErrUnsupported = errors.New("not supported on this platform")

// Clipboard writes to the system clipboard.
type Clipboard struct{}

func (Clipboard) WriteText(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	return clipboard.WriteAll(text)
}

// Tones for the completion cues.
const (
	successFreq     = 880.0
	successDuration = 120
	failureFreq     = 220.0
	failureDuration = 300
)

// Cue beeps on completion and optionally raises a desktop notification.
type Cue struct {
	Sounds        bool
	Notifications bool

	beep   func(freq float64, duration int) error
	notify func(title, message, icon string) error
}

// NewCue returns a Cue backed by beeep.
func NewCue(sounds, notifications bool) *Cue {
	return &Cue{
		Sounds:        sounds,
		Notifications: notifications,
		beep:          beeep.Beep,
		notify:        beeep.Notify,
	}
}

func (c *Cue) Success() error {
	return c.play(successFreq, successDuration, "Transcript copied to clipboard")
}

func (c *Cue) Failure() error {
	return c.play(failureFreq, failureDuration, "No speech recognized")
}

func (c *Cue) play(freq float64, duration int, message string) error {
	var errs []error
	if c.Sounds {
		errs = append(errs, c.beep(freq, duration))
	}
	if c.Notifications {
		errs = append(errs, c.notify(AppName, message, ""))
	}
	return errors.Join(errs...)
}

// Paster sends the platform paste shortcut: Cmd+V on macOS, Ctrl+V elsewhere.
type Paster struct {
	press func(super bool) error
}

// NewPaster returns a Paster driving keybd_event.
func NewPaster() *Paster {
	return &Paster{press: pressPaste}
}

func (p *Paster) Paste() error {
	return p.press(runtime.GOOS == "darwin")
}

func pressPaste(super bool) error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return err
	}
	// Linux needs time to register the virtual device.
	if runtime.GOOS == "linux" {
		time.Sleep(2 * time.Second)
	}
	if super {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	return kb.Launching()
}
