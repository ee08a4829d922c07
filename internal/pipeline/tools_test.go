package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceSelector(t *testing.T) {
	tests := []struct {
		format, id, want string
	}{
		{"avfoundation", "0", ":0"},
		{"avfoundation", "2", ":2"},
		{"pulse", "0", "default"},
		{"alsa", "", "default"},
		{"alsa", "hw:1", "hw:1"},
		{"dshow", "Microphone (USB)", "audio=Microphone (USB)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, deviceSelector(tt.format, tt.id), "%s/%s", tt.format, tt.id)
	}
}

func TestCaptureArgs(t *testing.T) {
	assert.Equal(t, []string{
		"-y", "-f", "avfoundation", "-i", ":1",
		"-filter_complex", "[0:a]asplit=2[rec][meter];[meter]ebur128=metadata=1,anullsink",
		"-map", "[rec]", "-vn", "-ar", "16000", "-ac", "1", "-f", "s16le", "/r/input.raw",
	}, captureArgs("avfoundation", "1", "/r/input.raw"))
}

func TestRecognizeArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-m", "/m.bin", "-f", "/a.wav", "-t", "8", "-l", "en", "-nt"},
		recognizeArgs("/m.bin", "/a.wav", 8, "en", "", false))
	assert.Equal(t,
		[]string{"-m", "/m.bin", "-f", "/a.wav", "-t", "4", "-l", "auto", "--prompt", "gRPC, etcd", "-osrt"},
		recognizeArgs("/m.bin", "/a.wav", 4, "auto", "gRPC, etcd", true))
}

func TestToolPrefixArgs(t *testing.T) {
	cmd := Tool{Path: "/bin/tool", Args: []string{"--quiet"}}.command("-i", "x")
	assert.Equal(t, "/bin/tool", cmd.Path)
	assert.Equal(t, []string{"--quiet", "-i", "x"}, cmd.Args)
}

func TestStageErrorMatching(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("stop: %w", &StageError{
		Stage:      StateConverting,
		Kind:       ErrConversion,
		Diagnostic: "Invalid data",
		Err:        cause,
	})

	assert.ErrorIs(t, err, ErrConversion)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTranscription)
	assert.Equal(t, "stop: audio conversion failed: exit status 1: Invalid data", err.Error())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "transcribing", StateTranscribing.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StatePersisting.Terminal())
}
