package pipeline

import (
	"strconv"

	"github.com/maxyzli/whisper-flow/internal/process"
)

// Audio parameters shared by capture and conversion.
const (
	SampleRate = "16000"
	Channels   = "1"
	RawFormat  = "s16le"
)

// meterFilter splits the input so one branch is written to disk and the other
// feeds the ebur128 loudness meter, whose readings appear on stderr.
const meterFilter = "[0:a]asplit=2[rec][meter];[meter]ebur128=metadata=1,anullsink"

// Tool is an external executable plus arguments that precede every
// invocation.
type Tool struct {
	Path string
	Args []string
}

func (t Tool) command(args ...string) process.Command {
	full := make([]string, 0, len(t.Args)+len(args))
	full = append(full, t.Args...)
	full = append(full, args...)
	return process.Command{Path: t.Path, Args: full}
}

// deviceSelector builds the -i argument for the capture backend.
func deviceSelector(format, deviceID string) string {
	switch format {
	case "pulse", "alsa":
		if deviceID == "" || deviceID == "0" {
			return "default"
		}
		return deviceID
	case "dshow":
		// dshow addresses inputs by name.
		return "audio=" + deviceID
	default:
		return ":" + deviceID
	}
}

func captureArgs(format, deviceID, rawPath string) []string {
	return []string{
		"-y",
		"-f", format,
		"-i", deviceSelector(format, deviceID),
		"-filter_complex", meterFilter,
		"-map", "[rec]",
		"-vn",
		"-ar", SampleRate,
		"-ac", Channels,
		"-f", RawFormat,
		rawPath,
	}
}

func listDevicesArgs(format string) []string {
	return []string{"-f", format, "-list_devices", "true", "-i", ""}
}

func convertRawArgs(rawPath, wavPath string) []string {
	return []string{
		"-y",
		"-f", RawFormat,
		"-ar", SampleRate,
		"-ac", Channels,
		"-i", rawPath,
		wavPath,
	}
}

func convertFileArgs(inPath, wavPath string) []string {
	return []string{
		"-y",
		"-i", inPath,
		"-vn",
		"-ar", SampleRate,
		"-ac", Channels,
		wavPath,
	}
}

// recognizeArgs builds the whisper-cli invocation. The priming prompt is
// passed only when set.
func recognizeArgs(modelPath, wavPath string, threads int, language, prompt string, timestamps bool) []string {
	args := []string{
		"-m", modelPath,
		"-f", wavPath,
		"-t", strconv.Itoa(threads),
		"-l", language,
	}
	if prompt != "" {
		args = append(args, "--prompt", prompt)
	}
	if timestamps {
		args = append(args, "-osrt")
	} else {
		args = append(args, "-nt")
	}
	return args
}

// srtPath is where whisper-cli writes subtitles for wavPath.
func srtPath(wavPath string) string {
	return wavPath + ".srt"
}
