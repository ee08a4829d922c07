// Package diag classifies ffmpeg diagnostic lines into readiness, loudness
// and device-list information. All functions are pure except Readiness,
// which remembers that it has fired.
package diag

import (
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	sizeMarker     = "size="
	loudnessMarker = "M:"

	audioSectionHeader = "AVFoundation audio devices:"
	dshowAudioHeader   = "DirectShow audio devices"
	videoSectionMarker = "video devices:"
)

// Level normalization. Momentary loudness of -70 LUFS maps to 0 and -20 LUFS
// maps to 1.5, -10 LUFS to 1.8. The normalized value clamps at 1.8 before
// gain, so +20 LUFS and anything louder reads 2.7.
const (
	levelFloor   = -70.0
	levelSpan    = 50.0
	levelMaxNorm = 1.8
	levelGain    = 1.5
)

// Readiness fires once, on the first progress line of a capture.
type Readiness struct {
	fired atomic.Bool
}

// Observe reports true exactly once: for the first line containing the size
// marker.
func (r *Readiness) Observe(line string) bool {
	if !strings.Contains(line, sizeMarker) {
		return false
	}
	return r.fired.CompareAndSwap(false, true)
}

// Fired reports whether readiness has been observed.
func (r *Readiness) Fired() bool {
	return r.fired.Load()
}

// ParseLevel extracts the momentary loudness from an ebur128 line and
// normalizes it. ok is false for lines without a parsable value and for
// values below the floor.
func ParseLevel(line string) (level float64, ok bool) {
	idx := strings.Index(line, loudnessMarker)
	if idx < 0 {
		return 0, false
	}
	rest := line[idx+len(loudnessMarker):]

	start := strings.IndexFunc(rest, func(r rune) bool {
		return r == '-' || (r >= '0' && r <= '9')
	})
	if start < 0 {
		return 0, false
	}
	rest = rest[start:]
	end := strings.IndexFunc(rest, func(r rune) bool {
		return r != '-' && r != '.' && (r < '0' || r > '9')
	})
	if end >= 0 {
		rest = rest[:end]
	}

	v, err := strconv.ParseFloat(rest, 64)
	if err != nil || v < levelFloor {
		return 0, false
	}
	return Normalize(v), true
}

// Normalize maps momentary loudness in LUFS onto the meter scale.
func Normalize(lufs float64) float64 {
	n := (lufs - levelFloor) / levelSpan
	if n < 0 {
		n = 0
	}
	if n > levelMaxNorm {
		n = levelMaxNorm
	}
	return n * levelGain
}
