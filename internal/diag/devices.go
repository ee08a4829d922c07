package diag

import (
	"strings"
)

// Device is one audio input reported by the capture tool.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FallbackDevice is returned when enumeration yields nothing.
var FallbackDevice = Device{ID: "0", Name: "Default Microphone"}

// ParseDevices extracts audio input devices from the stderr of a
// list_devices run. It understands the avfoundation listing, where devices
// are indexed, and the dshow listing, where a device is addressed by its
// quoted name. Other backends yield the fallback. The result is never empty.
func ParseDevices(stderr string) []Device {
	var devices []Device
	inAudio, inDShowAudio := false, false
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.Contains(line, audioSectionHeader):
			inAudio = true
			continue
		case strings.Contains(line, dshowAudioHeader):
			inDShowAudio = true
			continue
		case strings.Contains(line, videoSectionMarker):
			inAudio, inDShowAudio = false, false
			continue
		}
		if d, ok := ParseDShowLine(line, inDShowAudio); ok {
			devices = append(devices, d)
			continue
		}
		if !inAudio {
			continue
		}
		if d, ok := ParseDeviceLine(line); ok {
			devices = append(devices, d)
		}
	}
	if len(devices) == 0 {
		return []Device{FallbackDevice}
	}
	return devices
}

// ParseDeviceLine parses a single "...] [<id>] <name>" entry.
func ParseDeviceLine(line string) (Device, bool) {
	parts := strings.Split(line, "]")
	if len(parts) < 3 {
		return Device{}, false
	}

	idPart := parts[len(parts)-2]
	if i := strings.LastIndex(idPart, "["); i >= 0 {
		idPart = idPart[i+1:]
	}
	id := strings.TrimSpace(idPart)
	name := strings.TrimSpace(parts[len(parts)-1])

	if id == "" || name == "" || !isDigits(id) {
		return Device{}, false
	}
	return Device{ID: id, Name: name}, true
}

// ParseDShowLine parses a dshow entry. Recent ffmpeg tags each device with
// its kind, as in `"Microphone (USB)" (audio)`; older builds list bare quoted
// names under a section header, which inSection reports. Alternative names
// are skipped.
func ParseDShowLine(line string, inSection bool) (Device, bool) {
	if strings.Contains(line, "Alternative name") {
		return Device{}, false
	}
	open := strings.Index(line, `"`)
	if open < 0 {
		return Device{}, false
	}
	end := strings.Index(line[open+1:], `"`)
	if end <= 0 {
		return Device{}, false
	}
	name := line[open+1 : open+1+end]
	tail := strings.TrimSpace(line[open+end+2:])

	switch {
	case tail == "(audio)":
	case tail == "" && inSection:
	default:
		return Device{}, false
	}
	return Device{ID: name, Name: name}, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
