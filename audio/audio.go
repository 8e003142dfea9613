// Package audio abstracts microphone capture behind a small Context /
// CaptureDevice pair so the rest of the application never touches a
// platform audio API directly.
package audio

import "strings"

// WAVHeaderSize is the canonical RIFF header length, used to strip the
// header when replaying a WAV file as raw PCM.
const WAVHeaderSize = 44

// DataCallback receives raw s16le PCM from the capture device. It runs
// on the audio backend's thread and must not block.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context enumerates capture devices and constructs capture streams.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice is one microphone stream. SetCallback may be called
// while stopped; ClearCallback detaches without closing the device so
// the same capture can serve multiple sessions.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether a microphone is a
// Bluetooth headset, which typically records at much lower quality.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
