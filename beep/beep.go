// Package beep plays short audible cues for session start, session end
// and the no-voice warning.
package beep

var disabled bool

// Disable silences all cues; used when replaying audio in fake mode.
func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Start cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End cue: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Warning cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)
