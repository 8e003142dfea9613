// Package encoder archives session audio. The capture pipeline is
// fixed at 16kHz mono s16le, so the stream parameters live here as
// constants shared with the audio and recognition layers.
package encoder

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)
