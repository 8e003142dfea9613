package main

import (
	"encoding/binary"
	"math"
	"testing"
)

func genTone(freq float64, durationMs int) []byte {
	n := 16000 * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int16(16000 * math.Sin(2*math.Pi*freq*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

func genSilence(durationMs int) []byte {
	return make([]byte, 16000*durationMs/1000*2)
}

func TestVADSilenceTick(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	vp.Process(genSilence(200))
	if vp.HasSpeechTick() {
		t.Error("expected no speech on silence")
	}
}

func TestVADEmptyTickIsSilence(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	if vp.HasSpeechTick() {
		t.Error("expected no speech with no audio fed")
	}
}

func TestVADOddChunkSizes(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	// Feed 200ms of silence in 100-byte chunks (not aligned to 640-byte frames)
	silence := genSilence(200)
	for i := 0; i < len(silence); i += 100 {
		end := i + 100
		if end > len(silence) {
			end = len(silence)
		}
		vp.Process(silence[i:end])
	}
	if vp.HasSpeechTick() {
		t.Error("expected no speech on silence with odd chunks")
	}
}

func TestVADTickConsumesWindow(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	vp.Process(genTone(440, 200))
	vp.HasSpeechTick()
	// Nothing new since the last tick.
	if vp.HasSpeechTick() {
		t.Error("expected empty interval after consuming tick")
	}
}

func TestVADReset(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	vp.Process(genTone(440, 200))
	vp.Reset()
	if vp.HasSpeechTick() {
		t.Error("expected no speech after reset")
	}
}
