package recognizer

import (
	"encoding/json"
	"strings"
)

// fakeChunkBytes is how much audio advances the scripted hypothesis by
// one word: 0.5s of 16kHz mono s16le.
const fakeChunkBytes = 16000

// FakeModel produces scripted hypotheses so the application can run
// without a real model or microphone. Each utterance grows word by
// word as partials and settles as a final once complete; the script
// wraps around.
type FakeModel struct {
	utterances []string
}

func NewFakeModel(utterances ...string) *FakeModel {
	if len(utterances) == 0 {
		utterances = []string{
			"the quick brown fox",
			"jumps over the lazy dog",
		}
	}
	return &FakeModel{utterances: utterances}
}

func (m *FakeModel) NewEngine() (Engine, error) {
	words := make([][]string, len(m.utterances))
	for i, u := range m.utterances {
		words[i] = strings.Fields(u)
	}
	return &fakeEngine{script: words}, nil
}

func (m *FakeModel) Close() error { return nil }

type fakeEngine struct {
	script  [][]string
	pending int
	utt     int
	word    int
	settled bool // current utterance just finalized
}

func (e *fakeEngine) AcceptWaveform(pcm []byte) (bool, error) {
	e.pending += len(pcm)
	for e.pending >= fakeChunkBytes {
		e.pending -= fakeChunkBytes
		if e.advance() {
			return true, nil
		}
	}
	return false, nil
}

// advance moves the script forward one word; returns true when the
// current utterance is complete.
func (e *fakeEngine) advance() bool {
	if len(e.script) == 0 {
		return false
	}
	e.word++
	if e.word >= len(e.script[e.utt]) {
		e.settled = true
		return true
	}
	return false
}

func (e *fakeEngine) PartialResult() []byte {
	words := e.script[e.utt]
	n := e.word
	if n > len(words) {
		n = len(words)
	}
	return marshalPayload(resultPayload{Partial: strings.Join(words[:n], " ")})
}

func (e *fakeEngine) Result() []byte {
	text := strings.Join(e.script[e.utt], " ")
	if e.settled {
		// Move to the next utterance for subsequent audio.
		e.utt = (e.utt + 1) % len(e.script)
		e.word = 0
		e.settled = false
	}
	return marshalPayload(resultPayload{Text: text})
}

// FinalResult settles whatever partial progress remains.
func (e *fakeEngine) FinalResult() []byte {
	if e.word == 0 {
		return marshalPayload(resultPayload{Text: ""})
	}
	words := e.script[e.utt][:e.word]
	e.word = 0
	return marshalPayload(resultPayload{Text: strings.Join(words, " ")})
}

func (e *fakeEngine) Close() error { return nil }

func marshalPayload(p resultPayload) []byte {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return raw
}
