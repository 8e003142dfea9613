// Package recognizer binds the application to an offline
// speech-recognition engine. The engine does all acoustic and language
// modeling; this package only moves PCM in and decoded hypotheses out.
package recognizer

import (
	"encoding/json"
	"strings"
)

// Engine is one recognition stream of a loaded model. AcceptWaveform
// returns true when the engine finalized an utterance, in which case
// Result holds the settled hypothesis. PartialResult holds the
// in-progress hypothesis, FinalResult flushes whatever audio is still
// buffered and must only be called once, at the end of the stream.
// Payloads are the engine's native JSON: {"partial": ...} or
// {"text": ...}.
type Engine interface {
	AcceptWaveform(pcm []byte) (bool, error)
	PartialResult() []byte
	Result() []byte
	FinalResult() []byte
	Close() error
}

// Model is a loaded recognition model that can open engines. Loading
// is expensive; engines are cheap and one is created per session.
type Model interface {
	NewEngine() (Engine, error)
	Close() error
}

// Update is one decoded hypothesis from a session.
type Update struct {
	Text  string
	Final bool
}

// Session is one continuous recognition stream from start to close.
// Feed never blocks on the engine; Updates is closed when the stream
// ends. Close flushes the final hypothesis, releases the engine and is
// safe to call more than once.
type Session interface {
	Feed(pcm []byte)
	Updates() <-chan Update
	Close() error
}

type resultPayload struct {
	Text    string `json:"text,omitempty"`
	Partial string `json:"partial,omitempty"`
}

// decodeFinal extracts the finalized text from an engine result
// payload. Malformed or marker-less payloads decode to "", which
// callers treat as blank.
func decodeFinal(raw []byte) string {
	var p resultPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	return strings.TrimSpace(p.Text)
}

func decodePartial(raw []byte) string {
	var p resultPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	return strings.TrimSpace(p.Partial)
}
