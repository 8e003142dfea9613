package main

import (
	"strings"
	"time"

	"scribe/log"
	"scribe/recognizer"
	"scribe/state"
)

const fallbackErrorMsg = "recognizer error"

// MicAccess is the capture-permission boundary. Request is
// asynchronous; its outcome comes back into the event loop as a mic
// event, never as a direct call into the router.
type MicAccess interface {
	Granted() bool
	Request()
}

// Router turns recognizer callbacks and the user's record/stop toggle
// into state container mutations. It owns the active session handle,
// the transcript buffer and the partial-update throttle. Every method
// must be called from the event-loop goroutine; the router itself is
// not safe for concurrent use.
type Router struct {
	states *state.Container
	mic    MicAccess
	open   func() (recognizer.Session, error)
	notify func(text string)
	now    func() time.Time

	throttle    time.Duration
	stopOnFinal bool

	modelReady  bool
	startWanted bool
	sess        recognizer.Session
	transcript  strings.Builder
	lastPartial time.Time
}

type RouterConfig struct {
	States      *state.Container
	Mic         MicAccess
	OpenSession func() (recognizer.Session, error)
	Notify      func(text string)
	Throttle    time.Duration
	StopOnFinal bool
	Now         func() time.Time
}

func NewRouter(cfg RouterConfig) *Router {
	r := &Router{
		states:      cfg.States,
		mic:         cfg.Mic,
		open:        cfg.OpenSession,
		notify:      cfg.Notify,
		now:         cfg.Now,
		throttle:    cfg.Throttle,
		stopOnFinal: cfg.StopOnFinal,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.notify == nil {
		r.notify = func(string) {}
	}
	return r
}

func (r *Router) Recording() bool { return r.sess != nil }

// Transcript returns the finalized text accumulated this session.
func (r *Router) Transcript() string { return r.transcript.String() }

func (r *Router) ModelReady() {
	r.modelReady = true
	r.states.SetReady()
	log.Info("model_ready")
}

func (r *Router) ModelFailed(err error) {
	log.Errorf("model preparation failed: %v", err)
	r.states.SetError("model preparation failed: " + err.Error())
}

// Toggle is the momentary record/stop control.
func (r *Router) Toggle() {
	if r.sess != nil {
		r.StopRecording()
	} else {
		r.StartRecording()
	}
}

func (r *Router) StartRecording() {
	if r.sess != nil {
		return
	}
	if r.states.Current().Kind == state.Error {
		// Terminal until a fresh model preparation brings back Ready.
		return
	}
	if !r.modelReady {
		r.states.SetError("model not ready")
		return
	}
	if !r.mic.Granted() {
		// Defer the start until the grant comes back.
		r.startWanted = true
		r.mic.Request()
		return
	}
	r.begin()
}

func (r *Router) MicGranted() {
	if r.startWanted {
		r.startWanted = false
		r.begin()
	}
}

func (r *Router) MicDenied() {
	r.startWanted = false
	log.Warn("microphone access denied")
	r.notify("microphone access denied")
}

func (r *Router) begin() {
	r.transcript.Reset()
	r.lastPartial = time.Time{}
	sess, err := r.open()
	if err != nil {
		log.Errorf("session start failed: %v", err)
		r.states.SetError(err.Error())
		return
	}
	r.sess = sess
	r.states.SetRecording()
	log.Info("session_start")
}

// StopRecording is idempotent and safe with no active session.
func (r *Router) StopRecording() {
	r.release()
	r.states.SetReady()
}

// HandlePartial routes an in-progress hypothesis. Partials arriving
// inside the throttle interval are discarded outright and are never
// persisted to the transcript.
func (r *Router) HandlePartial(text string) {
	if r.sess == nil {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if !r.lastPartial.IsZero() && r.now().Sub(r.lastPartial) < r.throttle {
		return
	}
	r.lastPartial = r.now()
	r.states.SetPartialResult(r.transcript.String() + text)
}

// HandleFinal appends a settled hypothesis to the transcript.
func (r *Router) HandleFinal(text string) {
	if r.sess == nil {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	r.transcript.WriteString(text)
	r.transcript.WriteString(" ")
	r.states.SetResult(r.transcript.String())
	log.TranscriptionText(text)
	if r.stopOnFinal {
		r.StopRecording()
	}
}

// HandleError surfaces a recognizer failure verbatim and abandons the
// session. Error is terminal until the model is prepared again.
func (r *Router) HandleError(err error) {
	msg := fallbackErrorMsg
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	r.release()
	log.Errorf("recognizer error: %s", msg)
	r.states.SetError(msg)
}

// HandleTimeout is the recognizer's end-of-speech timeout; it behaves
// exactly like a user-initiated stop.
func (r *Router) HandleTimeout() {
	if r.sess == nil {
		return
	}
	log.Info("session_timeout")
	r.StopRecording()
}

// HandleSessionEnd runs when the session's update stream closed on its
// own, without a stop. A clean end is treated like a timeout; a dirty
// one like a recognizer error.
func (r *Router) HandleSessionEnd() {
	if r.sess == nil {
		return
	}
	sess := r.sess
	r.sess = nil
	if err := sess.Close(); err != nil {
		log.Errorf("recognizer error: %v", err)
		r.states.SetError(err.Error())
		return
	}
	r.states.SetReady()
}

// Close releases any active session. Called on teardown.
func (r *Router) Close() {
	r.release()
}

func (r *Router) release() {
	if r.sess == nil {
		return
	}
	if err := r.sess.Close(); err != nil {
		log.Warnf("session close: %v", err)
	}
	r.sess = nil
	log.Info("session_end")
}
