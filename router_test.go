package main

import (
	"errors"
	"testing"
	"time"

	"scribe/recognizer"
	"scribe/state"
)

type stubMic struct {
	granted   bool
	requested int
}

func (m *stubMic) Granted() bool { return m.granted }
func (m *stubMic) Request()      { m.requested++ }

type stubSession struct {
	updates chan recognizer.Update
	closes  int
	err     error
}

func newStubSession() *stubSession {
	return &stubSession{updates: make(chan recognizer.Update)}
}

func (s *stubSession) Feed([]byte) {}

func (s *stubSession) Updates() <-chan recognizer.Update { return s.updates }

func (s *stubSession) Close() error {
	s.closes++
	return s.err
}

type routerFixture struct {
	router  *Router
	states  *state.Container
	mic     *stubMic
	sess    *stubSession
	opens   int
	openErr error
	clock   time.Time
	notices []string
}

func newFixture(opts ...func(*RouterConfig)) *routerFixture {
	f := &routerFixture{
		states: state.NewContainer(),
		mic:    &stubMic{granted: true},
		sess:   newStubSession(),
		clock:  time.Unix(1000, 0),
	}
	cfg := RouterConfig{
		States:   f.states,
		Mic:      f.mic,
		Throttle: 2000 * time.Millisecond,
		Now:      func() time.Time { return f.clock },
		Notify:   func(text string) { f.notices = append(f.notices, text) },
		OpenSession: func() (recognizer.Session, error) {
			f.opens++
			if f.openErr != nil {
				return nil, f.openErr
			}
			return f.sess, nil
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.router = NewRouter(cfg)
	return f
}

func (f *routerFixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *routerFixture) startRecording(t *testing.T) {
	t.Helper()
	f.router.ModelReady()
	f.router.StartRecording()
	if got := f.states.Current(); got.Kind != state.Recording {
		t.Fatalf("state after start = %+v, want Recording", got)
	}
}

func TestStartWithoutModelIsError(t *testing.T) {
	f := newFixture()
	f.router.StartRecording()
	got := f.states.Current()
	if got.Kind != state.Error || got.Text != "model not ready" {
		t.Fatalf("state = %+v, want Error(model not ready)", got)
	}
	if f.opens != 0 {
		t.Fatal("session created despite missing model")
	}
}

func TestStartClearsTranscript(t *testing.T) {
	f := newFixture()
	f.startRecording(t)
	f.router.HandleFinal("stale words")
	f.router.StopRecording()

	f.router.StartRecording()
	if got := f.router.Transcript(); got != "" {
		t.Fatalf("transcript after restart = %q, want empty", got)
	}
}

func TestPartialThrottleDiscardsSecondWithinInterval(t *testing.T) {
	f := newFixture()
	f.startRecording(t)

	f.router.HandlePartial("he")
	f.advance(1999 * time.Millisecond)
	f.router.HandlePartial("hello")

	got := f.states.Current()
	if got.Kind != state.PartialResult || got.Text != "he" {
		t.Fatalf("state = %+v, want PartialResult(he)", got)
	}
}

func TestPartialsOutsideIntervalBothAccepted(t *testing.T) {
	f := newFixture()
	f.startRecording(t)

	f.router.HandlePartial("he")
	f.advance(2001 * time.Millisecond)
	f.router.HandlePartial("hello")

	got := f.states.Current()
	if got.Kind != state.PartialResult || got.Text != "hello" {
		t.Fatalf("state = %+v, want PartialResult(hello)", got)
	}
}

func TestBlankPartialIgnoredAndNotThrottleCounted(t *testing.T) {
	f := newFixture()
	f.startRecording(t)

	f.router.HandlePartial("   ")
	f.router.HandlePartial("he")
	got := f.states.Current()
	if got.Kind != state.PartialResult || got.Text != "he" {
		t.Fatalf("state = %+v, want PartialResult(he)", got)
	}
}

func TestPartialsAreNeverPersisted(t *testing.T) {
	f := newFixture()
	f.startRecording(t)
	f.router.HandlePartial("provisional")
	if got := f.router.Transcript(); got != "" {
		t.Fatalf("transcript = %q, want empty after partial", got)
	}
}

func TestFinalAppendsWithSeparator(t *testing.T) {
	f := newFixture()
	f.startRecording(t)

	f.router.HandleFinal("hello world")
	if got := f.router.Transcript(); got != "hello world " {
		t.Fatalf("transcript = %q, want %q", got, "hello world ")
	}
	f.router.HandleFinal("foo")
	if got := f.router.Transcript(); got != "hello world foo " {
		t.Fatalf("transcript = %q, want %q", got, "hello world foo ")
	}
	got := f.states.Current()
	if got.Kind != state.Result || got.Text != "hello world foo " {
		t.Fatalf("state = %+v, want Result with full transcript", got)
	}
}

func TestPartialDisplaysTranscriptPlusPartial(t *testing.T) {
	f := newFixture()
	f.startRecording(t)

	f.router.HandleFinal("hello world")
	f.advance(3 * time.Second)
	f.router.HandlePartial("fo")

	got := f.states.Current()
	if got.Kind != state.PartialResult || got.Text != "hello world fo" {
		t.Fatalf("state = %+v, want PartialResult(hello world fo)", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	f := newFixture()
	f.startRecording(t)

	f.router.StopRecording()
	f.router.StopRecording()
	f.router.StopRecording()

	if f.sess.closes != 1 {
		t.Fatalf("session closed %d times, want 1", f.sess.closes)
	}
	if got := f.states.Current(); got.Kind != state.Ready {
		t.Fatalf("state = %+v, want Ready", got)
	}
}

func TestStopWithNoSessionIsSafe(t *testing.T) {
	f := newFixture()
	f.router.ModelReady()
	f.router.StopRecording()
	if got := f.states.Current(); got.Kind != state.Ready {
		t.Fatalf("state = %+v, want Ready", got)
	}
}

func TestContinuousCaptureKeepsRecordingAfterFinal(t *testing.T) {
	f := newFixture()
	f.startRecording(t)
	f.router.HandleFinal("hello")
	if !f.router.Recording() {
		t.Fatal("session ended after final in continuous mode")
	}
}

func TestStopOnFinalPolicyReturnsToReady(t *testing.T) {
	f := newFixture(func(cfg *RouterConfig) { cfg.StopOnFinal = true })
	f.startRecording(t)
	f.router.HandleFinal("hello")

	if f.router.Recording() {
		t.Fatal("session still active with stop_on_final")
	}
	if got := f.states.Current(); got.Kind != state.Ready {
		t.Fatalf("state = %+v, want Ready", got)
	}
	if got := f.router.Transcript(); got != "hello " {
		t.Fatalf("transcript = %q, want %q", got, "hello ")
	}
}

func TestErrorStateDisablesStart(t *testing.T) {
	f := newFixture()
	f.startRecording(t)
	f.router.HandleError(errors.New("decoder exploded"))

	f.router.StartRecording()
	if got := f.states.Current(); got.Kind != state.Error {
		t.Fatalf("state = %+v, want Error to stay terminal", got)
	}
	if f.opens != 1 {
		t.Fatalf("sessions opened = %d, want no restart from Error", f.opens)
	}
}

func TestSessionOpenFailureIsError(t *testing.T) {
	f := newFixture()
	f.openErr = errors.New("device busy")
	f.router.ModelReady()
	f.router.StartRecording()

	got := f.states.Current()
	if got.Kind != state.Error || got.Text != "device busy" {
		t.Fatalf("state = %+v, want Error(device busy)", got)
	}
}

func TestRecognizerErrorSurfacedVerbatim(t *testing.T) {
	f := newFixture()
	f.startRecording(t)
	f.router.HandleError(errors.New("decoder exploded"))

	got := f.states.Current()
	if got.Kind != state.Error || got.Text != "decoder exploded" {
		t.Fatalf("state = %+v, want Error(decoder exploded)", got)
	}
	if f.sess.closes != 1 {
		t.Fatal("session not released after error")
	}
}

func TestRecognizerErrorFallbackMessage(t *testing.T) {
	f := newFixture()
	f.startRecording(t)
	f.router.HandleError(nil)
	got := f.states.Current()
	if got.Kind != state.Error || got.Text != fallbackErrorMsg {
		t.Fatalf("state = %+v, want Error(%s)", got, fallbackErrorMsg)
	}
}

func TestTimeoutBehavesLikeStop(t *testing.T) {
	f := newFixture()
	f.startRecording(t)
	f.router.HandleTimeout()

	if got := f.states.Current(); got.Kind != state.Ready {
		t.Fatalf("state = %+v, want Ready", got)
	}
	if f.sess.closes != 1 {
		t.Fatal("session not released on timeout")
	}
}

func TestMicRequestDefersStartUntilGrant(t *testing.T) {
	f := newFixture()
	f.mic.granted = false
	f.router.ModelReady()
	f.router.StartRecording()

	if f.mic.requested != 1 {
		t.Fatalf("mic requested %d times, want 1", f.mic.requested)
	}
	if f.opens != 0 {
		t.Fatal("session opened before grant")
	}
	if got := f.states.Current(); got.Kind != state.Ready {
		t.Fatalf("state = %+v, want Ready while awaiting grant", got)
	}

	f.mic.granted = true
	f.router.MicGranted()
	if got := f.states.Current(); got.Kind != state.Recording {
		t.Fatalf("state = %+v, want Recording after grant", got)
	}
}

func TestMicDenialIsTransientNotice(t *testing.T) {
	f := newFixture()
	f.mic.granted = false
	f.router.ModelReady()
	f.router.StartRecording()
	f.router.MicDenied()

	if got := f.states.Current(); got.Kind != state.Ready {
		t.Fatalf("state = %+v, want Ready after denial", got)
	}
	if len(f.notices) != 1 {
		t.Fatalf("notices = %v, want one denial notice", f.notices)
	}
	if f.opens != 0 {
		t.Fatal("session opened despite denial")
	}
}

func TestSessionEndWithErrorBecomesErrorState(t *testing.T) {
	f := newFixture()
	f.sess.err = errors.New("stream reset")
	f.startRecording(t)
	f.router.HandleSessionEnd()

	got := f.states.Current()
	if got.Kind != state.Error || got.Text != "stream reset" {
		t.Fatalf("state = %+v, want Error(stream reset)", got)
	}
}

func TestSessionEndCleanBecomesReady(t *testing.T) {
	f := newFixture()
	f.startRecording(t)
	f.router.HandleSessionEnd()
	if got := f.states.Current(); got.Kind != state.Ready {
		t.Fatalf("state = %+v, want Ready", got)
	}
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture()
	ch, cancel := f.states.Subscribe()
	defer cancel()

	f.router.ModelReady()
	f.router.StartRecording()
	if got := f.router.Transcript(); got != "" {
		t.Fatalf("transcript at session start = %q, want empty", got)
	}
	f.router.HandlePartial("he")
	f.router.HandleFinal("hello")
	if got := f.router.Transcript(); got != "hello " {
		t.Fatalf("transcript = %q, want %q", got, "hello ")
	}
	f.router.StopRecording()

	want := []state.State{
		{Kind: state.Loading},
		{Kind: state.Ready},
		{Kind: state.Recording},
		{Kind: state.PartialResult, Text: "he"},
		{Kind: state.Result, Text: "hello "},
		{Kind: state.Ready},
	}
	for i, w := range want {
		got := <-ch
		if got != w {
			t.Fatalf("observed state %d = %+v, want %+v", i, got, w)
		}
	}
}
