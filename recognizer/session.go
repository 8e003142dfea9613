package recognizer

import "sync"

const (
	feedBuffer   = 128
	updateBuffer = 64
)

type engineSession struct {
	eng Engine

	audioCh  chan []byte
	updates  chan Update
	done     chan struct{}
	pumpDone chan struct{}

	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// NewSession starts a recognition stream on eng. The session takes
// ownership of the engine and closes it when the stream ends.
func NewSession(eng Engine) Session {
	s := &engineSession{
		eng:      eng,
		audioCh:  make(chan []byte, feedBuffer),
		updates:  make(chan Update, updateBuffer),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *engineSession) Feed(pcm []byte) {
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	select {
	case s.audioCh <- buf:
	case <-s.done:
	}
}

func (s *engineSession) Updates() <-chan Update { return s.updates }

// Close stops the stream, flushes the final hypothesis into Updates
// and returns the first error the engine reported, if any.
func (s *engineSession) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.pumpDone
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *engineSession) pump() {
	defer close(s.pumpDone)
	defer close(s.updates)
	defer s.eng.Close()

	for {
		select {
		case <-s.done:
			s.drainAndFlush()
			return
		case pcm := <-s.audioCh:
			if !s.accept(pcm) {
				return
			}
		}
	}
}

// accept pushes one chunk through the engine and emits the decoded
// hypothesis. Returns false when the engine failed.
func (s *engineSession) accept(pcm []byte) bool {
	final, err := s.eng.AcceptWaveform(pcm)
	if err != nil {
		s.setErr(err)
		return false
	}
	if final {
		s.emitFinal(decodeFinal(s.eng.Result()))
	} else {
		s.emitPartial(decodePartial(s.eng.PartialResult()))
	}
	return true
}

func (s *engineSession) drainAndFlush() {
	for {
		select {
		case pcm := <-s.audioCh:
			if !s.accept(pcm) {
				return
			}
		default:
			s.emitFinal(decodeFinal(s.eng.FinalResult()))
			return
		}
	}
}

// Finals are never dropped; partials are provisional and may be when
// the consumer lags.
func (s *engineSession) emitFinal(text string) {
	if text == "" {
		return
	}
	s.updates <- Update{Text: text, Final: true}
}

func (s *engineSession) emitPartial(text string) {
	if text == "" {
		return
	}
	select {
	case s.updates <- Update{Text: text}:
	default:
	}
}

func (s *engineSession) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}
