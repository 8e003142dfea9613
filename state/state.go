// Package state holds the single authoritative UI state of the
// application and fans it out to any number of observers.
package state

import (
	"errors"
	"sync"
	"unicode/utf8"
)

// Kind identifies which variant of the UI state is current.
type Kind int

const (
	Loading Kind = iota
	Ready
	Recording
	PartialResult
	Result
	Error
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Recording:
		return "recording"
	case PartialResult:
		return "partial"
	case Result:
		return "result"
	case Error:
		return "error"
	}
	return "unknown"
}

// State is a single value of the container. Text carries the
// transcription for PartialResult/Result and the message for Error;
// it is empty for the other kinds.
type State struct {
	Kind Kind
	Text string
}

// ErrInvalidInput is returned by the payload setters when the text is
// not displayable. Empty strings are permitted.
var ErrInvalidInput = errors.New("state: invalid text payload")

// subscriberBuffer bounds how far a subscriber may fall behind before
// it starts losing the oldest pending values.
const subscriberBuffer = 64

// Container owns the current State. Every setter replaces the value in
// full; the container enforces no transition rules — ordering is the
// caller's responsibility. All methods are safe for concurrent use,
// but an individual subscription channel is not.
type Container struct {
	mu      sync.Mutex
	current State
	subs    map[int]chan State
	nextID  int
}

// NewContainer returns a container in the Loading state.
func NewContainer() *Container {
	return &Container{
		current: State{Kind: Loading},
		subs:    make(map[int]chan State),
	}
}

// Current returns the state at this instant.
func (c *Container) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Container) SetLoading()   { c.set(State{Kind: Loading}) }
func (c *Container) SetReady()     { c.set(State{Kind: Ready}) }
func (c *Container) SetRecording() { c.set(State{Kind: Recording}) }

func (c *Container) SetPartialResult(text string) error {
	return c.setText(PartialResult, text)
}

func (c *Container) SetResult(text string) error {
	return c.setText(Result, text)
}

func (c *Container) SetError(message string) error {
	return c.setText(Error, message)
}

func (c *Container) setText(k Kind, text string) error {
	if !utf8.ValidString(text) {
		return ErrInvalidInput
	}
	c.set(State{Kind: k, Text: text})
	return nil
}

func (c *Container) set(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = s
	for _, ch := range c.subs {
		deliver(ch, s)
	}
}

// deliver never gives up on the newest value: when the subscriber's
// buffer is full, the oldest pending value is evicted and the send
// retried. The container is the only sender and the subscriber only
// drains, so a retry always lands.
func deliver(ch chan State, s State) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe returns a live stream of state values starting with the
// current one, and a cancel function that closes the stream. Each call
// produces an independent subscription.
func (c *Container) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	ch := make(chan State, subscriberBuffer)
	ch <- c.current
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
