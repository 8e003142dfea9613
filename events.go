package main

import "scribe/recognizer"

// loopEvent is anything the single event-loop goroutine consumes. All
// router mutations happen there, so producers (TUI keys, hotkey,
// capture callbacks, model prep, session pumps) only ever post events.
type loopEvent interface{ isLoopEvent() }

type toggleEvent struct{}

type quitEvent struct{}

// modelEvent reports the outcome of the one-time model preparation.
type modelEvent struct{ err error }

// micEvent carries the asynchronous capture-permission probe outcome.
type micEvent struct{ granted bool }

// Session-scoped events carry the generation of the session that
// produced them; the loop drops events from sessions it already closed.
type sessionUpdateEvent struct {
	gen    uint64
	update recognizer.Update
}

type sessionEndedEvent struct{ gen uint64 }

type silenceWarnEvent struct {
	gen  uint64
	warn bool // false clears the warning
}

type silenceTimeoutEvent struct{ gen uint64 }

func (toggleEvent) isLoopEvent()         {}
func (quitEvent) isLoopEvent()           {}
func (modelEvent) isLoopEvent()          {}
func (micEvent) isLoopEvent()            {}
func (sessionUpdateEvent) isLoopEvent()  {}
func (sessionEndedEvent) isLoopEvent()   {}
func (silenceWarnEvent) isLoopEvent()    {}
func (silenceTimeoutEvent) isLoopEvent() {}
