package state

import "testing"

func TestInitialStateIsLoading(t *testing.T) {
	c := NewContainer()
	if got := c.Current(); got.Kind != Loading || got.Text != "" {
		t.Fatalf("Current() = %+v, want Loading", got)
	}
}

func TestSettersReplaceStateInFull(t *testing.T) {
	c := NewContainer()
	if err := c.SetResult("hello"); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	c.SetRecording()
	if got := c.Current(); got.Kind != Recording || got.Text != "" {
		t.Fatalf("Current() = %+v, want Recording with empty text", got)
	}
}

func TestSubscribeStartsWithCurrent(t *testing.T) {
	c := NewContainer()
	c.SetReady()
	ch, cancel := c.Subscribe()
	defer cancel()
	if got := <-ch; got.Kind != Ready {
		t.Fatalf("first value = %+v, want Ready", got)
	}
}

func TestObserveYieldsSequenceOfStatesSet(t *testing.T) {
	c := NewContainer()
	ch, cancel := c.Subscribe()
	defer cancel()
	<-ch // initial Loading

	c.SetReady()
	c.SetRecording()
	if err := c.SetPartialResult("he"); err != nil {
		t.Fatalf("SetPartialResult: %v", err)
	}
	if err := c.SetResult("hello "); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	c.SetReady()

	want := []State{
		{Kind: Ready},
		{Kind: Recording},
		{Kind: PartialResult, Text: "he"},
		{Kind: Result, Text: "hello "},
		{Kind: Ready},
	}
	for i, w := range want {
		got := <-ch
		if got != w {
			t.Fatalf("value %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestInvalidPayloadLeavesStateUnchanged(t *testing.T) {
	c := NewContainer()
	c.SetReady()

	bad := string([]byte{0xff, 0xfe, 0xfd})
	for name, fn := range map[string]func(string) error{
		"SetPartialResult": c.SetPartialResult,
		"SetResult":        c.SetResult,
		"SetError":         c.SetError,
	} {
		if err := fn(bad); err != ErrInvalidInput {
			t.Errorf("%s(invalid) = %v, want ErrInvalidInput", name, err)
		}
	}
	if got := c.Current(); got.Kind != Ready {
		t.Fatalf("state changed to %+v after rejected input", got)
	}
}

func TestEmptyPayloadIsPermitted(t *testing.T) {
	c := NewContainer()
	if err := c.SetPartialResult(""); err != nil {
		t.Fatalf("SetPartialResult(\"\") = %v", err)
	}
	if got := c.Current(); got.Kind != PartialResult || got.Text != "" {
		t.Fatalf("Current() = %+v, want empty PartialResult", got)
	}
}

func TestIndependentSubscribers(t *testing.T) {
	c := NewContainer()
	a, cancelA := c.Subscribe()
	b, cancelB := c.Subscribe()
	defer cancelA()
	defer cancelB()
	<-a
	<-b

	c.SetRecording()
	if got := <-a; got.Kind != Recording {
		t.Fatalf("subscriber a got %+v", got)
	}
	if got := <-b; got.Kind != Recording {
		t.Fatalf("subscriber b got %+v", got)
	}
}

func TestCancelClosesSubscription(t *testing.T) {
	c := NewContainer()
	ch, cancel := c.Subscribe()
	<-ch
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	// Setting after cancel must not panic.
	c.SetReady()
}

func TestSlowSubscriberLosesOldestNotNewest(t *testing.T) {
	c := NewContainer()
	ch, cancel := c.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+8; i++ {
		c.SetRecording()
	}
	c.SetReady()

	var last State
	for {
		select {
		case s := <-ch:
			last = s
			continue
		default:
		}
		break
	}
	if last.Kind != Ready {
		t.Fatalf("last drained value = %+v, want Ready", last)
	}
}

func TestNewestValueSurvivesConcurrentDrain(t *testing.T) {
	c := NewContainer()
	ch, cancel := c.Subscribe()

	var last State
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range ch {
			last = s
		}
	}()

	for i := 0; i < 5000; i++ {
		c.SetRecording()
		c.SetReady()
	}
	if err := c.SetResult("final words"); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	cancel()
	<-done

	if last.Kind != Result || last.Text != "final words" {
		t.Fatalf("last observed = %+v, want the final Result", last)
	}
}
