package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan ModeChangedEvent, 1)

	unsub := bus.Subscribe(func(e ModeChangedEvent) {
		received <- e
	})
	defer unsub()

	event := ModeChangedEvent{
		Previous:  "States",
		Current:   "PixelDrawer",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.Current != event.Current {
		t.Errorf("Expected current %s, got %s", event.Current, got.Current)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan StateChangedEvent, 1)
	received2 := make(chan StateChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e StateChangedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e StateChangedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(StateChangedEvent{Handler: "States", Current: "blink"})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan SchedulerFaultEvent, 1)

	unsub := bus.Subscribe(func(e SchedulerFaultEvent) {
		received <- e
	})

	bus.Publish(SchedulerFaultEvent{Loop: "States"})
	<-received

	unsub()

	bus.Publish(SchedulerFaultEvent{Loop: "States"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	modeReceived := make(chan bool, 1)
	overflowReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ ModeChangedEvent) {
		modeReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ FragmentOverflowEvent) {
		overflowReceived <- true
	})
	defer unsub2()

	bus.Publish(ModeChangedEvent{Current: "States"})
	<-modeReceived

	select {
	case <-overflowReceived:
		t.Fatal("Overflow subscriber should NOT have received ModeChangedEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(FragmentOverflowEvent{Mode: "StreamDrawer", Received: 10, Expected: 9})
	<-overflowReceived

	select {
	case <-modeReceived:
		t.Fatal("Mode subscriber should NOT have received FragmentOverflowEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ FrameCommittedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(FrameCommittedEvent{
					Mode:      "PixelDrawer",
					Timestamp: Now(),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"ModeChanged", ModeChangedEvent{Current: "States"}},
		{"StateChanged", StateChangedEvent{Current: "blink"}},
		{"Transition", TransitionEvent{Phase: PhaseStarted}},
		{"FrameCommitted", FrameCommittedEvent{Mode: "PixelDrawer"}},
		{"FragmentOverflow", FragmentOverflowEvent{Mode: "StreamDrawer"}},
		{"SchedulerFault", SchedulerFaultEvent{Loop: "States"}},
		{"LogEntry", LogEntryEvent{Message: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case ModeChangedEvent:
				unsub = bus.Subscribe(func(e ModeChangedEvent) { received <- e })
			case StateChangedEvent:
				unsub = bus.Subscribe(func(e StateChangedEvent) { received <- e })
			case TransitionEvent:
				unsub = bus.Subscribe(func(e TransitionEvent) { received <- e })
			case FrameCommittedEvent:
				unsub = bus.Subscribe(func(e FrameCommittedEvent) { received <- e })
			case FragmentOverflowEvent:
				unsub = bus.Subscribe(func(e FragmentOverflowEvent) { received <- e })
			case SchedulerFaultEvent:
				unsub = bus.Subscribe(func(e SchedulerFaultEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestNilBusPublishIsNoop(_ *testing.T) {
	var bus *Bus
	bus.Publish(ModeChangedEvent{Current: "States"})
}

func TestFrameCommittedOmitsData(t *testing.T) {
	data, err := json.Marshal(FrameCommittedEvent{Mode: "PixelDrawer", Data: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
		t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
	}
	if _, ok := result["data"]; ok {
		t.Error("frame data should not be serialized")
	}
	if result["mode"] != "PixelDrawer" {
		t.Errorf("mode = %v", result["mode"])
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[TransitionEvent](bus, ch)
	defer unsub()

	bus.Publish(TransitionEvent{Via: "idle-to-happy", Phase: PhaseStarted})

	received := <-ch
	ev, ok := received.(TransitionEvent)
	if !ok {
		t.Fatalf("Expected TransitionEvent, got %T", received)
	}
	if ev.Via != "idle-to-happy" {
		t.Errorf("Expected via idle-to-happy, got %s", ev.Via)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[ModeChangedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(ModeChangedEvent{Current: "States"})
		done <- true
	}()

	<-done
}
