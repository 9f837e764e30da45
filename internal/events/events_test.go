package events

import (
	"errors"
	"testing"
)

func TestBusDeliversByNameAndToAll(t *testing.T) {
	bus := NewBus()
	var named, all []string

	bus.Subscribe("quest:accepted", func(e Event) error {
		named = append(named, e.QuestID)
		return nil
	})
	bus.SubscribeAll(func(e Event) error {
		all = append(all, e.Name)
		return nil
	})

	if err := bus.Publish(Event{Name: "quest:accepted", QuestID: "q1"}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if err := bus.Publish(Event{Name: "quest:failed", QuestID: "q1"}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if len(named) != 1 || named[0] != "q1" {
		t.Errorf("named handler got %v, want [q1]", named)
	}
	if len(all) != 2 {
		t.Errorf("catch-all handler got %d events, want 2", len(all))
	}
}

func TestBusJoinsHandlerErrors(t *testing.T) {
	bus := NewBus()
	errGold := errors.New("wallet offline")
	ran := 0

	bus.Subscribe("reward:gold", func(Event) error { ran++; return errGold })
	bus.Subscribe("reward:gold", func(Event) error { ran++; return nil })
	bus.Subscribe("reward:gold", func(Event) error { ran++; panic("boom") })

	err := bus.Publish(Event{Name: "reward:gold"})
	if err == nil {
		t.Fatal("expected an error from failing handlers")
	}
	if !errors.Is(err, errGold) {
		t.Errorf("joined error should wrap handler error, got %v", err)
	}
	if ran != 3 {
		t.Errorf("all handlers should run, ran %d", ran)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Publish(Event{Name: "a"})
	r.Publish(Event{Name: "b"})
	r.Publish(Event{Name: "a"})

	if got := len(r.Events()); got != 3 {
		t.Errorf("Events() len = %d, want 3", got)
	}
	if got := len(r.Named("a")); got != 2 {
		t.Errorf("Named(a) len = %d, want 2", got)
	}
	r.Reset()
	if got := len(r.Events()); got != 0 {
		t.Errorf("after Reset len = %d, want 0", got)
	}
}
