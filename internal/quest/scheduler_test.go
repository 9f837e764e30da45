package quest

import (
	"sync"
	"testing"
	"time"
)

func TestManualSchedulerFiresInOrder(t *testing.T) {
	s := NewManualScheduler(testEpoch)

	var fired []string
	record := func(id string) { fired = append(fired, id) }

	s.Schedule("late", testEpoch.Add(3*time.Second), record)
	s.Schedule("early", testEpoch.Add(1*time.Second), record)
	s.Schedule("never", testEpoch.Add(time.Hour), record)
	cancelled := s.Schedule("cancelled", testEpoch.Add(2*time.Second), record)

	if !s.Cancel(cancelled) {
		t.Error("Cancel of live entry = false, want true")
	}
	if s.Cancel(cancelled) {
		t.Error("second Cancel = true, want false")
	}

	s.Advance(5 * time.Second)

	if len(fired) != 2 || fired[0] != "early" || fired[1] != "late" {
		t.Errorf("fired = %v, want [early late]", fired)
	}
	if s.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", s.Pending())
	}
	if !s.Now().Equal(testEpoch.Add(5 * time.Second)) {
		t.Errorf("Now = %v, want epoch + 5s", s.Now())
	}
}

func TestManualSchedulerClockDuringFire(t *testing.T) {
	s := NewManualScheduler(testEpoch)
	var seen time.Time
	s.Schedule("q", testEpoch.Add(time.Second), func(string) { seen = s.Now() })

	s.Advance(time.Minute)

	if !seen.Equal(testEpoch.Add(time.Second)) {
		t.Errorf("clock during fire = %v, want the entry's fire time", seen)
	}
}

func TestManualSchedulerChainedEntries(t *testing.T) {
	s := NewManualScheduler(testEpoch)
	count := 0
	var chain func(string)
	chain = func(id string) {
		count++
		if count < 3 {
			s.Schedule(id, s.Now().Add(time.Second), chain)
		}
	}
	s.Schedule("chain", testEpoch.Add(time.Second), chain)

	s.Advance(10 * time.Second)

	if count != 3 {
		t.Errorf("chain fired %d times, want 3", count)
	}
}

func TestTimerSchedulerFires(t *testing.T) {
	s := NewTimerScheduler(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var got string
	s.Schedule("soon", time.Now().Add(10*time.Millisecond), func(id string) {
		got = id
		wg.Done()
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	if got != "soon" {
		t.Errorf("fired with %q, want soon", got)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d after firing, want 0", s.Pending())
	}
}

func TestTimerSchedulerCancel(t *testing.T) {
	s := NewTimerScheduler(SystemClock{})
	fired := make(chan string, 1)
	tok := s.Schedule("later", time.Now().Add(50*time.Millisecond), func(id string) { fired <- id })

	if s.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", s.Pending())
	}
	if !s.Cancel(tok) {
		t.Fatal("Cancel = false, want true")
	}

	select {
	case id := <-fired:
		t.Errorf("cancelled timer fired for %s", id)
	case <-time.After(150 * time.Millisecond):
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", s.Pending())
	}
}

func TestManagerWithTimerScheduler(t *testing.T) {
	tmpl := killTemplate("sprint", "any", 1)
	tmpl.Duration = 20 * time.Millisecond

	catalog := NewCatalog()
	catalog.Register(tmpl)
	m := NewManager(catalog, Options{})
	defer m.Close()

	if !m.Accept("sprint") {
		t.Fatal("Accept = false, want true")
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.ActiveCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("quest never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if m.LiveTimers() != 0 {
		t.Errorf("LiveTimers = %d after expiry", m.LiveTimers())
	}
}
