package progress

import (
	"sync"
	"testing"
	"time"
)

func TestMonotonicClampsAndNeverDecreases(t *testing.T) {
	rec := &Recorder{}
	r := Monotonic(rec)

	for _, p := range []int{0, 30, 10, 120, 50} {
		r.Report(Event{Percent: p})
	}

	want := []int{0, 30, 30, 100, 100}
	got := rec.Events()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, e := range got {
		if e.Percent != want[i] {
			t.Errorf("event %d: expected %d, got %d", i, want[i], e.Percent)
		}
	}
}

func TestMultiSkipsNil(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi(a, nil, b).Report(Event{Percent: 5, Message: "x"})

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("expected both recorders to receive the event")
	}

	Multi(nil, nil).Report(Event{})
}

func TestAsyncPreservesOrderAndDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var got []int

	slow := Func(func(e Event) {
		<-release
		mu.Lock()
		got = append(got, e.Percent)
		mu.Unlock()
	})

	async := NewAsync(slow)

	start := time.Now()
	for i := 0; i <= 100; i++ {
		async.Report(Event{Percent: i})
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Report blocked on a slow consumer for %v", elapsed)
	}

	close(release)
	async.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 101 {
		t.Fatalf("expected 101 delivered events, got %d", len(got))
	}
	for i, p := range got {
		if p != i {
			t.Fatalf("event %d delivered out of order: %d", i, p)
		}
	}
}

func TestAsyncSurvivesPanickingConsumer(t *testing.T) {
	async := NewAsync(Func(func(Event) { panic("window gone") }))
	async.Report(Event{Percent: 1})
	async.Close()
	async.Report(Event{Percent: 2})
	async.Close()
}

func TestSimulatorCapsBelowHundred(t *testing.T) {
	rec := &Recorder{}
	sim := Simulator{Interval: time.Millisecond, Step: 30, Cap: 100}

	stop := sim.Start(rec, 0, "working")
	time.Sleep(50 * time.Millisecond)
	stop()

	events := rec.Events()
	if len(events) == 0 {
		t.Fatal("expected simulated events")
	}
	prev := 0
	for _, e := range events {
		if e.Percent >= 100 {
			t.Fatalf("simulated progress reached %d", e.Percent)
		}
		if e.Percent < prev {
			t.Fatalf("simulated progress decreased from %d to %d", prev, e.Percent)
		}
		prev = e.Percent
	}
	if prev != 99 {
		t.Errorf("expected simulator to settle at the cap (99), got %d", prev)
	}

	count := len(events)
	time.Sleep(10 * time.Millisecond)
	if len(rec.Events()) != count {
		t.Error("simulator reported after stop returned")
	}
}

func TestSimulatorDisabled(t *testing.T) {
	rec := &Recorder{}
	stop := Simulator{}.Start(rec, 0, "")
	stop()
	if len(rec.Events()) != 0 {
		t.Errorf("zero interval should not report, got %d events", len(rec.Events()))
	}
}
