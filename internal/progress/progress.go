// Package progress carries percent/message events from long running archive
// operations to whoever is listening. Reporting is fire-and-forget: a Reporter
// never acknowledges, never applies backpressure and must not block the
// producer for long.
package progress

import "sync"

type Event struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

type Reporter interface {
	Report(Event)
}

// Func adapts a plain function to a Reporter.
type Func func(Event)

func (f Func) Report(e Event) {
	if f != nil {
		f(e)
	}
}

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// Nop drops every event.
var Nop Reporter = nopReporter{}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop
	}
	return r
}

type multi []Reporter

func (m multi) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// Multi fans every event out to all non-nil reporters in order.
func Multi(reporters ...Reporter) Reporter {
	out := make(multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return Nop
	}
	return out
}

type monotonic struct {
	mu   sync.Mutex
	last int
	next Reporter
}

// Monotonic clamps percentages into [0,100] and never lets them go backwards,
// so a single operation always yields a non-decreasing stream.
func Monotonic(r Reporter) Reporter {
	return &monotonic{next: OrNop(r)}
}

func (m *monotonic) Report(e Event) {
	m.mu.Lock()
	if e.Percent > 100 {
		e.Percent = 100
	}
	if e.Percent < m.last {
		e.Percent = m.last
	}
	m.last = e.Percent
	m.mu.Unlock()

	m.next.Report(e)
}

// Recorder keeps every event it sees. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}
