package progress

import "sync"

// Async decouples a producer from a slow consumer. Report only appends to an
// in-memory queue; a single goroutine delivers queued events to the wrapped
// reporter in order.
type Async struct {
	next    Reporter
	mu      sync.Mutex
	queue   []Event
	closed  bool
	wake    chan struct{}
	drained chan struct{}
}

func NewAsync(next Reporter) *Async {
	a := &Async{
		next:    OrNop(next),
		wake:    make(chan struct{}, 1),
		drained: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Report(e Event) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.queue = append(a.queue, e)
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting events and waits until everything already queued has
// been delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.drained
		return
	}
	a.closed = true
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	<-a.drained
}

func (a *Async) run() {
	defer close(a.drained)

	for range a.wake {
		for {
			a.mu.Lock()
			batch := a.queue
			a.queue = nil
			closed := a.closed
			a.mu.Unlock()

			if len(batch) == 0 {
				if closed {
					return
				}
				break
			}

			for _, e := range batch {
				a.deliver(e)
			}
		}
	}
}

func (a *Async) deliver(e Event) {
	defer func() { _ = recover() }()
	a.next.Report(e)
}
