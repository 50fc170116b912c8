package progress

import "time"

// Simulator produces a time-based approximation of progress for work that
// exposes no real byte or entry counts. The percentage climbs by Step every
// Interval and stops at Cap, which is always below 100: only the caller may
// report completion.
type Simulator struct {
	Interval time.Duration
	Step     int
	Cap      int
}

func (s Simulator) normalized() Simulator {
	if s.Step <= 0 {
		s.Step = 1
	}
	if s.Cap >= 100 {
		s.Cap = 99
	}
	return s
}

// Start begins ticking from the given percentage. The returned stop function
// blocks until the ticker goroutine has exited, so no simulated event can be
// reported after stop returns.
func (s Simulator) Start(r Reporter, from int, message string) (stop func()) {
	s = s.normalized()
	if s.Interval <= 0 || from >= s.Cap {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		percent := from
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				percent = min(percent+s.Step, s.Cap)
				r.Report(Event{Percent: percent, Message: message})
				if percent >= s.Cap {
					<-done
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}
