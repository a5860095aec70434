package runlog

import "time"

// Timer measures the wall time of a named phase.
type Timer struct {
	name  string
	start time.Time
	now   func() time.Time
}

func StartTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now(), now: time.Now}
}

func (t *Timer) Name() string { return t.name }

func (t *Timer) Elapsed() time.Duration {
	return t.now().Sub(t.start)
}
