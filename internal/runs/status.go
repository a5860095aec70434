package runs

import (
	"encoding/json"
	"time"
)

// DefaultStatusWindow is how recent the last validation entry must be for a run to count as running.
const DefaultStatusWindow = 300 * time.Second

// StatusInferrer decides running vs completed from the last validation timestamp.
// It cannot tell a stalled run from a finished one.
type StatusInferrer struct {
	Window time.Duration
	Now    func() time.Time
}

func (s StatusInferrer) Infer(metrics Document) Status {
	seq := metrics.sequence(keyValidationMetrics)
	if len(seq) == 0 {
		return StatusCompleted
	}
	last, _ := seq[len(seq)-1].(map[string]any)
	ts := unixSeconds(last[keyTimestamp])

	window := s.Window
	if window <= 0 {
		window = DefaultStatusWindow
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	elapsed := float64(now().UnixNano())/float64(time.Second) - ts
	if elapsed < window.Seconds() {
		return StatusRunning
	}
	return StatusCompleted
}

// unixSeconds reads a JSON number as epoch seconds; anything else is 0.
func unixSeconds(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
