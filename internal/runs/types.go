package runs

import (
	"errors"
	"time"
)

// Status is the inferred liveness of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusRunning   Status = "running"
)

const (
	ConfigFile  = "config.json"
	MetricsFile = "metrics.json"
	PlotsDir    = "plots"
	SamplesDir  = "samples"

	keyTrainingMetrics   = "training_metrics"
	keyValidationMetrics = "validation_metrics"
	keyTimestamp         = "timestamp"

	localProject = "local"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrInvalidPath   = errors.New("invalid path pattern")
	ErrDuplicatePath = errors.New("duplicate path pattern")
)

// Document is a decoded JSON object as written by the training side.
type Document map[string]any

// Summary is one discovered run directory. It is built fresh on every scan.
type Summary struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Project      string    `json:"project"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	Config       Document  `json:"config"`
	MetricsCount int       `json:"metrics_count"`
	Epochs       int       `json:"epochs"`
}

// Detail is the full view of a single run.
type Detail struct {
	ID      string   `json:"id"`
	Path    string   `json:"path"`
	Project string   `json:"project"`
	Status  Status   `json:"status"`
	Config  Document `json:"config"`
	Metrics Document `json:"metrics"`
	Plots   []string `json:"plots"`
	Samples []string `json:"samples"`
}

// Filter narrows run lookup by id. An empty Project matches any project.
type Filter struct {
	Project string
}

func (f Filter) matches(s Summary, id string) bool {
	if s.ID != id {
		return false
	}
	return f.Project == "" || f.Project == s.Project
}
