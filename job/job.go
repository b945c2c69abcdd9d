package job

import (
	"context"
	"time"
)

type State string

const (
	StateQueued       State = "queued"
	StateConverting   State = "converting"
	StateTranscribing State = "transcribing"
	StateSummarizing  State = "summarizing"
	StateExporting    State = "exporting"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// stateOrder defines the forward-only walk through the pipeline.
var stateOrder = map[State]int{
	StateQueued:       0,
	StateConverting:   1,
	StateTranscribing: 2,
	StateSummarizing:  3,
	StateExporting:    4,
	StateCompleted:    5,
	StateFailed:       6,
}

// stateProgress maps each state to its fixed progress milestone.
var stateProgress = map[State]int{
	StateQueued:       0,
	StateConverting:   20,
	StateTranscribing: 40,
	StateSummarizing:  60,
	StateExporting:    80,
	StateCompleted:    100,
}

// stateStep is the human-readable description shown to polling clients.
var stateStep = map[State]string{
	StateQueued:       "Waiting in queue",
	StateConverting:   "Converting audio",
	StateTranscribing: "Transcribing audio",
	StateSummarizing:  "Generating minutes",
	StateExporting:    "Exporting files",
	StateCompleted:    "Complete",
	StateFailed:       "Error",
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Step returns the client-facing description of the state.
func (s State) Step() string {
	return stateStep[s]
}

// Result holds the output of a completed job.
type Result struct {
	Summary        string            `json:"summary"`
	Decisions      []string          `json:"decisions"`
	ActionItems    []string          `json:"actionItems"`
	Deadlines      []string          `json:"deadlines"`
	FullTranscript string            `json:"fullTranscript"`
	ExportedFiles  map[string]string `json:"exportedFiles"` // format -> file path
	ProcessingTime string            `json:"processingTime"`
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Decisions = append([]string(nil), r.Decisions...)
	c.ActionItems = append([]string(nil), r.ActionItems...)
	c.Deadlines = append([]string(nil), r.Deadlines...)
	if r.ExportedFiles != nil {
		c.ExportedFiles = make(map[string]string, len(r.ExportedFiles))
		for k, v := range r.ExportedFiles {
			c.ExportedFiles[k] = v
		}
	}
	return &c
}

// Job tracks one uploaded recording through the pipeline.
type Job struct {
	ID             string    `json:"id"`
	State          State     `json:"state"`
	Progress       int       `json:"progress"`
	SourceFilename string    `json:"sourceFilename"`
	UploadPath     string    `json:"-"` // staged copy of the upload
	Error          string    `json:"error,omitempty"`
	ErrorKind      string    `json:"errorKind,omitempty"`
	Result         *Result   `json:"result,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
	CompletedAt    time.Time `json:"completedAt,omitempty"`

	cancelFunc context.CancelFunc
}

// Advance moves the job forward to a later pipeline state. A regression or a
// transition out of a terminal state is ignored.
func (j *Job) Advance(next State) bool {
	if j.State.Terminal() || stateOrder[next] <= stateOrder[j.State] {
		return false
	}
	j.State = next
	if p, ok := stateProgress[next]; ok && p > j.Progress {
		j.Progress = p
	}
	j.UpdatedAt = time.Now()
	return true
}

// Fail moves the job to the failed terminal state with the given cause.
func (j *Job) Fail(kind, message string) bool {
	if j.State.Terminal() {
		return false
	}
	j.State = StateFailed
	j.ErrorKind = kind
	j.Error = message
	now := time.Now()
	j.UpdatedAt = now
	j.CompletedAt = now
	return true
}

// Complete moves the job to the completed terminal state with its result.
func (j *Job) Complete(res *Result) bool {
	if j.State.Terminal() {
		return false
	}
	j.State = StateCompleted
	j.Progress = stateProgress[StateCompleted]
	j.Result = res
	now := time.Now()
	j.UpdatedAt = now
	j.CompletedAt = now
	return true
}

func (j *Job) clone() Job {
	c := *j
	c.Result = j.Result.clone()
	return c
}
