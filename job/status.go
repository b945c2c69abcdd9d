package job

import "time"

// Status is the read-only projection of a job served to polling clients.
// It carries result or error only once the job is terminal.
type Status struct {
	ID             string            `json:"id"`
	State          State             `json:"state"`
	Progress       int               `json:"progress"`
	Step           string            `json:"step"`
	SourceFilename string            `json:"sourceFilename"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	Result         *Result           `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	ErrorKind      string            `json:"errorKind,omitempty"`
	DownloadURLs   map[string]string `json:"downloadUrls,omitempty"`
}

func StatusOf(j Job) Status {
	v := Status{
		ID:             j.ID,
		State:          j.State,
		Progress:       j.Progress,
		Step:           j.State.Step(),
		SourceFilename: j.SourceFilename,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
	switch j.State {
	case StateCompleted:
		v.Result = j.Result
	case StateFailed:
		v.Error = j.Error
		v.ErrorKind = j.ErrorKind
	}
	return v
}
