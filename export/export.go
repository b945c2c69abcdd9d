// Package export renders completed meeting minutes into downloadable
// documents. Each exporter is independent; the pipeline tolerates individual
// failures as long as at least one format is written.
package export

import (
	"fmt"
	"strings"
	"time"

	"minutesapi/job"
)

type section struct {
	Title string
	Body  string
}

func dateLine() string {
	return "Date: " + time.Now().Format("2006-01-02 15:04")
}

// sections builds the common document layout shared by all formats.
func sections(res *job.Result) []section {
	return []section{
		{Title: "1. Meeting Summary", Body: orNA(res.Summary)},
		{Title: "2. Key Decisions", Body: bulletList(res.Decisions, "decision")},
		{Title: "3. Action Items", Body: bulletList(res.ActionItems, "action item")},
		{Title: "4. Important Deadlines", Body: bulletList(res.Deadlines, "deadline")},
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "No summary available."
	}
	return s
}

func bulletList(items []string, kind string) string {
	if len(items) == 0 {
		return fmt.Sprintf("No explicit %ss identified.", kind)
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "• " + item
	}
	return strings.Join(lines, "\n")
}
