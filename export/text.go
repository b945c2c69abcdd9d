package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"minutesapi/job"
)

// Text writes the minutes as a plain text file.
type Text struct{}

func (Text) Format() string { return "text" }

func (Text) Export(ctx context.Context, res *job.Result, dir, basename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, basename+".txt")

	var b strings.Builder
	b.WriteString("--- Meeting Minutes ---\n\n")
	b.WriteString(dateLine() + "\n\n")
	for _, s := range sections(res) {
		b.WriteString(s.Title + "\n")
		b.WriteString(s.Body + "\n\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
