package export

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gingfrederik/docx"

	"minutesapi/job"
)

// Word writes the minutes as a .docx document.
type Word struct{}

func (Word) Format() string { return "word" }

func (Word) Export(ctx context.Context, res *job.Result, dir, basename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, basename+".docx")

	f := docx.NewFile()

	title := f.AddParagraph()
	title.AddText("Meeting Minutes").Size(20)

	f.AddParagraph().AddText(dateLine()).Size(11)
	f.AddParagraph()

	for _, s := range sections(res) {
		heading := f.AddParagraph()
		heading.AddText(s.Title).Size(15)
		for _, line := range strings.Split(s.Body, "\n") {
			f.AddParagraph().AddText(line).Size(11)
		}
		f.AddParagraph()
	}

	if err := f.Save(path); err != nil {
		return "", err
	}
	return path, nil
}
