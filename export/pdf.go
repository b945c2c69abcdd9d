package export

import (
	"context"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"minutesapi/job"
)

// PDF writes the minutes as a PDF document.
type PDF struct{}

func (PDF) Format() string { return "pdf" }

func (PDF) Export(ctx context.Context, res *job.Result, dir, basename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, basename+".pdf")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 24)
	pdf.CellFormat(0, 12, "Meeting Minutes", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, dateLine(), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, s := range sections(res) {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 9, s.Title, "", 1, "L", false, 0, "")
		pdf.Ln(1)

		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(s.Body), "", "L", false)
		pdf.Ln(4)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", err
	}
	return path, nil
}
