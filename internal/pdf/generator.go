package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/bidworks/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

// Generate renders the award summary for a decided job: the job, the
// winning bid and its payment milestones.
func (g *Generator) Generate(doc model.AwardDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Job Award Summary", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Job %s, awarded %s", doc.Job.ID, formatDate(doc.Bid.CreatedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Job", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Category: %s", doc.Job.Category), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Customer estimate: %.2f", doc.Job.EstimateAmount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Timeline: %d days", doc.Job.TimelineDays), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Winning bid", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Contractor: %s", doc.Bid.ContractorID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Amount: %.2f", doc.Bid.Amount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Work window: %s to %s", formatDate(doc.Bid.TimelineStart), formatDate(doc.Bid.TimelineEnd)), "", 1, "L", false, 0, "")
	if doc.Bid.Materials != nil && *doc.Bid.Materials != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Materials: %s", *doc.Bid.Materials), "", 1, "L", false, 0, "")
	}
	if doc.Bid.Warranty != nil && *doc.Bid.Warranty != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Warranty: %s", *doc.Bid.Warranty), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Payment milestones", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)

	headers := []string{"Milestone", "Amount", "Status"}
	colWidths := []float64{80, 50, 50}
	g.drawTableRow(pdf, headers, colWidths, true)
	for _, obligation := range doc.Obligations {
		row := []string{
			string(obligation.Type),
			fmt.Sprintf("%.2f", obligation.Amount),
			string(obligation.Status),
		}
		g.drawTableRow(pdf, row, colWidths, false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) drawTableRow(pdf *gofpdf.Fpdf, cells []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(g.fontName, style, 10)
	for i, cell := range cells {
		pdf.CellFormat(widths[i], 7, cell, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func formatDate(t time.Time) string {
	return t.Format("02.01.2006")
}
