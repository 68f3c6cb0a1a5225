package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/bidworks/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders a contractor's cycle statement: the counter summary plus
// one row per charged job.
func (g *Generator) Generate(statement model.LeadStatement) ([]byte, error) {
	file := excelize.NewFile()

	sheet := "Lead usage"
	file.SetSheetName("Sheet1", sheet)

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Contractor")
	set("B1", statement.ContractorID.String())
	set("A2", "Tier")
	set("B2", tierLabel(statement.Tier))
	set("A3", "Cycle start")
	set("B3", formatDate(statement.CycleStart))
	set("A4", "Leads used")
	set("B4", statement.LeadsUsed)
	set("A5", "Leads limit")
	set("B5", statement.LeadsLimit)
	set("A6", "Leads remaining")
	set("B6", remaining(statement))

	tableRow := 8
	headers := []string{"Charged at", "Job", "Category"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, line := range statement.Lines {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), formatDateTime(line.ChargedAt))
		set(fmt.Sprintf("B%d", row), line.JobID.String())
		set(fmt.Sprintf("C%d", row), line.Category)
	}

	_ = file.SetColWidth(sheet, "A", "A", 20)
	_ = file.SetColWidth(sheet, "B", "B", 40)
	_ = file.SetColWidth(sheet, "C", "C", 24)

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func remaining(statement model.LeadStatement) int {
	if statement.LeadsLimit < statement.LeadsUsed {
		return 0
	}
	return statement.LeadsLimit - statement.LeadsUsed
}

func tierLabel(tier model.MembershipTier) string {
	lower := strings.ToLower(string(tier))
	if lower == "" {
		return ""
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
