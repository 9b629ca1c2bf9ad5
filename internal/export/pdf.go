package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/voxcard/ajo-engine/internal/model"
)

type PDFGenerator struct {
	fontName string
}

func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{fontName: "Helvetica"}
}

func (g *PDFGenerator) Generate(statement model.PlanStatement) ([]byte, error) {
	plan := statement.Plan

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Savings Plan Statement", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, plan.Name, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", formatDateTime(statement.GeneratedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Plan", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	lines := []string{
		fmt.Sprintf("Initiator: %s", plan.Initiator),
		fmt.Sprintf("Status: %s", plan.Status),
		fmt.Sprintf("Frequency: %s, %d rounds", plan.Frequency, plan.TotalRounds()),
		fmt.Sprintf("Contribution per round: %d", plan.ContributionAmount),
		fmt.Sprintf("Participants: %d of %d", len(plan.Participants), plan.MaxMembers),
		fmt.Sprintf("Plan float: %d", statement.Float),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
	pdf.Ln(4)

	for _, round := range statement.Rounds {
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, fmt.Sprintf("Round %d", round.RoundNumber+1), "", 1, "L", false, 0, "")

		headers := []string{"Participant", "Paid", "Complete"}
		widths := []float64{110, 35, 35}
		g.drawTableRow(pdf, headers, widths, true)
		for _, participant := range plan.Participants {
			paid := round.Paid[participant]
			complete := "no"
			if paid >= plan.ContributionAmount {
				complete = "yes"
			}
			row := []string{participant, fmt.Sprintf("%d", paid), complete}
			g.drawTableRow(pdf, row, widths, false)
		}

		pdf.SetFont(g.fontName, "", 10)
		if round.Payout != nil {
			pdf.CellFormat(0, 6, fmt.Sprintf("Payout %d to %s (%s)", round.Payout.Amount, round.Payout.Recipient, round.Payout.Status), "", 1, "L", false, 0, "")
		} else {
			pdf.CellFormat(0, 6, "Round in progress", "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *PDFGenerator) drawTableRow(pdf *gofpdf.Fpdf, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(g.fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}
