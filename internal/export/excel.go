// Package export renders plan statements as downloadable documents.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/voxcard/ajo-engine/internal/model"
)

type ExcelGenerator struct{}

func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

func (g *ExcelGenerator) Generate(statement model.PlanStatement) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, statement); err != nil {
		return nil, err
	}

	for _, round := range statement.Rounds {
		sheetName := fmt.Sprintf("Round %d", round.RoundNumber+1)
		file.NewSheet(sheetName)
		if err := g.writeRound(file, sheetName, statement, round); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *ExcelGenerator) writeSummary(file *excelize.File, sheet string, statement model.PlanStatement) error {
	plan := statement.Plan

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Plan")
	set("B1", plan.Name)
	set("A2", "Initiator")
	set("B2", plan.Initiator)
	set("A3", "Status")
	set("B3", string(plan.Status))
	set("A4", "Frequency")
	set("B4", string(plan.Frequency))
	set("A5", "Contribution per round")
	set("B5", plan.ContributionAmount)
	set("A6", "Participants")
	set("B6", len(plan.Participants))
	set("A7", "Rounds completed")
	set("B7", plan.CurrentRound)
	set("A8", "Rounds total")
	set("B8", plan.TotalRounds())
	set("A9", "Plan float")
	set("B9", statement.Float)
	set("A10", "Generated")
	set("B10", formatDateTime(statement.GeneratedAt))

	tableRow := 12
	set(fmt.Sprintf("A%d", tableRow), "Round")
	set(fmt.Sprintf("B%d", tableRow), "Collected")
	set(fmt.Sprintf("C%d", tableRow), "Recipient")
	set(fmt.Sprintf("D%d", tableRow), "Payout")
	set(fmt.Sprintf("E%d", tableRow), "Payout status")

	for i, round := range statement.Rounds {
		row := tableRow + 1 + i
		var collected int64
		for _, amount := range round.Paid {
			collected += amount
		}
		set(fmt.Sprintf("A%d", row), round.RoundNumber+1)
		set(fmt.Sprintf("B%d", row), collected)
		if round.Payout != nil {
			set(fmt.Sprintf("C%d", row), round.Payout.Recipient)
			set(fmt.Sprintf("D%d", row), round.Payout.Amount)
			set(fmt.Sprintf("E%d", row), string(round.Payout.Status))
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 24)
	_ = file.SetColWidth(sheet, "B", "B", 18)
	_ = file.SetColWidth(sheet, "C", "C", 48)
	_ = file.SetColWidth(sheet, "D", "E", 16)
	return nil
}

func (g *ExcelGenerator) writeRound(file *excelize.File, sheet string, statement model.PlanStatement, round model.StatementRound) error {
	plan := statement.Plan

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Plan")
	set("B1", plan.Name)
	set("A2", "Round")
	set("B2", round.RoundNumber+1)
	set("A3", "Required per participant")
	set("B3", plan.ContributionAmount)
	if round.Payout != nil {
		set("A4", "Recipient")
		set("B4", round.Payout.Recipient)
		set("A5", "Payout")
		set("B5", round.Payout.Amount)
	}

	tableRow := 7
	set(fmt.Sprintf("A%d", tableRow), "Participant")
	set(fmt.Sprintf("B%d", tableRow), "Paid")
	set(fmt.Sprintf("C%d", tableRow), "Complete")

	for i, participant := range plan.Participants {
		row := tableRow + 1 + i
		paid := round.Paid[participant]
		set(fmt.Sprintf("A%d", row), participant)
		set(fmt.Sprintf("B%d", row), paid)
		set(fmt.Sprintf("C%d", row), paid >= plan.ContributionAmount)
	}

	_ = file.SetColWidth(sheet, "A", "A", 48)
	_ = file.SetColWidth(sheet, "B", "C", 14)
	return nil
}

func formatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
