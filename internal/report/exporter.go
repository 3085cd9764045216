// Package report builds downloadable expense summaries.
package report

import (
	"fmt"
	"io"

	"github.com/finwork/expenseflow/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const sheetName = "Expenses"

var columns = []string{"ID", "Submitter", "Description", "Amount", "Currency", "Converted", "Status", "Created"}

// Exporter renders a company's expenses as an Excel workbook.
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Write renders the workbook for a company and streams it to w.
func (ex *Exporter) Write(w io.Writer, company *models.Company, expenses []*models.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	ex.setCell(f, "A1", fmt.Sprintf("%s expense report", company.Name))
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		ex.setCell(f, cell, col)
	}

	var total float64
	for i, e := range expenses {
		row := i + 3
		values := []interface{}{
			e.ID,
			e.SubmitterName,
			e.Description,
			e.Amount,
			e.CurrencyCode,
			e.AmountConverted,
			e.Status,
			e.CreatedAt.Format("2006-01-02"),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			ex.setCell(f, cell, v)
		}
		total += e.AmountConverted
	}

	totalRow := len(expenses) + 3
	ex.setCell(f, fmt.Sprintf("A%d", totalRow), "Total")
	ex.setCell(f, fmt.Sprintf("F%d", totalRow), total)
	ex.setCell(f, fmt.Sprintf("G%d", totalRow), company.CurrencyCode)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	ex.logger.Info("Expense report exported",
		zap.Int64("company_id", company.ID),
		zap.Int("rows", len(expenses)))
	return nil
}

func (ex *Exporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		ex.logger.Warn("Failed to set cell",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
