package services

import (
	"bytes"
	"fmt"

	"github.com/terraincognita07/csvdash/internal/models"
	"github.com/xuri/excelize/v2"
)

const historySheetName = "History"

// BuildHistoryWorkbook lays the flattened history out as an XLSX sheet. Cells
// hold the same textual values as the CSV export, without the CSV quoting.
func BuildHistoryWorkbook(records []models.SummaryRecord) ([]byte, error) {
	table, err := FlattenHistory(records)
	if err != nil {
		return nil, err
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	if err := workbook.SetSheetName(workbook.GetSheetName(0), historySheetName); err != nil {
		return nil, fmt.Errorf("name history sheet: %w", err)
	}

	if err := writeWorkbookRow(workbook, 1, table.Header); err != nil {
		return nil, err
	}
	for index, row := range table.Rows {
		if err := writeWorkbookRow(workbook, index+2, row); err != nil {
			return nil, err
		}
	}

	if err := workbook.SetPanes(historySheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze history header: %w", err)
	}

	var output bytes.Buffer
	if err := workbook.Write(&output); err != nil {
		return nil, fmt.Errorf("write history workbook: %w", err)
	}
	return output.Bytes(), nil
}

func writeWorkbookRow(workbook *excelize.File, rowNumber int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNumber)
	if err != nil {
		return fmt.Errorf("resolve row %d: %w", rowNumber, err)
	}

	cells := make([]interface{}, len(values))
	for index, value := range values {
		cells[index] = value
	}
	if err := workbook.SetSheetRow(historySheetName, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", rowNumber, err)
	}
	return nil
}
