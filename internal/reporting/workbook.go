package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/annonymususer90/my99exch/api/schemas"
)

// SheetName is the worksheet holding one row per audited operation.
const SheetName = "Transactions"

// ContentType is the media type of a rendered workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Columns is the header row of the workbook.
var Columns = []string{
	"Site", "Type", "Username", "Amount", "Response Time (ms)",
	"Message", "Status", "Origin", "Created At",
}

var columnWidths = []float64{32, 8, 20, 12, 18, 48, 10, 24, 22}

// WriteWorkbook renders entries as an xlsx workbook to w.
func WriteWorkbook(w io.Writer, entries []schemas.AuditEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to open worksheet stream: %w", err)
	}
	for i, width := range columnWidths {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	header := make([]interface{}, len(Columns))
	for i, name := range Columns {
		header[i] = excelize.Cell{StyleID: bold, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row(e)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush worksheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func row(e schemas.AuditEntry) []interface{} {
	status := "failure"
	if e.Succeeded {
		status = "success"
	}
	return []interface{}{
		e.Site,
		e.Operation.AuditCode(),
		e.Account,
		e.Amount,
		e.Elapsed.Milliseconds(),
		e.Message,
		status,
		e.Origin,
		e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
