package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders spreadsheets with excelize.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes the dataset into a single sheet with a bold header row.
func (e *XLSXExporter) Render(data Dataset, sheet string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if sheet == "" {
		sheet = defaultSheet
	}
	if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeTable(f, sheet, data); err != nil {
		return nil, err
	}
	return finish(f)
}

// RenderDocument writes the header fields to a "Summary" sheet and the body lines to "Content".
func (e *XLSXExporter) RenderDocument(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName(defaultSheet, "Summary"); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetCellValue("Summary", "A1", doc.Title); err != nil {
		return nil, fmt.Errorf("write title: %w", err)
	}
	fields := doc.FieldsDataset()
	if err := writeTableAt(f, "Summary", fields, 3); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet("Content"); err != nil {
		return nil, fmt.Errorf("create content sheet: %w", err)
	}
	for i, line := range PlainLines(doc.Body) {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetCellValue("Content", cell, line); err != nil {
			return nil, fmt.Errorf("write content: %w", err)
		}
	}
	_ = f.SetColWidth("Content", "A", "A", 100)
	f.SetActiveSheet(0)
	return finish(f)
}

func writeTable(f *excelize.File, sheet string, data Dataset) error {
	return writeTableAt(f, sheet, data, 1)
}

func writeTableAt(f *excelize.File, sheet string, data Dataset, startRow int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, startRow)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		_ = f.SetColWidth(sheet, name, name, 28)
	}
	for r, row := range data.Rows {
		for col, header := range data.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, startRow+r+1)
			if err := f.SetCellValue(sheet, cell, row[header]); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
	}
	return nil
}

func finish(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
