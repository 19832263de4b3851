package xlsx

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

const sheetName = "提取结果"

var headers = []string{"字段名称", "显示标签", "提取值", "置信度", "状态"}

// Exporter writes a document's field map as a single-sheet workbook, one row per field
// in position order.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *Exporter) FileExtension() string {
	return ".xlsx"
}

func (e *Exporter) Export(w io.Writer, doc *domain.Document) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, 1, toCells(headers)); err != nil {
		return err
	}

	for idx, key := range doc.ExtractedData.Keys() {
		field := doc.ExtractedData[key]
		status := "自动提取"
		if field.IsEdited {
			status = "人工修改"
		}
		row := []any{field.Key, field.Label, cellValue(field.Value), fmt.Sprintf("%.2f", field.Confidence), status}
		if err := setRow(f, idx+2, row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheetName, "A", "C", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func cellValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(raw)
	}
}
