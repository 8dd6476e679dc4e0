package app

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	historySheet = "History"
)

var exportHeader = []string{"Timestamp", "Date", "Value"}

func exportFilename(kind, rng, ext string) string {
	return fmt.Sprintf("%s_%s_history.%s", kind, rng, ext)
}

// GenerateHistoryCSV writes Timestamp (unix ms), Date and Value rows under a header.
func GenerateHistoryCSV(points []HistoryPoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, p := range points {
		row := []string{
			strconv.FormatInt(p.Timestamp, 10),
			p.Date,
			strconv.FormatFloat(p.Value, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateHistoryXLSX builds a single-sheet workbook with a bold, frozen header row.
func GenerateHistoryXLSX(points []HistoryPoint) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open; every exit path closes it.

	index, err := f.NewSheet(historySheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	for col, header := range exportHeader {
		if err := setCellValue(f, col+1, 1, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell: %w", err)
		}
	}
	if err := f.SetCellStyle(historySheet, "A1", "C1", headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(historySheet, "A", "B", 20); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, p := range points {
		row := i + 2
		for col, v := range []interface{}{p.Timestamp, p.Date, p.Value} {
			if err := setCellValue(f, col+1, row, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell at row %d: %w", row, err)
			}
		}
	}

	if err := f.SetPanes(historySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func setCellValue(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(historySheet, cell, value)
}

func (g *Gateway) handleExport(w http.ResponseWriter, r *http.Request, kindParam string) {
	q, err := parseHistoryQuery(r, kindParam)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = FormatCSV
	}

	var (
		body        []byte
		contentType string
	)
	readings, source := g.history(r.Context(), q)
	points := toPoints(readings)
	switch format {
	case FormatCSV:
		body, err = GenerateHistoryCSV(points)
		contentType = "text/csv; charset=utf-8"
	case FormatXLSX:
		body, err = GenerateHistoryXLSX(points)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}
	if err != nil {
		g.logger.Error("gateway: export failed", zap.String("format", format), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+exportFilename(string(q.kind), string(q.rng), format))
	w.Header().Set(dataSourceHeader, source)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
