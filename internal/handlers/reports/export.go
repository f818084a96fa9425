// Package reports exports checkout history as CSV or Excel.
package reports

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/audit"
	"github.com/rayaadinda/kp-inventory/internal/models"
	"github.com/rayaadinda/kp-inventory/internal/response"
	"github.com/rayaadinda/kp-inventory/internal/store"
	"github.com/rayaadinda/kp-inventory/internal/validation"
)

// Handler holds dependencies for report handlers.
type Handler struct {
	DB        *sqlx.DB
	Checkouts store.CheckoutRepository
	Log       *zap.Logger

	// GetCurrentUser returns the authenticated caller.
	GetCurrentUser func(r *http.Request) models.User
}

var historyHeaders = []string{"Date", "Work Order", "Item", "Quantity", "Unit", "Total Items", "Operator", "Status", "Project"}

// ExportHistory handles GET /api/inventory/checkout-history/export. Each
// report line becomes one row; a checkout with no lines still gets a row.
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "csv"
	}
	start, end := q.Get("startDate"), q.Get("endDate")

	ve := &validation.ValidationErrors{}
	validation.ValidateEnum(ve, "format", format, validation.ValidExportFormats)
	validation.ValidateDate(ve, "startDate", start)
	validation.ValidateDate(ve, "endDate", end)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	reports, err := h.Checkouts.History(r.Context(), start, end)
	if err != nil {
		if h.Log != nil {
			h.Log.Error("export history", zap.Error(err))
		}
		response.Err(w, "failed to load checkout history", 500)
		return
	}
	data := HistoryRows(reports)

	if h.DB != nil {
		user := ""
		if h.GetCurrentUser != nil {
			user = h.GetCurrentUser(r).Email
		}
		summary := fmt.Sprintf("Exported %d rows from checkout history as %s", len(data), format)
		if err := audit.Log(r.Context(), h.DB, audit.FromRequest(r, user, audit.ActionExport, "checkout", "", summary)); err != nil && h.Log != nil {
			h.Log.Warn("audit write failed", zap.Error(err))
		}
	}

	if format == "xlsx" {
		ExportExcel(w, "Checkouts", historyHeaders, data)
	} else {
		ExportCSV(w, "checkouts.csv", historyHeaders, data)
	}
}

// HistoryRows flattens reports into export rows.
func HistoryRows(reports []models.CheckoutReport) [][]string {
	var data [][]string
	for _, rep := range reports {
		total := strconv.Itoa(rep.TotalItems)
		if len(rep.Items) == 0 {
			data = append(data, []string{rep.Date, rep.WorkOrder, "", "", "", total, rep.Operator, rep.Status, rep.Project})
			continue
		}
		for _, line := range rep.Items {
			data = append(data, []string{rep.Date, rep.WorkOrder, line.Name, strconv.Itoa(line.Quantity), line.Unit,
				total, rep.Operator, rep.Status, rep.Project})
		}
	}
	return data
}

// ExportCSV writes data to CSV format.
func ExportCSV(w http.ResponseWriter, filename string, headers []string, data [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		http.Error(w, "Failed to write CSV headers", 500)
		return
	}
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			http.Error(w, "Failed to write CSV row", 500)
			return
		}
	}
}

// ExportExcel writes data to Excel format.
func ExportExcel(w http.ResponseWriter, sheetName string, headers []string, data [][]string) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		http.Error(w, "Failed to create Excel sheet", 500)
		return
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		http.Error(w, "Failed to create header style", 500)
		return
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	for rowIdx, row := range data {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			// quantities go in as numbers so the sheet can sum them
			if n, err := strconv.Atoi(value); err == nil && (colIdx == 3 || colIdx == 5) {
				f.SetCellValue(sheetName, cell, n)
				continue
			}
			f.SetCellValue(sheetName, cell, value)
		}
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	f.SetColWidth(sheetName, "A", last, 15)

	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", strings.ToLower(sheetName)))

	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write Excel file", 500)
		return
	}
}
