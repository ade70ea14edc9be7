// internal/handlers/export.go
package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/services"
)

var exportHeaders = []string{"Name", "Category", "Location", "Quantity", "Status", "Last Updated", "Expiration Date"}

// ExportExcel handles GET /api/v1/inventory/export. The workbook holds every
// row of the caller's current filter and search, not just the visible page.
func (h *InventoryHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.currentView(r)
	if err != nil {
		h.respondErr(ctx, w, err, "Failed to load inventory")
		return
	}
	items := h.sessions.FromRequest(r).Inventory.Filtered()

	data, err := buildWorkbook(items, view)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate Excel file", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to generate Excel file")
		return
	}

	filename := fmt.Sprintf("inventory_%s_%s.xlsx", view.Filter, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(ctx, "failed to write Excel response", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "inventory exported",
		slog.Int("rows", len(items)),
		slog.String("filter", string(view.Filter)))
}

func buildWorkbook(items []domain.InventoryItem, view services.InventoryView) ([]byte, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Inventory")
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range exportHeaders {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for _, item := range items {
		row := sheet.AddRow()
		row.AddCell().SetString(item.Name)
		row.AddCell().SetString(item.Category)
		row.AddCell().SetString(item.Location)
		row.AddCell().SetInt(item.Quantity)
		row.AddCell().SetString(string(item.Status))
		row.AddCell().SetString(item.LastUpdated)
		expiry := ""
		if item.ExpirationDate != nil {
			expiry = *item.ExpirationDate
		}
		row.AddCell().SetString(expiry)
	}
	for i := range exportHeaders {
		sheet.SetColWidth(i+1, i+1, 18)
	}

	summary, err := file.AddSheet("Summary")
	if err != nil {
		return nil, fmt.Errorf("failed to add summary sheet: %w", err)
	}
	addPair := func(label string, value int) {
		row := summary.AddRow()
		row.AddCell().SetString(label)
		row.AddCell().SetInt(value)
	}
	addPair("Total Items", view.Summary.Total)
	addPair("In Stock", view.Summary.InStock)
	addPair("Low Stock", view.Summary.LowStock)
	addPair("Out of Stock", view.Summary.OutOfStock)
	summary.AddRow()
	for _, c := range view.Categories {
		addPair(c.Category, c.Quantity)
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write Excel file to buffer: %w", err)
	}
	return buffer.Bytes(), nil
}
