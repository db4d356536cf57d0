/*
report.go - XLSX export of the analytics payload

PURPOSE:
  Renders the same report served by GET /api/stats as a downloadable
  spreadsheet: a summary sheet plus per-vehicle, per-driver and monthly
  breakdowns. Fleet managers hand these to accounting.
*/
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/warp/fuel-engine/station"
)

// ExportAnalyticsXLSX renders the analytics report as an XLSX workbook.
// GET /api/reports/analytics.xlsx?start=&end=
func (h *Handler) ExportAnalyticsXLSX(w http.ResponseWriter, r *http.Request) {
	rep, err := h.buildReport(r, dateRangeFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats", err)
		return
	}

	data, err := buildAnalyticsWorkbook(rep, h.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build report", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="fuel-analytics.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func buildAnalyticsWorkbook(rep station.Report, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "Summary"
	vehiclesSheet := "Vehicles"
	driversSheet := "Drivers"
	monthsSheet := "Monthly"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(vehiclesSheet)
	f.NewSheet(driversSheet)
	f.NewSheet(monthsSheet)

	dto := toStatsDTO(rep)

	_ = f.SetCellValue(summarySheet, "A1", "Fleet Fuel Analytics")
	_ = f.SetCellValue(summarySheet, "A2", "Generated")
	_ = f.SetCellValue(summarySheet, "B2", now.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Total Fuel (L)")
	_ = f.SetCellValue(summarySheet, "B4", dto.TotalFuel)
	_ = f.SetCellValue(summarySheet, "A5", "Total Cost")
	_ = f.SetCellValue(summarySheet, "B5", dto.TotalCost)
	_ = f.SetCellValue(summarySheet, "A6", "Transactions")
	_ = f.SetCellValue(summarySheet, "B6", dto.TotalTransactions)
	_ = f.SetCellValue(summarySheet, "A7", "Vehicles")
	_ = f.SetCellValue(summarySheet, "B7", dto.TotalVehicles)
	_ = f.SetCellValue(summarySheet, "A9", "Tank Level (L)")
	_ = f.SetCellValue(summarySheet, "B9", dto.Station.CurrentLevel)
	_ = f.SetCellValue(summarySheet, "A10", "Tank Capacity (L)")
	_ = f.SetCellValue(summarySheet, "B10", dto.Station.Capacity)
	_ = f.SetCellValue(summarySheet, "A11", "Fill Percentage")
	_ = f.SetCellValue(summarySheet, "B11", dto.Station.FillPercentage)
	_ = f.SetCellValue(summarySheet, "A12", "Average Price")
	_ = f.SetCellValue(summarySheet, "B12", dto.Station.AvgPrice)
	_ = f.SetCellValue(summarySheet, "A13", "Inventory Value")
	_ = f.SetCellValue(summarySheet, "B13", dto.Station.InventoryValue)
	_ = f.SetCellValue(summarySheet, "A14", "Total Spend")
	_ = f.SetCellValue(summarySheet, "B14", dto.Station.TotalSpend)
	_ = f.SetCellValue(summarySheet, "A16", "Fleet Efficiency")
	_ = f.SetCellValue(summarySheet, "B16", dto.Advanced.FleetEfficiency)
	_ = f.SetCellValue(summarySheet, "A17", "Forecast Next Month (L)")
	_ = f.SetCellValue(summarySheet, "B17", dto.Advanced.ForecastNextMonth)
	_ = f.SetCellValue(summarySheet, "A18", "Peak Hour")
	_ = f.SetCellValue(summarySheet, "B18", dto.Advanced.PeakHour)
	_ = f.SetCellValue(summarySheet, "A19", "Peak Day")
	_ = f.SetCellValue(summarySheet, "B19", dto.Advanced.PeakDay)

	_ = f.SetCellValue(vehiclesSheet, "A1", "Vehicle")
	_ = f.SetCellValue(vehiclesSheet, "B1", "Total Fuel (L)")
	_ = f.SetCellValue(vehiclesSheet, "C1", "Total Cost")
	_ = f.SetCellValue(vehiclesSheet, "D1", "Refuels")
	_ = f.SetCellValue(vehiclesSheet, "E1", "Distance")
	_ = f.SetCellValue(vehiclesSheet, "F1", "Efficiency")
	for i, v := range dto.ByVehicle {
		row := i + 2
		_ = f.SetCellValue(vehiclesSheet, fmt.Sprintf("A%d", row), v.Name)
		_ = f.SetCellValue(vehiclesSheet, fmt.Sprintf("B%d", row), v.TotalFuel)
		_ = f.SetCellValue(vehiclesSheet, fmt.Sprintf("C%d", row), v.TotalCost)
		_ = f.SetCellValue(vehiclesSheet, fmt.Sprintf("D%d", row), v.Count)
		_ = f.SetCellValue(vehiclesSheet, fmt.Sprintf("E%d", row), v.Distance)
		_ = f.SetCellValue(vehiclesSheet, fmt.Sprintf("F%d", row), v.Efficiency)
	}

	_ = f.SetCellValue(driversSheet, "A1", "Driver")
	_ = f.SetCellValue(driversSheet, "B1", "Total Fuel (L)")
	_ = f.SetCellValue(driversSheet, "C1", "Total Cost")
	_ = f.SetCellValue(driversSheet, "D1", "Refuels")
	_ = f.SetCellValue(driversSheet, "E1", "Avg Per Refuel (L)")
	for i, d := range dto.ByDriver {
		row := i + 2
		_ = f.SetCellValue(driversSheet, fmt.Sprintf("A%d", row), d.Name)
		_ = f.SetCellValue(driversSheet, fmt.Sprintf("B%d", row), d.TotalFuel)
		_ = f.SetCellValue(driversSheet, fmt.Sprintf("C%d", row), d.TotalCost)
		_ = f.SetCellValue(driversSheet, fmt.Sprintf("D%d", row), d.Count)
		_ = f.SetCellValue(driversSheet, fmt.Sprintf("E%d", row), d.AvgPerRefuel)
	}

	_ = f.SetCellValue(monthsSheet, "A1", "Month")
	_ = f.SetCellValue(monthsSheet, "B1", "Fuel (L)")
	_ = f.SetCellValue(monthsSheet, "C1", "Cost")
	for i, m := range dto.ByMonth {
		row := i + 2
		_ = f.SetCellValue(monthsSheet, fmt.Sprintf("A%d", row), m.Month)
		_ = f.SetCellValue(monthsSheet, fmt.Sprintf("B%d", row), m.Amount)
		_ = f.SetCellValue(monthsSheet, fmt.Sprintf("C%d", row), m.Cost)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
