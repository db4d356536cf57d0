/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model (decimal-valued, full precision) from the external
  contract (float-valued, rounded).

ROUNDING:
  All rounding happens here, at the serialization boundary: volumes and
  monetary fields to 2 decimals, prices to 3. The domain layer never
  rounds mid-computation.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - station/stats.go: The domain report these DTOs are built from
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/fuel-engine/station"
)

// =============================================================================
// ROUNDING HELPERS
// =============================================================================

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func round3(d decimal.Decimal) float64 {
	f, _ := d.Round(3).Float64()
	return f
}

// =============================================================================
// STATS PAYLOAD
// =============================================================================

// StatsDTO is the full analytics payload served by GET /api/stats.
type StatsDTO struct {
	TotalFuel         float64          `json:"total_fuel"`
	TotalCost         float64          `json:"total_cost"`
	TotalTransactions int              `json:"total_transactions"`
	TotalVehicles     int              `json:"total_vehicles"`
	UnitMode          string           `json:"unit_mode"`
	ByVehicle         []VehicleStatDTO `json:"by_vehicle"`
	ByDriver          []DriverStatDTO  `json:"by_driver"`
	RecentActivity    []TransactionDTO `json:"recent_activity"`
	ByMonth           []MonthStatDTO   `json:"by_month"`
	Station           StationDTO       `json:"station"`
	Advanced          AdvancedDTO      `json:"advanced"`
}

// VehicleStatDTO is one per-vehicle row.
type VehicleStatDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	TotalFuel  float64 `json:"total_fuel"`
	TotalCost  float64 `json:"total_cost"`
	Count      int     `json:"count"`
	Distance   int64   `json:"distance"`
	Efficiency float64 `json:"efficiency"`
}

// DriverStatDTO is one per-driver row.
type DriverStatDTO struct {
	Pincode      string  `json:"pincode"`
	Name         string  `json:"name"`
	TotalFuel    float64 `json:"total_fuel"`
	TotalCost    float64 `json:"total_cost"`
	Count        int     `json:"count"`
	AvgPerRefuel float64 `json:"avg_per_refuel"`
}

// MonthStatDTO is one calendar-month row.
type MonthStatDTO struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
	Cost   float64 `json:"cost"`
}

// StationDTO is the tank snapshot, always computed over the full history.
type StationDTO struct {
	CurrentLevel   float64             `json:"current_level"`
	Capacity       float64             `json:"capacity"`
	FillPercentage float64             `json:"fill_percentage"`
	DaysRemaining  int                 `json:"days_remaining"`
	FillHistory    []station.FillPoint `json:"fill_history"`
	AvgPrice       float64             `json:"avg_price"`
	TotalSpend     float64             `json:"total_spend"`
	InventoryValue float64             `json:"inventory_value"`
}

// AdvancedDTO holds derived fleet-wide metrics.
type AdvancedDTO struct {
	FleetEfficiency   float64 `json:"fleet_efficiency"`
	ForecastNextMonth float64 `json:"forecast_next_month"`
	PeakHour          string  `json:"peak_hour"`
	PeakDay           string  `json:"peak_day"`
}

func toStatsDTO(rep station.Report) StatsDTO {
	dto := StatsDTO{
		TotalFuel:         round2(rep.TotalFuel),
		TotalCost:         round2(rep.TotalCost),
		TotalTransactions: rep.TotalTransactions,
		TotalVehicles:     rep.TotalVehicles,
		UnitMode:          string(rep.UnitMode),
		ByVehicle:         make([]VehicleStatDTO, 0, len(rep.ByVehicle)),
		ByDriver:          make([]DriverStatDTO, 0, len(rep.ByDriver)),
		RecentActivity:    make([]TransactionDTO, 0, len(rep.RecentActivity)),
		ByMonth:           make([]MonthStatDTO, 0, len(rep.ByMonth)),
		Station: StationDTO{
			CurrentLevel:   round2(rep.Station.CurrentLevel),
			Capacity:       round2(rep.Station.Capacity),
			FillPercentage: round2(rep.Station.FillPercentage),
			DaysRemaining:  rep.Station.DaysRemaining,
			FillHistory:    rep.Station.FillHistory,
			AvgPrice:       round3(rep.Station.AvgPrice),
			TotalSpend:     round2(rep.Station.TotalSpend),
			InventoryValue: round2(rep.Station.InventoryValue),
		},
		Advanced: AdvancedDTO{
			FleetEfficiency:   round2(rep.Advanced.FleetEfficiency),
			ForecastNextMonth: round2(rep.Advanced.ForecastNextMonth),
			PeakHour:          rep.Advanced.PeakHour,
			PeakDay:           rep.Advanced.PeakDay,
		},
	}
	if dto.Station.FillHistory == nil {
		dto.Station.FillHistory = []station.FillPoint{}
	}

	for _, v := range rep.ByVehicle {
		dto.ByVehicle = append(dto.ByVehicle, VehicleStatDTO{
			ID:         v.ID,
			Name:       v.Name,
			TotalFuel:  round2(v.TotalFuel),
			TotalCost:  round2(v.TotalCost),
			Count:      v.Count,
			Distance:   v.Distance,
			Efficiency: round2(v.Efficiency),
		})
	}
	for _, d := range rep.ByDriver {
		dto.ByDriver = append(dto.ByDriver, DriverStatDTO{
			Pincode:      d.Pincode,
			Name:         d.Name,
			TotalFuel:    round2(d.TotalFuel),
			TotalCost:    round2(d.TotalCost),
			Count:        d.Count,
			AvgPerRefuel: round2(d.AvgPerRefuel),
		})
	}
	for _, e := range rep.RecentActivity {
		dto.RecentActivity = append(dto.RecentActivity, toTransactionDTO(e.Transaction, e.VehicleName, e.DriverName, e.Cost))
	}
	for _, m := range rep.ByMonth {
		dto.ByMonth = append(dto.ByMonth, MonthStatDTO{
			Month:  m.Month,
			Amount: round2(m.Amount),
			Cost:   round2(m.Cost),
		})
	}
	return dto
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO is a dispensing event, annotated with joined names and
// its replay-assigned cost.
type TransactionDTO struct {
	ID          int64   `json:"id"`
	Sequence    string  `json:"sequence"`
	Pincode     string  `json:"pincode"`
	VehicleID   string  `json:"vehicle_id"`
	Mileage     int64   `json:"mileage"`
	Amount      float64 `json:"amount"`
	ProductID   string  `json:"product_id"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	VehicleName string  `json:"vehicle_name,omitempty"`
	DriverName  string  `json:"driver_name,omitempty"`
	Cost        float64 `json:"cost"`
}

func toTransactionDTO(t station.Transaction, vehicleName, driverName string, cost decimal.Decimal) TransactionDTO {
	return TransactionDTO{
		ID:          t.ID,
		Sequence:    t.Sequence,
		Pincode:     t.Pincode,
		VehicleID:   t.VehicleID,
		Mileage:     t.Mileage,
		Amount:      round2(t.Amount),
		ProductID:   t.ProductID,
		Date:        t.Date,
		Time:        t.Time,
		VehicleName: vehicleName,
		DriverName:  driverName,
		Cost:        round2(cost),
	}
}

// SaveTransactionRequest creates (id == 0) or updates a transaction.
type SaveTransactionRequest struct {
	ID        int64   `json:"id"`
	Sequence  string  `json:"sequence"`
	Pincode   string  `json:"pincode"`
	VehicleID string  `json:"vehicle_id"`
	Mileage   int64   `json:"mileage"`
	Amount    float64 `json:"amount"`
	ProductID string  `json:"product_id"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
}

// =============================================================================
// DELIVERIES
// =============================================================================

// DeliveryDTO is a fuel supply event. PricePerLiter is null for deliveries
// recorded without a price.
type DeliveryDTO struct {
	ID            int64    `json:"id"`
	Date          string   `json:"date"`
	Amount        float64  `json:"amount"`
	PricePerLiter *float64 `json:"price_per_liter"`
	Notes         string   `json:"notes,omitempty"`
}

func toDeliveryDTO(d station.Delivery) DeliveryDTO {
	dto := DeliveryDTO{
		ID:     d.ID,
		Date:   d.Date,
		Amount: round2(d.Amount),
		Notes:  d.Notes,
	}
	if d.PricePerLiter.Valid {
		p := round3(d.PricePerLiter.Decimal)
		dto.PricePerLiter = &p
	}
	return dto
}

// SaveDeliveryRequest creates (id == 0) or updates a delivery.
type SaveDeliveryRequest struct {
	ID            int64    `json:"id"`
	Date          string   `json:"date"`
	Amount        float64  `json:"amount"`
	PricePerLiter *float64 `json:"price_per_liter"`
	Notes         string   `json:"notes"`
}

// =============================================================================
// MASTER DATA
// =============================================================================

// VehicleDTO doubles as the upsert request body.
type VehicleDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// DriverDTO doubles as the upsert request body.
type DriverDTO struct {
	Pincode string `json:"pincode"`
	Name    string `json:"name"`
	Color   string `json:"color,omitempty"`
}

// =============================================================================
// MISC
// =============================================================================

// SetSettingRequest sets one key-value setting.
type SetSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// UploadResponse summarizes a processed export file.
type UploadResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Records int    `json:"records"`
	Skipped bool   `json:"skipped"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
