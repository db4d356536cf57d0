/*
stats.go - Aggregation layer

PURPOSE:
  Turns raw entities plus the replay engine's per-transaction cost map into
  the analytics report served to callers: fleet totals, per-vehicle and
  per-driver statistics, monthly breakdown, recent activity, forecasts,
  peak usage and the station snapshot.

FILTERING CONTRACT:
  The optional [start, end] window (inclusive, ISO date strings) restricts
  which TRANSACTIONS enter the grouped statistics. It never changes the
  underlying replay: the tank's historical trajectory is a whole-history
  concept, so station-level figures are identical for every reporting
  window.

SEE ALSO:
  - replay.go: Produces the cost map and tank trajectory consumed here
*/
package station

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

// DateRange is an inclusive reporting window. Both ends must be set for the
// filter to apply.
type DateRange struct {
	Start string
	End   string
}

func (r DateRange) active() bool { return r.Start != "" && r.End != "" }

func (r DateRange) contains(date string) bool {
	return !r.active() || (date >= r.Start && date <= r.End)
}

// VehicleStat is one row of the per-vehicle breakdown.
type VehicleStat struct {
	ID         string
	Name       string
	TotalFuel  decimal.Decimal
	TotalCost  decimal.Decimal
	Count      int
	Distance   int64 // max(mileage) - min(mileage) within the window
	Efficiency decimal.Decimal
}

// DriverStat is one row of the per-driver breakdown.
type DriverStat struct {
	Pincode      string
	Name         string
	TotalFuel    decimal.Decimal
	TotalCost    decimal.Decimal
	Count        int
	AvgPerRefuel decimal.Decimal
}

// MonthStat aggregates one calendar month (YYYY-MM).
type MonthStat struct {
	Month  string
	Amount decimal.Decimal
	Cost   decimal.Decimal
}

// ActivityEntry is a recent transaction annotated with its replay cost and
// joined display names.
type ActivityEntry struct {
	Transaction
	VehicleName string
	DriverName  string
	Cost        decimal.Decimal
}

// StationSnapshot is the tank-level view. Always computed from the global
// replay, independent of any reporting window.
type StationSnapshot struct {
	CurrentLevel   decimal.Decimal
	Capacity       decimal.Decimal
	FillPercentage decimal.Decimal
	DaysRemaining  int
	FillHistory    []FillPoint
	AvgPrice       decimal.Decimal
	TotalSpend     decimal.Decimal
	InventoryValue decimal.Decimal
}

// AdvancedStats holds the derived fleet-wide metrics.
type AdvancedStats struct {
	FleetEfficiency   decimal.Decimal // arithmetic mean of per-vehicle efficiency
	ForecastNextMonth decimal.Decimal
	PeakHour          string // "HH:00", or "N/A" with no data
	PeakDay           string // weekday name, or "N/A"
}

// Report is the full analytics payload.
type Report struct {
	TotalFuel         decimal.Decimal
	TotalCost         decimal.Decimal
	TotalTransactions int
	TotalVehicles     int
	UnitMode          UnitMode
	ByVehicle         []VehicleStat
	ByDriver          []DriverStat
	ByMonth           []MonthStat
	RecentActivity    []ActivityEntry
	Station           StationSnapshot
	Advanced          AdvancedStats
}

// ReportInput bundles everything BuildReport needs. Transactions are
// expected in storage order; Replay must cover the FULL unfiltered history.
type ReportInput struct {
	Transactions []Transaction
	Vehicles     []Vehicle
	Drivers      []Driver
	Replay       ReplayResult
	Settings     Settings
	Filter       DateRange
	Now          time.Time
}

const recentActivityLimit = 5

// =============================================================================
// REPORT CONSTRUCTION
// =============================================================================

// BuildReport computes the analytics report. Pure: no storage access, no
// mutation of its inputs.
func BuildReport(in ReportInput) Report {
	vehicleNames := make(map[string]Vehicle, len(in.Vehicles))
	for _, v := range in.Vehicles {
		vehicleNames[v.ID] = v
	}
	driverNames := make(map[string]Driver, len(in.Drivers))
	for _, d := range in.Drivers {
		driverNames[d.Pincode] = d
	}

	filtered := make([]Transaction, 0, len(in.Transactions))
	for _, t := range in.Transactions {
		if in.Filter.contains(t.Date) {
			filtered = append(filtered, t)
		}
	}

	rep := Report{
		UnitMode:  in.Settings.UnitMode,
		ByVehicle: groupByVehicle(filtered, in.Replay.Costs, vehicleNames, in.Settings.UnitMode),
		ByDriver:  groupByDriver(filtered, in.Replay.Costs, driverNames),
		ByMonth:   groupByMonth(filtered, in.Replay.Costs),
		TotalFuel: decimal.Zero,
		TotalCost: decimal.Zero,
	}

	seen := make(map[string]bool)
	for _, t := range filtered {
		rep.TotalFuel = rep.TotalFuel.Add(t.Amount)
		rep.TotalCost = rep.TotalCost.Add(in.Replay.Costs[t.ID].Cost)
		seen[t.VehicleID] = true
	}
	rep.TotalTransactions = len(filtered)
	rep.TotalVehicles = len(seen)

	rep.RecentActivity = recentActivity(filtered, in.Replay.Costs, vehicleNames, driverNames)
	rep.Advanced = advancedStats(filtered, rep.ByVehicle, rep.TotalFuel)
	rep.Station = stationSnapshot(in)

	return rep
}

// =============================================================================
// GROUPED STATISTICS
// =============================================================================

func groupByVehicle(txs []Transaction, costs map[int64]TransactionCost, vehicles map[string]Vehicle, mode UnitMode) []VehicleStat {
	type acc struct {
		stat       VehicleStat
		minMileage int64
		maxMileage int64
	}

	var order []string
	groups := make(map[string]*acc)

	for _, t := range txs {
		g, ok := groups[t.VehicleID]
		if !ok {
			name := t.VehicleID // unknown ids fall back to the raw id
			if v, found := vehicles[t.VehicleID]; found && v.Name != "" {
				name = v.Name
			}
			g = &acc{
				stat:       VehicleStat{ID: t.VehicleID, Name: name, TotalFuel: decimal.Zero, TotalCost: decimal.Zero},
				minMileage: t.Mileage,
				maxMileage: t.Mileage,
			}
			groups[t.VehicleID] = g
			order = append(order, t.VehicleID)
		}
		g.stat.TotalFuel = g.stat.TotalFuel.Add(t.Amount)
		g.stat.TotalCost = g.stat.TotalCost.Add(costs[t.ID].Cost)
		g.stat.Count++
		if t.Mileage < g.minMileage {
			g.minMileage = t.Mileage
		}
		if t.Mileage > g.maxMileage {
			g.maxMileage = t.Mileage
		}
	}

	stats := make([]VehicleStat, 0, len(order))
	for _, id := range order {
		g := groups[id]
		g.stat.Distance = g.maxMileage - g.minMileage
		g.stat.Efficiency = efficiency(g.stat.TotalFuel, g.stat.Distance, mode)
		stats = append(stats, g.stat)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalFuel.GreaterThan(stats[j].TotalFuel)
	})
	return stats
}

// efficiency computes liters per 100 distance-units in distance mode, or
// liters per hour in duration mode. A non-positive span yields zero.
func efficiency(fuel decimal.Decimal, distance int64, mode UnitMode) decimal.Decimal {
	if distance <= 0 {
		return decimal.Zero
	}
	perUnit := fuel.Div(decimal.NewFromInt(distance))
	if mode == UnitDuration {
		return perUnit
	}
	return perUnit.Mul(decimal.NewFromInt(100))
}

func groupByDriver(txs []Transaction, costs map[int64]TransactionCost, drivers map[string]Driver) []DriverStat {
	var order []string
	groups := make(map[string]*DriverStat)

	for _, t := range txs {
		g, ok := groups[t.Pincode]
		if !ok {
			name := t.Pincode
			if d, found := drivers[t.Pincode]; found && d.Name != "" {
				name = d.Name
			}
			g = &DriverStat{Pincode: t.Pincode, Name: name, TotalFuel: decimal.Zero, TotalCost: decimal.Zero}
			groups[t.Pincode] = g
			order = append(order, t.Pincode)
		}
		g.TotalFuel = g.TotalFuel.Add(t.Amount)
		g.TotalCost = g.TotalCost.Add(costs[t.ID].Cost)
		g.Count++
	}

	stats := make([]DriverStat, 0, len(order))
	for _, pin := range order {
		g := groups[pin]
		if g.Count > 0 {
			g.AvgPerRefuel = g.TotalFuel.Div(decimal.NewFromInt(int64(g.Count)))
		}
		stats = append(stats, *g)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalFuel.GreaterThan(stats[j].TotalFuel)
	})
	return stats
}

func groupByMonth(txs []Transaction, costs map[int64]TransactionCost) []MonthStat {
	var order []string
	groups := make(map[string]*MonthStat)

	for _, t := range txs {
		if len(t.Date) < 7 {
			continue
		}
		month := t.Date[:7]
		g, ok := groups[month]
		if !ok {
			g = &MonthStat{Month: month, Amount: decimal.Zero, Cost: decimal.Zero}
			groups[month] = g
			order = append(order, month)
		}
		g.Amount = g.Amount.Add(t.Amount)
		g.Cost = g.Cost.Add(costs[t.ID].Cost)
	}

	stats := make([]MonthStat, 0, len(order))
	for _, m := range order {
		stats = append(stats, *groups[m])
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Month > stats[j].Month })
	return stats
}

func recentActivity(txs []Transaction, costs map[int64]TransactionCost, vehicles map[string]Vehicle, drivers map[string]Driver) []ActivityEntry {
	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Date != ordered[j].Date {
			return ordered[i].Date > ordered[j].Date
		}
		return ordered[i].Time > ordered[j].Time
	})

	if len(ordered) > recentActivityLimit {
		ordered = ordered[:recentActivityLimit]
	}

	entries := make([]ActivityEntry, 0, len(ordered))
	for _, t := range ordered {
		e := ActivityEntry{Transaction: t, VehicleName: t.VehicleID, DriverName: t.Pincode, Cost: costs[t.ID].Cost}
		if v, ok := vehicles[t.VehicleID]; ok && v.Name != "" {
			e.VehicleName = v.Name
		}
		if d, ok := drivers[t.Pincode]; ok && d.Name != "" {
			e.DriverName = d.Name
		}
		entries = append(entries, e)
	}
	return entries
}

// =============================================================================
// ADVANCED METRICS
// =============================================================================

func advancedStats(txs []Transaction, byVehicle []VehicleStat, totalFuel decimal.Decimal) AdvancedStats {
	adv := AdvancedStats{
		FleetEfficiency:   decimal.Zero,
		ForecastNextMonth: decimal.Zero,
		PeakHour:          "N/A",
		PeakDay:           "N/A",
	}

	// Fleet efficiency: arithmetic mean across vehicles, not fuel-weighted.
	if len(byVehicle) > 0 {
		sum := decimal.Zero
		for _, v := range byVehicle {
			sum = sum.Add(v.Efficiency)
		}
		adv.FleetEfficiency = sum.Div(decimal.NewFromInt(int64(len(byVehicle))))
	}

	adv.ForecastNextMonth = forecastNextMonth(txs, totalFuel)

	if hour, ok := peakValue(txs, func(t Transaction) (string, bool) {
		if len(t.Time) < 2 {
			return "", false
		}
		return t.Time[:2], true
	}); ok {
		adv.PeakHour = hour + ":00"
	}

	if day, ok := peakValue(txs, func(t Transaction) (string, bool) {
		d, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			return "", false
		}
		return d.Weekday().String(), true
	}); ok {
		adv.PeakDay = day
	}

	return adv
}

// forecastNextMonth extrapolates the window's daily average over 30 days.
func forecastNextMonth(txs []Transaction, totalFuel decimal.Decimal) decimal.Decimal {
	if len(txs) == 0 || !totalFuel.IsPositive() {
		return decimal.Zero
	}

	minDate, maxDate := txs[0].Date, txs[0].Date
	for _, t := range txs[1:] {
		if t.Date < minDate {
			minDate = t.Date
		}
		if t.Date > maxDate {
			maxDate = t.Date
		}
	}

	first, err1 := time.Parse("2006-01-02", minDate)
	last, err2 := time.Parse("2006-01-02", maxDate)
	if err1 != nil || err2 != nil {
		return decimal.Zero
	}

	daySpan := int64(math.Ceil(last.Sub(first).Hours() / 24))
	if daySpan < 1 {
		daySpan = 1
	}
	daily := totalFuel.Div(decimal.NewFromInt(daySpan))
	return daily.Mul(decimal.NewFromInt(30))
}

// peakValue returns the most frequent key emitted by extract. Ties resolve
// to the first-encountered group thanks to the stable descending sort.
func peakValue(txs []Transaction, extract func(Transaction) (string, bool)) (string, bool) {
	var order []string
	counts := make(map[string]int)
	for _, t := range txs {
		key, ok := extract(t)
		if !ok {
			continue
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	if len(order) == 0 {
		return "", false
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	return order[0], true
}

// =============================================================================
// STATION SNAPSHOT
// =============================================================================

func stationSnapshot(in ReportInput) StationSnapshot {
	capacity := in.Settings.TankCapacity
	if !capacity.IsPositive() {
		capacity = DefaultTankCapacity
	}

	level := in.Replay.Final.Volume
	pct := decimal.Zero
	if capacity.IsPositive() {
		pct = level.Div(capacity).Mul(decimal.NewFromInt(100))
		if pct.IsNegative() {
			pct = decimal.Zero
		} else if pct.GreaterThan(decimal.NewFromInt(100)) {
			pct = decimal.NewFromInt(100)
		}
	}

	return StationSnapshot{
		CurrentLevel:   level,
		Capacity:       capacity,
		FillPercentage: pct,
		DaysRemaining:  daysRemaining(in.Transactions, level, in.Now),
		FillHistory:    in.Replay.FillHistory,
		AvgPrice:       in.Replay.Final.AvgPrice,
		TotalSpend:     in.Replay.TotalSpend,
		InventoryValue: in.Replay.Final.Value,
	}
}

// daysRemaining estimates how long the current level lasts at the
// historical (whole-history) daily consumption rate.
func daysRemaining(all []Transaction, level decimal.Decimal, now time.Time) int {
	if len(all) == 0 {
		return 0
	}

	dispensed := decimal.Zero
	firstDate := all[0].Date
	for _, t := range all {
		dispensed = dispensed.Add(t.Amount)
		if t.Date < firstDate {
			firstDate = t.Date
		}
	}
	if !dispensed.IsPositive() {
		return 0
	}

	first, err := time.Parse("2006-01-02", firstDate)
	if err != nil {
		return 0
	}
	days := now.Sub(first).Hours() / 24
	if days < 1 {
		days = 1
	}

	daily := dispensed.Div(decimal.NewFromFloat(days))
	if !daily.IsPositive() {
		return 0
	}
	remaining, _ := level.Div(daily).Round(0).Float64()
	return int(remaining)
}
