package station_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fuel-engine/station"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func tx(id int64, date, tm, amount, vehicleID, pincode string, mileage int64) station.Transaction {
	return station.Transaction{
		ID:        id,
		Date:      date,
		Time:      tm,
		Amount:    dec(amount),
		VehicleID: vehicleID,
		Pincode:   pincode,
		Mileage:   mileage,
	}
}

// buildInput wires a full-history replay into a report input the way the
// HTTP layer does it.
func buildInput(deliveries []station.Delivery, txs []station.Transaction) station.ReportInput {
	return station.ReportInput{
		Transactions: txs,
		Vehicles: []station.Vehicle{
			{ID: "V1", Name: "Truck Alpha"},
			{ID: "V2", Name: "Truck Beta"},
		},
		Drivers: []station.Driver{
			{Pincode: "1234", Name: "Alice"},
			{Pincode: "5678", Name: "Bob"},
		},
		Replay:   station.Replay(station.MergeEvents(deliveries, txs)),
		Settings: station.Settings{UnitMode: station.UnitDistance, TankCapacity: dec("10000")},
		Now:      time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// TOTALS AND MONTHLY BREAKDOWN
// =============================================================================

func TestBuildReport_TotalsAndMonthly(t *testing.T) {
	// GIVEN: The canonical scenario (1000@1.50, -100, +500@2.00, -200)
	// WHEN:  Building the unfiltered report
	// THEN:  January carries 300 L at 485.71 replay-derived cost

	deliveries := []station.Delivery{
		delivery(1, "2024-01-01", "1000", "1.50"),
		delivery(2, "2024-01-02", "500", "2.00"),
	}
	txs := []station.Transaction{
		tx(1, "2024-01-01", "08:15", "100", "V1", "1234", 1000),
		tx(2, "2024-01-03", "08:45", "200", "V1", "5678", 2000),
	}

	rep := station.BuildReport(buildInput(deliveries, txs))

	assert.True(t, rep.TotalFuel.Equal(dec("300")))
	assert.Equal(t, "485.71", rep.TotalCost.Round(2).String())
	assert.Equal(t, 2, rep.TotalTransactions)
	assert.Equal(t, 1, rep.TotalVehicles)

	require.Len(t, rep.ByMonth, 1)
	assert.Equal(t, "2024-01", rep.ByMonth[0].Month)
	assert.True(t, rep.ByMonth[0].Amount.Equal(dec("300")))
	assert.Equal(t, "485.71", rep.ByMonth[0].Cost.Round(2).String())
}

func TestBuildReport_MonthsSortedDescending(t *testing.T) {
	txs := []station.Transaction{
		tx(1, "2023-11-10", "08:00", "10", "V1", "1234", 100),
		tx(2, "2024-01-05", "08:00", "20", "V1", "1234", 200),
		tx(3, "2023-12-20", "08:00", "30", "V1", "1234", 300),
	}

	rep := station.BuildReport(buildInput(nil, txs))

	require.Len(t, rep.ByMonth, 3)
	assert.Equal(t, "2024-01", rep.ByMonth[0].Month)
	assert.Equal(t, "2023-12", rep.ByMonth[1].Month)
	assert.Equal(t, "2023-11", rep.ByMonth[2].Month)
}

// =============================================================================
// PER-VEHICLE STATISTICS
// =============================================================================

func TestBuildReport_VehicleDistanceAndEfficiency(t *testing.T) {
	// GIVEN: One vehicle refueling at odometer 1000 and 2000, 300 L total
	// WHEN:  Building the report in distance mode
	// THEN:  Distance is 1000 and efficiency is 30 L/100 units

	deliveries := []station.Delivery{delivery(1, "2024-01-01", "1000", "1.50")}
	txs := []station.Transaction{
		tx(1, "2024-01-02", "08:00", "100", "V1", "1234", 1000),
		tx(2, "2024-01-05", "08:00", "200", "V1", "1234", 2000),
	}

	rep := station.BuildReport(buildInput(deliveries, txs))

	require.Len(t, rep.ByVehicle, 1)
	v := rep.ByVehicle[0]
	assert.Equal(t, "Truck Alpha", v.Name)
	assert.Equal(t, int64(1000), v.Distance)
	assert.True(t, v.Efficiency.Equal(dec("30")))
	assert.Equal(t, 2, v.Count)
}

func TestBuildReport_DurationModeEfficiency(t *testing.T) {
	// Duration mode: mileage readings are operating hours, efficiency is
	// liters per hour without the x100 scaling.
	in := buildInput(nil, []station.Transaction{
		tx(1, "2024-01-02", "08:00", "100", "V1", "1234", 50),
		tx(2, "2024-01-05", "08:00", "100", "V1", "1234", 150),
	})
	in.Settings.UnitMode = station.UnitDuration

	rep := station.BuildReport(in)

	require.Len(t, rep.ByVehicle, 1)
	assert.True(t, rep.ByVehicle[0].Efficiency.Equal(dec("2")), "200 L over 100 hours")
	assert.Equal(t, station.UnitDuration, rep.UnitMode)
}

func TestBuildReport_SingleRefuelHasZeroEfficiency(t *testing.T) {
	// One reading means zero distance span; efficiency degrades to zero
	// rather than dividing by zero.
	rep := station.BuildReport(buildInput(nil, []station.Transaction{
		tx(1, "2024-01-02", "08:00", "100", "V1", "1234", 1000),
	}))

	require.Len(t, rep.ByVehicle, 1)
	assert.Equal(t, int64(0), rep.ByVehicle[0].Distance)
	assert.True(t, rep.ByVehicle[0].Efficiency.IsZero())
}

func TestBuildReport_VehiclesSortedByFuelDescending(t *testing.T) {
	txs := []station.Transaction{
		tx(1, "2024-01-02", "08:00", "50", "V1", "1234", 0),
		tx(2, "2024-01-03", "08:00", "200", "V2", "1234", 0),
		tx(3, "2024-01-04", "08:00", "75", "V1", "1234", 0),
	}

	rep := station.BuildReport(buildInput(nil, txs))

	require.Len(t, rep.ByVehicle, 2)
	assert.Equal(t, "V2", rep.ByVehicle[0].ID)
	assert.Equal(t, "V1", rep.ByVehicle[1].ID)
}

func TestBuildReport_UnknownVehicleFallsBackToRawID(t *testing.T) {
	rep := station.BuildReport(buildInput(nil, []station.Transaction{
		tx(1, "2024-01-02", "08:00", "10", "V999", "0000", 0),
	}))

	require.Len(t, rep.ByVehicle, 1)
	assert.Equal(t, "V999", rep.ByVehicle[0].Name)
	require.Len(t, rep.ByDriver, 1)
	assert.Equal(t, "0000", rep.ByDriver[0].Name)
}

// =============================================================================
// PER-DRIVER STATISTICS
// =============================================================================

func TestBuildReport_DriverAverages(t *testing.T) {
	txs := []station.Transaction{
		tx(1, "2024-01-02", "08:00", "40", "V1", "1234", 0),
		tx(2, "2024-01-03", "08:00", "60", "V1", "1234", 0),
		tx(3, "2024-01-04", "08:00", "30", "V2", "5678", 0),
	}

	rep := station.BuildReport(buildInput(nil, txs))

	require.Len(t, rep.ByDriver, 2)
	alice := rep.ByDriver[0]
	assert.Equal(t, "Alice", alice.Name)
	assert.True(t, alice.TotalFuel.Equal(dec("100")))
	assert.Equal(t, 2, alice.Count)
	assert.True(t, alice.AvgPerRefuel.Equal(dec("50")))

	assert.Equal(t, "Bob", rep.ByDriver[1].Name)
}

// =============================================================================
// RECENT ACTIVITY
// =============================================================================

func TestBuildReport_RecentActivityNewestFirstCappedAtFive(t *testing.T) {
	var txs []station.Transaction
	for i := int64(1); i <= 7; i++ {
		txs = append(txs, tx(i, "2024-01-0"+string(rune('0'+i)), "08:00", "10", "V1", "1234", 0))
	}

	rep := station.BuildReport(buildInput(nil, txs))

	require.Len(t, rep.RecentActivity, 5)
	assert.Equal(t, "2024-01-07", rep.RecentActivity[0].Date)
	assert.Equal(t, "2024-01-03", rep.RecentActivity[4].Date)
	assert.Equal(t, "Truck Alpha", rep.RecentActivity[0].VehicleName)
	assert.Equal(t, "Alice", rep.RecentActivity[0].DriverName)
}

func TestBuildReport_RecentActivityBreaksDateTiesByTime(t *testing.T) {
	txs := []station.Transaction{
		tx(1, "2024-01-05", "08:00", "10", "V1", "1234", 0),
		tx(2, "2024-01-05", "17:30", "10", "V1", "1234", 0),
		tx(3, "2024-01-05", "12:15", "10", "V1", "1234", 0),
	}

	rep := station.BuildReport(buildInput(nil, txs))

	require.Len(t, rep.RecentActivity, 3)
	assert.Equal(t, "17:30", rep.RecentActivity[0].Time)
	assert.Equal(t, "12:15", rep.RecentActivity[1].Time)
	assert.Equal(t, "08:00", rep.RecentActivity[2].Time)
}

// =============================================================================
// FILTER WINDOW
// =============================================================================

func TestBuildReport_FilterRestrictsGroupsButNotStation(t *testing.T) {
	// GIVEN: History spanning two days and a window covering only the second
	// WHEN:  Building a filtered and an unfiltered report
	// THEN:  Grouped stats shrink to the window; the station snapshot is
	//        byte-for-byte the same whole-history view in both

	deliveries := []station.Delivery{
		delivery(1, "2024-01-01", "1000", "1.50"),
		delivery(2, "2024-01-02", "500", "2.00"),
	}
	txs := []station.Transaction{
		tx(1, "2024-01-01", "08:15", "100", "V1", "1234", 1000),
		tx(2, "2024-01-03", "08:45", "200", "V1", "5678", 2000),
	}

	full := station.BuildReport(buildInput(deliveries, txs))

	in := buildInput(deliveries, txs)
	in.Filter = station.DateRange{Start: "2024-01-03", End: "2024-01-03"}
	windowed := station.BuildReport(in)

	assert.True(t, windowed.TotalFuel.Equal(dec("200")))
	assert.Equal(t, 1, windowed.TotalTransactions)
	require.Len(t, windowed.RecentActivity, 1)

	// The windowed transaction keeps its whole-history cost.
	assert.Equal(t, "335.71", windowed.TotalCost.Round(2).String())

	assert.True(t, windowed.Station.CurrentLevel.Equal(full.Station.CurrentLevel))
	assert.True(t, windowed.Station.AvgPrice.Equal(full.Station.AvgPrice))
	assert.True(t, windowed.Station.TotalSpend.Equal(full.Station.TotalSpend))
	assert.Equal(t, windowed.Station.FillHistory, full.Station.FillHistory)
	assert.Equal(t, windowed.Station.DaysRemaining, full.Station.DaysRemaining)
}

func TestBuildReport_HalfOpenFilterIsIgnored(t *testing.T) {
	txs := []station.Transaction{
		tx(1, "2024-01-01", "08:00", "10", "V1", "1234", 0),
		tx(2, "2024-01-05", "08:00", "20", "V1", "1234", 0),
	}

	in := buildInput(nil, txs)
	in.Filter = station.DateRange{Start: "2024-01-05"} // no end

	rep := station.BuildReport(in)
	assert.Equal(t, 2, rep.TotalTransactions, "a window needs both ends to apply")
}

// =============================================================================
// ADVANCED METRICS
// =============================================================================

func TestBuildReport_FleetEfficiencyIsArithmeticMean(t *testing.T) {
	// GIVEN: Two vehicles with efficiencies 30 and 10, very different fuel
	//        volumes
	// WHEN:  Building the report
	// THEN:  Fleet efficiency is (30+10)/2 = 20 - every vehicle weighs the
	//        same regardless of how much it burned

	txs := []station.Transaction{
		tx(1, "2024-01-02", "08:00", "100", "V1", "1234", 1000),
		tx(2, "2024-01-05", "08:00", "200", "V1", "1234", 2000),
		tx(3, "2024-01-02", "09:00", "5", "V2", "5678", 500),
		tx(4, "2024-01-05", "09:00", "5", "V2", "5678", 600),
	}

	rep := station.BuildReport(buildInput(nil, txs))

	assert.True(t, rep.Advanced.FleetEfficiency.Equal(dec("20")),
		"got %s", rep.Advanced.FleetEfficiency)
}

func TestBuildReport_ForecastExtrapolatesDailyAverage(t *testing.T) {
	// 300 L over a 30-day span: 10 L/day, forecast 300 L for next month.
	txs := []station.Transaction{
		tx(1, "2024-01-01", "08:00", "100", "V1", "1234", 0),
		tx(2, "2024-01-31", "08:00", "200", "V1", "1234", 0),
	}

	rep := station.BuildReport(buildInput(nil, txs))

	assert.True(t, rep.Advanced.ForecastNextMonth.Equal(dec("300")))
}

func TestBuildReport_ForecastSingleDayUsesOneDaySpan(t *testing.T) {
	txs := []station.Transaction{
		tx(1, "2024-01-01", "08:00", "40", "V1", "1234", 0),
		tx(2, "2024-01-01", "14:00", "10", "V1", "1234", 0),
	}

	rep := station.BuildReport(buildInput(nil, txs))

	assert.True(t, rep.Advanced.ForecastNextMonth.Equal(dec("1500")), "50 L/day * 30")
}

func TestBuildReport_PeakHourAndDay(t *testing.T) {
	// 2024-01-01 and 2024-01-08 are Mondays, 2024-01-03 a Wednesday.
	txs := []station.Transaction{
		tx(1, "2024-01-01", "08:15", "10", "V1", "1234", 0),
		tx(2, "2024-01-03", "08:45", "10", "V1", "1234", 0),
		tx(3, "2024-01-08", "14:00", "10", "V1", "1234", 0),
	}

	rep := station.BuildReport(buildInput(nil, txs))

	assert.Equal(t, "08:00", rep.Advanced.PeakHour)
	assert.Equal(t, "Monday", rep.Advanced.PeakDay)
}

func TestBuildReport_NoDataDefaults(t *testing.T) {
	rep := station.BuildReport(buildInput(nil, nil))

	assert.Equal(t, "N/A", rep.Advanced.PeakHour)
	assert.Equal(t, "N/A", rep.Advanced.PeakDay)
	assert.True(t, rep.Advanced.ForecastNextMonth.IsZero())
	assert.True(t, rep.Advanced.FleetEfficiency.IsZero())
	assert.Empty(t, rep.ByVehicle)
	assert.Empty(t, rep.ByDriver)
	assert.Empty(t, rep.ByMonth)
}

// =============================================================================
// STATION SNAPSHOT
// =============================================================================

func TestBuildReport_StationSnapshot(t *testing.T) {
	deliveries := []station.Delivery{delivery(1, "2024-01-01", "1000", "1.50")}
	txs := []station.Transaction{
		tx(1, "2024-01-01", "08:00", "100", "V1", "1234", 0),
	}

	in := buildInput(deliveries, txs)
	in.Settings.TankCapacity = dec("1800")

	rep := station.BuildReport(in)

	assert.True(t, rep.Station.CurrentLevel.Equal(dec("900")))
	assert.True(t, rep.Station.Capacity.Equal(dec("1800")))
	assert.True(t, rep.Station.FillPercentage.Equal(dec("50")))
	assert.True(t, rep.Station.InventoryValue.Equal(dec("1350")))
	assert.True(t, rep.Station.TotalSpend.Equal(dec("1500")))
}

func TestBuildReport_StationUsesDefaultCapacityWhenUnset(t *testing.T) {
	in := buildInput(nil, nil)
	in.Settings.TankCapacity = dec("0")

	rep := station.BuildReport(in)
	assert.True(t, rep.Station.Capacity.Equal(station.DefaultTankCapacity))
}

func TestBuildReport_DaysRemaining(t *testing.T) {
	// GIVEN: 300 L dispensed over the 10 days before Now, 1200 L in the tank
	// WHEN:  Building the report
	// THEN:  30 L/day historical rate leaves 40 days of runway

	deliveries := []station.Delivery{
		delivery(1, "2024-01-01", "1000", "1.50"),
		delivery(2, "2024-01-02", "500", "2.00"),
	}
	txs := []station.Transaction{
		tx(1, "2024-01-01", "08:15", "100", "V1", "1234", 0),
		tx(2, "2024-01-03", "08:45", "200", "V1", "5678", 0),
	}

	in := buildInput(deliveries, txs)
	in.Now = time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

	rep := station.BuildReport(in)
	assert.Equal(t, 40, rep.Station.DaysRemaining)
}

func TestBuildReport_DaysRemainingZeroWithoutHistory(t *testing.T) {
	rep := station.BuildReport(buildInput(nil, nil))
	assert.Equal(t, 0, rep.Station.DaysRemaining)
}
