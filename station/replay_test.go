package station_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fuel-engine/station"
)

// =============================================================================
// WEIGHTED AVERAGE PRICING
// =============================================================================

func TestReplay_WeightedAveragePricing(t *testing.T) {
	// GIVEN: The canonical two-delivery scenario
	//   2024-01-01  deliver 1000 L @ 1.50
	//   2024-01-01  dispense 100 L
	//   2024-01-02  deliver 500 L @ 2.00
	//   2024-01-03  dispense 200 L
	// WHEN:  Replaying
	// THEN:  The first dispense costs 150.00 at avg 1.50; after the second
	//        delivery the tank holds 1400 L worth 2350.00; the second
	//        dispense is priced at 2350/1400 per liter

	deliveries := []station.Delivery{
		delivery(1, "2024-01-01", "1000", "1.50"),
		delivery(2, "2024-01-02", "500", "2.00"),
	}
	txs := []station.Transaction{
		dispense(1, "2024-01-01", "08:00", "100"),
		dispense(2, "2024-01-03", "09:30", "200"),
	}

	res := station.Replay(station.MergeEvents(deliveries, txs))

	first := res.Costs[1]
	assert.True(t, first.Price.Equal(dec("1.50")), "first dispense priced at 1.50, got %s", first.Price)
	assert.True(t, first.Cost.Equal(dec("150")), "first dispense cost 150, got %s", first.Cost)

	// Average after the second delivery: (900*1.50 + 500*2.00) / 1400
	wantAvg := dec("2350").Div(dec("1400"))
	second := res.Costs[2]
	assert.True(t, second.Price.Equal(wantAvg), "second dispense priced at blended avg")
	assert.Equal(t, "335.71", second.Cost.Round(2).String())

	assert.True(t, res.Final.Volume.Equal(dec("1200")))
	assert.Equal(t, "2014.29", res.Final.Value.Round(2).String())
	assert.True(t, res.TotalSpend.Equal(dec("2500")), "spend = 1000*1.50 + 500*2.00")
}

func TestReplay_AvgPriceIsValueOverVolume(t *testing.T) {
	// The identity is checked right after the last delivery, where the
	// engine recomputes the weighted average.
	deliveries := []station.Delivery{
		delivery(1, "2024-01-01", "300", "1.41"),
		delivery(2, "2024-01-05", "700", "1.63"),
	}
	txs := []station.Transaction{
		dispense(1, "2024-01-02", "10:00", "55.5"),
	}

	res := station.Replay(station.MergeEvents(deliveries, txs))

	require.True(t, res.Final.Volume.IsPositive())
	assert.True(t, res.Final.AvgPrice.Equal(res.Final.Value.Div(res.Final.Volume)),
		"avg price must equal value/volume while the tank holds fuel")
}

func TestReplay_SameDayDeliveryPricesSameDayDispense(t *testing.T) {
	// GIVEN: A delivery and a dispense on the same date
	// WHEN:  Replaying
	// THEN:  The dispense sees the post-delivery average even though it is
	//        stored before the delivery

	txs := []station.Transaction{dispense(1, "2024-01-01", "06:00", "50")}
	deliveries := []station.Delivery{delivery(1, "2024-01-01", "1000", "1.80")}

	res := station.Replay(station.MergeEvents(deliveries, txs))

	assert.True(t, res.Costs[1].Price.Equal(dec("1.80")))
	assert.True(t, res.Costs[1].Cost.Equal(dec("90")))
}

// =============================================================================
// EFFECTIVE PRICE FALLBACK
// =============================================================================

func TestReplay_UnpricedFirstDeliveryContributesNoValue(t *testing.T) {
	// GIVEN: An unpriced delivery before any priced one
	// WHEN:  Replaying
	// THEN:  Volume grows but value stays zero (average is still zero), and
	//        dispenses against it cost nothing

	deliveries := []station.Delivery{delivery(1, "2024-01-01", "500", "")}
	txs := []station.Transaction{dispense(1, "2024-01-02", "08:00", "100")}

	res := station.Replay(station.MergeEvents(deliveries, txs))

	assert.True(t, res.Final.Volume.Equal(dec("400")))
	assert.True(t, res.Final.Value.IsZero())
	assert.True(t, res.Costs[1].Cost.IsZero())
	assert.True(t, res.TotalSpend.IsZero())
}

func TestReplay_UnpricedDeliveryInheritsCurrentAverage(t *testing.T) {
	// GIVEN: A priced delivery, then an unpriced one
	// WHEN:  Replaying
	// THEN:  The unpriced delivery is valued at the running average, so the
	//        average is unchanged and spend includes the fallback-priced fuel

	deliveries := []station.Delivery{
		delivery(1, "2024-01-01", "1000", "1.50"),
		delivery(2, "2024-01-02", "400", ""),
	}

	res := station.Replay(station.MergeEvents(deliveries, nil))

	assert.True(t, res.Final.AvgPrice.Equal(dec("1.5")))
	assert.True(t, res.Final.Volume.Equal(dec("1400")))
	assert.True(t, res.Final.Value.Equal(dec("2100")))
	assert.True(t, res.TotalSpend.Equal(dec("2100")))
}

// =============================================================================
// OVER-DISPENSE CLAMP
// =============================================================================

func TestReplay_OverDispenseClampsToZero(t *testing.T) {
	// GIVEN: 50 L in the tank, a dispense of 80 L
	// WHEN:  Replaying
	// THEN:  The dispense is still fully priced at the pre-event average, and
	//        the tank is clamped to exactly zero volume and value

	deliveries := []station.Delivery{delivery(1, "2024-01-01", "50", "2.00")}
	txs := []station.Transaction{dispense(1, "2024-01-02", "08:00", "80")}

	res := station.Replay(station.MergeEvents(deliveries, txs))

	assert.True(t, res.Costs[1].Cost.Equal(dec("160")), "cost covers the full dispensed amount")
	assert.True(t, res.Final.Volume.IsZero())
	assert.True(t, res.Final.Value.IsZero())
}

func TestReplay_AvgPriceSurvivesClamp(t *testing.T) {
	// GIVEN: A clamped-empty tank, then an unpriced delivery
	// WHEN:  Replaying
	// THEN:  The stale average from before the clamp prices the new fuel

	deliveries := []station.Delivery{
		delivery(1, "2024-01-01", "50", "2.00"),
		delivery(2, "2024-01-03", "100", ""),
	}
	txs := []station.Transaction{dispense(1, "2024-01-02", "08:00", "80")}

	res := station.Replay(station.MergeEvents(deliveries, txs))

	assert.True(t, res.Final.AvgPrice.Equal(dec("2")))
	assert.True(t, res.Final.Volume.Equal(dec("100")))
	assert.True(t, res.Final.Value.Equal(dec("200")))
}

func TestReplay_DispenseFromEmptyTankCostsZero(t *testing.T) {
	txs := []station.Transaction{dispense(1, "2024-01-01", "08:00", "30")}

	res := station.Replay(station.MergeEvents(nil, txs))

	cost, ok := res.Costs[1]
	require.True(t, ok, "every input transaction gets a cost entry")
	assert.True(t, cost.Cost.IsZero())
	assert.True(t, res.Final.Volume.IsZero())
}

// =============================================================================
// COVERAGE AND DETERMINISM
// =============================================================================

func TestReplay_EveryTransactionGetsACostEntry(t *testing.T) {
	deliveries := []station.Delivery{delivery(1, "2024-01-01", "1000", "1.50")}
	txs := []station.Transaction{
		dispense(1, "2024-01-02", "08:00", "10"),
		dispense(2, "2024-01-02", "09:00", "20"),
		dispense(3, "2024-01-03", "10:00", "30"),
	}

	res := station.Replay(station.MergeEvents(deliveries, txs))

	require.Len(t, res.Costs, 3)
	for _, tx := range txs {
		_, ok := res.Costs[tx.ID]
		assert.True(t, ok, "missing cost for transaction %d", tx.ID)
	}
}

func TestReplay_IsDeterministic(t *testing.T) {
	deliveries := []station.Delivery{
		delivery(1, "2024-01-01", "1000", "1.50"),
		delivery(2, "2024-01-10", "250", ""),
	}
	txs := []station.Transaction{
		dispense(1, "2024-01-05", "08:00", "123.45"),
		dispense(2, "2024-01-15", "09:00", "67.8"),
	}

	first := station.Replay(station.MergeEvents(deliveries, txs))
	second := station.Replay(station.MergeEvents(deliveries, txs))

	assert.True(t, first.Final.Volume.Equal(second.Final.Volume))
	assert.True(t, first.Final.Value.Equal(second.Final.Value))
	assert.True(t, first.TotalSpend.Equal(second.TotalSpend))
	assert.Equal(t, first.FillHistory, second.FillHistory)
	for id, c := range first.Costs {
		assert.True(t, c.Cost.Equal(second.Costs[id].Cost))
	}
}

// =============================================================================
// FILL HISTORY
// =============================================================================

func TestReplay_FillHistoryOnePointPerDate(t *testing.T) {
	// GIVEN: Multiple events on 2024-01-01 and one on 2024-01-02
	// WHEN:  Replaying
	// THEN:  One point per date, each holding the end-of-day level

	deliveries := []station.Delivery{delivery(1, "2024-01-01", "1000", "1.50")}
	txs := []station.Transaction{
		dispense(1, "2024-01-01", "08:00", "100"),
		dispense(2, "2024-01-01", "14:00", "50"),
		dispense(3, "2024-01-02", "09:00", "25"),
	}

	res := station.Replay(station.MergeEvents(deliveries, txs))

	require.Len(t, res.FillHistory, 2)
	assert.Equal(t, station.FillPoint{Date: "2024-01-01", Level: 850}, res.FillHistory[0])
	assert.Equal(t, station.FillPoint{Date: "2024-01-02", Level: 825}, res.FillHistory[1])
}

func TestReplay_FillHistoryDatesAscend(t *testing.T) {
	deliveries := []station.Delivery{
		delivery(1, "2024-01-01", "500", "1.50"),
		delivery(2, "2024-02-01", "500", "1.60"),
	}
	txs := []station.Transaction{
		dispense(1, "2024-01-15", "08:00", "100"),
		dispense(2, "2024-03-01", "08:00", "100"),
	}

	res := station.Replay(station.MergeEvents(deliveries, txs))

	require.Len(t, res.FillHistory, 4)
	for i := 1; i < len(res.FillHistory); i++ {
		assert.Less(t, res.FillHistory[i-1].Date, res.FillHistory[i].Date)
	}
}

func TestReplay_EmptyInputYieldsZeroState(t *testing.T) {
	res := station.Replay(nil)

	assert.True(t, res.Final.Volume.IsZero())
	assert.True(t, res.Final.Value.IsZero())
	assert.True(t, res.Final.AvgPrice.IsZero())
	assert.True(t, res.TotalSpend.IsZero())
	assert.Empty(t, res.FillHistory)
	assert.Empty(t, res.Costs)
}

// Mid-replay precision: rounding only happens at reporting boundaries, so a
// long chain of odd fractions must still reconcile exactly.
func TestReplay_FullPrecisionAcrossChain(t *testing.T) {
	deliveries := []station.Delivery{
		delivery(1, "2024-01-01", "333.33", "1.117"),
		delivery(2, "2024-01-03", "666.67", "1.889"),
	}
	txs := []station.Transaction{
		dispense(1, "2024-01-02", "08:00", "111.11"),
		dispense(2, "2024-01-04", "08:00", "222.22"),
	}

	res := station.Replay(station.MergeEvents(deliveries, txs))

	// value(final) == spend - sum(costs): conservation of money.
	totalCost := decimal.Zero
	for _, c := range res.Costs {
		totalCost = totalCost.Add(c.Cost)
	}
	assert.True(t, res.Final.Value.Equal(res.TotalSpend.Sub(totalCost)),
		"inventory value must reconcile with spend minus allocated cost")
}
