/*
replay.go - Inventory replay engine

PURPOSE:
  Deterministic single forward pass over the merged event timeline,
  reconstructing the tank's volume and monetary value event by event and
  assigning every transaction a historically-accurate unit cost.

MODEL:
  The tank carries a moving weighted average price: value / volume.
  - A delivery adds volume at its recorded price, or at the current average
    price when no price was recorded (the effective-price fallback).
  - A dispense removes volume at the average price as of immediately before
    the event; the snapshot happens before state mutates.
  - If dispensing drives volume to or below zero, both volume and value are
    clamped to exactly zero. The average price is NOT reset: a later
    unpriced delivery inherits the stale average. This is a deliberate
    smoothing policy for over-dispense relative to recorded deliveries.

PRECISION:
  The running state carries full decimal precision. Rounding (2 decimals
  for volumes and money, 3 for prices) is applied only at reporting
  boundaries, never mid-replay.

SEE ALSO:
  - events.go: Timeline construction and ordering contract
  - stats.go: Joins the per-transaction cost map back onto groupings
*/
package station

import "github.com/shopspring/decimal"

// =============================================================================
// TANK STATE - The accumulator threaded through the fold
// =============================================================================

// TankState is the engine-internal running state.
// Invariant: AvgPrice == Value/Volume whenever Volume > 0. When the tank is
// clamped empty, AvgPrice holds its last computed value.
type TankState struct {
	Volume   decimal.Decimal
	Value    decimal.Decimal
	AvgPrice decimal.Decimal
}

// TransactionCost is the replay-assigned pricing for one dispense event.
type TransactionCost struct {
	Price decimal.Decimal // average price at the moment of dispensing
	Cost  decimal.Decimal // Amount * Price
}

// FillPoint is one end-of-day tank level. Exactly one point exists per
// distinct date touched by any event, ascending.
type FillPoint struct {
	Date  string  `json:"date"`
	Level float64 `json:"level"` // rounded to 2 decimals
}

// ReplayResult is everything the aggregation layer needs from one pass.
type ReplayResult struct {
	Final       TankState
	Costs       map[int64]TransactionCost // one entry per input transaction
	FillHistory []FillPoint
	TotalSpend  decimal.Decimal // sum of delivery amount * effective price
}

// =============================================================================
// REPLAY - Fold over the ordered event sequence
// =============================================================================

// Replay runs the forward pass. It is a pure function of the event set:
// replaying the same unmodified input twice yields identical output.
func Replay(events []Event) ReplayResult {
	res := ReplayResult{
		Costs:      make(map[int64]TransactionCost, len(events)),
		TotalSpend: decimal.Zero,
	}

	state := TankState{Volume: decimal.Zero, Value: decimal.Zero, AvgPrice: decimal.Zero}

	for _, ev := range events {
		state = apply(state, ev, &res)
		recordFillPoint(&res, ev.Date, state.Volume)
	}

	res.Final = state
	return res
}

// apply is the (state, event) -> state transition. Side outputs (cost
// assignments, total spend) are written to res.
func apply(state TankState, ev Event, res *ReplayResult) TankState {
	switch ev.Kind {
	case KindDelivery:
		return applyDelivery(state, ev.Delivery, res)
	case KindDispense:
		return applyDispense(state, ev.Transaction, res)
	}
	return state
}

func applyDelivery(state TankState, d *Delivery, res *ReplayResult) TankState {
	// Effective price: recorded price if present, else the current average.
	// Before any priced delivery has ever occurred the average is zero, so
	// an unpriced first delivery contributes volume but no value.
	price := state.AvgPrice
	if d.PricePerLiter.Valid {
		price = d.PricePerLiter.Decimal
	}

	added := d.Amount.Mul(price)
	state.Value = state.Value.Add(added)
	state.Volume = state.Volume.Add(d.Amount)
	res.TotalSpend = res.TotalSpend.Add(added)

	// Recompute the weighted average. A non-positive volume here is only
	// possible with a negative delivery amount (malformed input); the
	// average is left untouched in that case.
	if state.Volume.IsPositive() {
		state.AvgPrice = state.Value.Div(state.Volume)
	}
	return state
}

func applyDispense(state TankState, t *Transaction, res *ReplayResult) TankState {
	// Snapshot the average price BEFORE mutating state: the cost of this
	// dispense is priced against the tank as it stood when the pump ran.
	price := state.AvgPrice
	cost := t.Amount.Mul(price)
	res.Costs[t.ID] = TransactionCost{Price: price, Cost: cost}

	state.Volume = state.Volume.Sub(t.Amount)
	state.Value = state.Value.Sub(cost)

	// Clamp rule: over-dispensing relative to recorded deliveries zeroes
	// the tank instead of accumulating negative-inventory drift. AvgPrice
	// is retained for the next delivery's fallback.
	if !state.Volume.IsPositive() {
		state.Volume = decimal.Zero
		state.Value = decimal.Zero
	}
	return state
}

// recordFillPoint keeps one point per distinct date, holding the level
// after all same-day events. Same-day events overwrite the last point.
func recordFillPoint(res *ReplayResult, date string, volume decimal.Decimal) {
	level, _ := volume.Round(2).Float64()
	if n := len(res.FillHistory); n > 0 && res.FillHistory[n-1].Date == date {
		res.FillHistory[n-1].Level = level
		return
	}
	res.FillHistory = append(res.FillHistory, FillPoint{Date: date, Level: level})
}
