/*
Package station provides the core fuel inventory engine.

PURPOSE:
  This package contains the domain types and algorithms for reconstructing
  a fuel tank's volume and monetary value over time. Deliveries (inflows,
  each carrying a price) and dispensing transactions (outflows) are merged
  into one chronological timeline and replayed event by event. Each
  transaction is assigned a historically-accurate unit cost using a moving
  weighted-average-price model.

KEY CONCEPTS IN THIS FILE (types.go):
  - Delivery: A fuel supply event (volume in, optional price per liter)
  - Transaction: A fuel dispensing event (volume out, never priced itself)
  - Vehicle/Driver: Master-data entities referenced by transactions
  - Settings: Unit mode and tank capacity read by the aggregation layer

DESIGN PRINCIPLES:
  1. Determinism: Replay is a pure function of the input event set
  2. Precision: Uses decimal.Decimal to avoid floating-point drift across
     thousands of events; rounding happens only at reporting boundaries
  3. Best effort: Malformed input (missing amounts, unknown ids) degrades
     gracefully instead of raising errors

SEE ALSO:
  - events.go: Event merge and chronological ordering contract
  - replay.go: The forward-replay engine
  - stats.go: Aggregated analytics built on top of the replay output
*/
package station

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MASTER DATA - Vehicles and drivers referenced by transactions
// =============================================================================

// Vehicle is a fleet vehicle keyed by the id the dispensing terminal reports.
type Vehicle struct {
	ID          string
	Name        string
	Description string
	Color       string
}

// Driver is identified by the pincode entered at the pump.
type Driver struct {
	Pincode string
	Name    string
	Color   string
}

// =============================================================================
// EVENTS STORED IN THE LEDGER
// =============================================================================

// Delivery is a fuel supply event. PricePerLiter is optional: a delivery
// without a recorded price inherits the tank's current average price at
// replay time (the "effective price" fallback).
type Delivery struct {
	ID            int64
	Date          string // YYYY-MM-DD
	Amount        decimal.Decimal
	PricePerLiter decimal.NullDecimal
	Notes         string
}

// Transaction is a fuel dispensing event as exported by the terminal.
// Transactions never carry their own price; cost is always derived from
// tank history up to the event.
type Transaction struct {
	ID        int64
	Sequence  string
	Pincode   string
	VehicleID string
	Mileage   int64 // odometer (km) or operating hours, depending on unit mode
	Amount    decimal.Decimal
	ProductID string
	Date      string // YYYY-MM-DD
	Time      string // HH:MM
	RawLine   string // original export line, kept for auditing imports
}

// =============================================================================
// SETTINGS
// =============================================================================

// UnitMode selects how mileage readings are interpreted, which changes the
// shape of the efficiency formula.
type UnitMode string

const (
	// UnitDistance: mileage is an odometer; efficiency is liters per 100 units.
	UnitDistance UnitMode = "distance"
	// UnitDuration: mileage is operating hours; efficiency is liters per hour.
	UnitDuration UnitMode = "duration"
)

// Settings is the key-value state the aggregation layer reads.
type Settings struct {
	UnitMode     UnitMode
	TankCapacity decimal.Decimal
}

// Setting keys as stored.
const (
	SettingUnitMode     = "unit_mode"
	SettingTankCapacity = "tank_capacity"
)

// DefaultTankCapacity is used when no capacity has been configured.
var DefaultTankCapacity = decimal.NewFromInt(10000)
