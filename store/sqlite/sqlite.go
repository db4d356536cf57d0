/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Implements storage for all entities the engine works with: dispensing
  transactions, vehicles, drivers, station deliveries, settings and the
  processed-files import log. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  transactions:       Dispensing events exported by the fuel terminal
  station_deliveries: Fuel supply events (with optional price per liter)
  vehicles, drivers:  Master data referenced by transactions
  settings:           Key-value state (unit_mode, tank_capacity)
  processed_files:    SHA-256 hashes of already-imported export files

ORDERING:
  The replay engine depends on storage order for same-day events, so the
  All* readers return rows ordered by rowid (insertion order). The List*
  readers used by the API order by date descending for display.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened with WAL mode so
  readers don't block each other.

SEE ALSO:
  - station/: Domain types stored here
  - api/handlers.go: The HTTP layer reading and writing through this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/fuel-engine/station"
)

// Store implements all persistence used by the API and ingest layers.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Dispensing events from the fuel terminal
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence TEXT,
		pincode TEXT,
		vehicle_id TEXT,
		mileage INTEGER,
		amount REAL,
		product_id TEXT,
		date TEXT,
		time TEXT,
		raw_line TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(date);
	CREATE INDEX IF NOT EXISTS idx_transactions_vehicle
		ON transactions(vehicle_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_pincode
		ON transactions(pincode);

	-- Fuel supply events
	CREATE TABLE IF NOT EXISTS station_deliveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT,
		amount REAL,
		price_per_liter REAL,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_deliveries_date
		ON station_deliveries(date);

	-- Master data
	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		name TEXT,
		description TEXT,
		color TEXT
	);

	CREATE TABLE IF NOT EXISTS drivers (
		pincode TEXT PRIMARY KEY,
		name TEXT,
		color TEXT
	);

	-- Import dedupe log
	CREATE TABLE IF NOT EXISTS processed_files (
		hash TEXT PRIMARY KEY,
		filename TEXT,
		processed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Key-value settings
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	INSERT OR IGNORE INTO settings (key, value) VALUES ('unit_mode', 'distance');
	INSERT OR IGNORE INTO settings (key, value) VALUES ('tank_capacity', '10000');
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionFilter restricts ListTransactions. Start/End apply only when
// both are set (inclusive). Limit <= 0 means no limit.
type TransactionFilter struct {
	Start string
	End   string
	Limit int
}

// AllTransactions returns the full history in insertion order, as the
// replay engine requires.
func (s *Store) AllTransactions(ctx context.Context) ([]station.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, sequence, pincode, vehicle_id, mileage, amount, product_id, date, time, raw_line
		FROM transactions
		ORDER BY id ASC
	`
	return s.queryTransactions(ctx, query)
}

// ListTransactions returns transactions for display, newest first.
func (s *Store) ListTransactions(ctx context.Context, filter TransactionFilter) ([]station.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, sequence, pincode, vehicle_id, mileage, amount, product_id, date, time, raw_line
		FROM transactions
	`
	var args []any
	if filter.Start != "" && filter.End != "" {
		query += ` WHERE date BETWEEN ? AND ?`
		args = append(args, filter.Start, filter.End)
	}
	query += ` ORDER BY date DESC, time DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return s.queryTransactions(ctx, query, args...)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]station.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []station.Transaction
	for rows.Next() {
		var t station.Transaction
		var amount sql.NullFloat64
		var sequence, pincode, vehicleID, productID, date, tm, rawLine sql.NullString
		var mileage sql.NullInt64

		if err := rows.Scan(&t.ID, &sequence, &pincode, &vehicleID, &mileage, &amount, &productID, &date, &tm, &rawLine); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		t.Sequence = sequence.String
		t.Pincode = pincode.String
		t.VehicleID = vehicleID.String
		t.Mileage = mileage.Int64
		t.Amount = decimal.NewFromFloat(amount.Float64) // missing amount -> 0
		t.ProductID = productID.String
		t.Date = date.String
		t.Time = tm.String
		t.RawLine = rawLine.String
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// SaveTransaction inserts when ID is zero (assigning the new id) and
// updates otherwise.
func (s *Store) SaveTransaction(ctx context.Context, t *station.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount, _ := t.Amount.Float64()

	if t.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO transactions (sequence, pincode, vehicle_id, mileage, amount, product_id, date, time, raw_line)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Sequence, t.Pincode, t.VehicleID, t.Mileage, amount, t.ProductID, t.Date, t.Time, t.RawLine)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		t.ID, _ = res.LastInsertId()
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET sequence = ?, pincode = ?, vehicle_id = ?, mileage = ?, amount = ?, product_id = ?, date = ?, time = ?
		WHERE id = ?`,
		t.Sequence, t.Pincode, t.VehicleID, t.Mileage, amount, t.ProductID, t.Date, t.Time, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

// InsertTransactions inserts a batch atomically (used by file ingest).
func (s *Store) InsertTransactions(ctx context.Context, txs []station.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	stmt, err := sqlTx.PrepareContext(ctx, `
		INSERT INTO transactions (sequence, pincode, vehicle_id, mileage, amount, product_id, date, time, raw_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		amount, _ := t.Amount.Float64()
		if _, err := stmt.ExecContext(ctx, t.Sequence, t.Pincode, t.VehicleID, t.Mileage, amount, t.ProductID, t.Date, t.Time, t.RawLine); err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}

	return sqlTx.Commit()
}

// DeleteTransaction removes a transaction by id.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

// =============================================================================
// DELIVERIES
// =============================================================================

// AllDeliveries returns the full delivery history in insertion order.
func (s *Store) AllDeliveries(ctx context.Context) ([]station.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDeliveries(ctx, `
		SELECT id, date, amount, price_per_liter, notes
		FROM station_deliveries
		ORDER BY id ASC
	`)
}

// ListDeliveries returns deliveries for display, newest first.
func (s *Store) ListDeliveries(ctx context.Context) ([]station.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDeliveries(ctx, `
		SELECT id, date, amount, price_per_liter, notes
		FROM station_deliveries
		ORDER BY date DESC, id DESC
	`)
}

func (s *Store) queryDeliveries(ctx context.Context, query string) ([]station.Delivery, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var out []station.Delivery
	for rows.Next() {
		var d station.Delivery
		var amount, price sql.NullFloat64
		var date, notes sql.NullString

		if err := rows.Scan(&d.ID, &date, &amount, &price, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}

		d.Date = date.String
		d.Amount = decimal.NewFromFloat(amount.Float64) // missing amount -> 0
		if price.Valid {
			d.PricePerLiter = decimal.NewNullDecimal(decimal.NewFromFloat(price.Float64))
		}
		d.Notes = notes.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveDelivery inserts when ID is zero and updates otherwise.
func (s *Store) SaveDelivery(ctx context.Context, d *station.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount, _ := d.Amount.Float64()
	var price any
	if d.PricePerLiter.Valid {
		price, _ = d.PricePerLiter.Decimal.Float64()
	}

	if d.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO station_deliveries (date, amount, price_per_liter, notes)
			VALUES (?, ?, ?, ?)`,
			d.Date, amount, price, d.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert delivery: %w", err)
		}
		d.ID, _ = res.LastInsertId()
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE station_deliveries SET date = ?, amount = ?, price_per_liter = ?, notes = ?
		WHERE id = ?`,
		d.Date, amount, price, d.Notes, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}
	return nil
}

// DeleteDelivery removes a delivery by id.
func (s *Store) DeleteDelivery(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM station_deliveries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete delivery: %w", err)
	}
	return nil
}

// =============================================================================
// VEHICLES
// =============================================================================

// ListVehicles returns all vehicles ordered by id.
func (s *Store) ListVehicles(ctx context.Context) ([]station.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, color FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var out []station.Vehicle
	for rows.Next() {
		var v station.Vehicle
		var name, description, color sql.NullString
		if err := rows.Scan(&v.ID, &name, &description, &color); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		v.Name = name.String
		v.Description = description.String
		v.Color = color.String
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpsertVehicle creates or replaces a vehicle record.
func (s *Store) UpsertVehicle(ctx context.Context, v station.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO vehicles (id, name, description, color) VALUES (?, ?, ?, ?)`,
		v.ID, v.Name, v.Description, v.Color)
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle: %w", err)
	}
	return nil
}

// InsertVehicleIfAbsent records a vehicle discovered during file ingest
// without clobbering manually edited names.
func (s *Store) InsertVehicleIfAbsent(ctx context.Context, id, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO vehicles (id, description) VALUES (?, ?)`, id, description)
	if err != nil {
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}
	return nil
}

// DeleteVehicle removes a vehicle by id.
func (s *Store) DeleteVehicle(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	return nil
}

// =============================================================================
// DRIVERS
// =============================================================================

// ListDrivers returns all drivers ordered by pincode.
func (s *Store) ListDrivers(ctx context.Context) ([]station.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT pincode, name, color FROM drivers ORDER BY pincode`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer rows.Close()

	var out []station.Driver
	for rows.Next() {
		var d station.Driver
		var name, color sql.NullString
		if err := rows.Scan(&d.Pincode, &name, &color); err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		d.Name = name.String
		d.Color = color.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertDriver creates or replaces a driver record.
func (s *Store) UpsertDriver(ctx context.Context, d station.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO drivers (pincode, name, color) VALUES (?, ?, ?)`,
		d.Pincode, d.Name, d.Color)
	if err != nil {
		return fmt.Errorf("failed to upsert driver: %w", err)
	}
	return nil
}

// InsertDriverIfAbsent records a driver discovered during file ingest.
func (s *Store) InsertDriverIfAbsent(ctx context.Context, pincode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO drivers (pincode) VALUES (?)`, pincode)
	if err != nil {
		return fmt.Errorf("failed to insert driver: %w", err)
	}
	return nil
}

// DeleteDriver removes a driver by pincode.
func (s *Store) DeleteDriver(ctx context.Context, pincode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM drivers WHERE pincode = ?`, pincode)
	if err != nil {
		return fmt.Errorf("failed to delete driver: %w", err)
	}
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// AllSettings returns the raw key-value map.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// GetSettings returns the typed settings the aggregation layer reads,
// applying defaults for missing or malformed values.
func (s *Store) GetSettings(ctx context.Context) (station.Settings, error) {
	raw, err := s.AllSettings(ctx)
	if err != nil {
		return station.Settings{}, err
	}

	settings := station.Settings{
		UnitMode:     station.UnitDistance,
		TankCapacity: station.DefaultTankCapacity,
	}
	if raw[station.SettingUnitMode] == string(station.UnitDuration) {
		settings.UnitMode = station.UnitDuration
	}
	if capacity, err := decimal.NewFromString(raw[station.SettingTankCapacity]); err == nil && capacity.IsPositive() {
		settings.TankCapacity = capacity
	}
	return settings, nil
}

// SetSetting creates or replaces one setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// =============================================================================
// PROCESSED FILES
// =============================================================================

// IsFileProcessed reports whether a file with this content hash was
// already imported.
func (s *Store) IsFileProcessed(ctx context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM processed_files WHERE hash = ?`, hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check processed file: %w", err)
	}
	return true, nil
}

// MarkFileProcessed records a successful import.
func (s *Store) MarkFileProcessed(ctx context.Context, hash, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO processed_files (hash, filename) VALUES (?, ?)`, hash, filename)
	if err != nil {
		return fmt.Errorf("failed to mark file processed: %w", err)
	}
	return nil
}
