/*
Package ingest imports fuel terminal export files.

PURPOSE:
  The dispensing terminal exports two kinds of line-oriented CSV files:

  Transaction files - one "01,"-prefixed line per dispensing event:
    01,<rec>,<sequence>,<pincode>,<vehicle>,<?>,<mileage>,<amount>,<product>,<DD.MM.YY>,<HH:MM>,...
  Definition files - master data lines:
    1,<id>,<pincode>     driver definition (the pincode is in the info field)
    2,<vehicle>,<tag>    vehicle definition

  A file's kind is detected from the first matching line prefix. Files are
  deduplicated by SHA-256 content hash: re-uploading the same export is a
  no-op.

ERROR POLICY:
  Best effort, matching the rest of the system: malformed lines are
  skipped, malformed numeric fields parse as zero, and two-digit years are
  expanded to 20YY. Only storage failures surface as errors.
*/
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/fuel-engine/station"
)

// Store is the subset of persistence the importer needs.
type Store interface {
	IsFileProcessed(ctx context.Context, hash string) (bool, error)
	MarkFileProcessed(ctx context.Context, hash, filename string) error
	InsertTransactions(ctx context.Context, txs []station.Transaction) error
	InsertVehicleIfAbsent(ctx context.Context, id, description string) error
	InsertDriverIfAbsent(ctx context.Context, pincode string) error
}

// FileKind is the detected export file type.
type FileKind string

const (
	KindTransactions FileKind = "transactions"
	KindDefinitions  FileKind = "definitions"
)

// Result summarizes one import.
type Result struct {
	Kind     FileKind
	Records  int  // rows written to storage
	Skipped  bool // true when the file hash was already processed
	FileHash string
}

// Importer parses export files and writes their records to storage.
type Importer struct {
	store Store
	log   *zap.Logger
}

// NewImporter creates an importer. A nil logger disables logging.
func NewImporter(store Store, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{store: store, log: log}
}

// ImportFile processes one export file. Already-seen files (by content
// hash) are skipped.
func (imp *Importer) ImportFile(ctx context.Context, filename string, data []byte) (Result, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	seen, err := imp.store.IsFileProcessed(ctx, hash)
	if err != nil {
		return Result{}, err
	}
	if seen {
		imp.log.Info("file already processed, skipping",
			zap.String("filename", filename), zap.String("hash", hash))
		return Result{Skipped: true, FileHash: hash}, nil
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	kind := detectKind(lines)

	res := Result{Kind: kind, FileHash: hash}
	switch kind {
	case KindDefinitions:
		res.Records, err = imp.importDefinitions(ctx, lines)
	default:
		res.Records, err = imp.importTransactions(ctx, lines)
	}
	if err != nil {
		return Result{}, err
	}

	if err := imp.store.MarkFileProcessed(ctx, hash, filename); err != nil {
		return Result{}, err
	}

	imp.log.Info("file imported",
		zap.String("filename", filename),
		zap.String("kind", string(kind)),
		zap.Int("records", res.Records))
	return res, nil
}

// detectKind inspects line prefixes: "1,"/"2," mark a definition file,
// "01," marks a transaction file. Transaction is the default.
func detectKind(lines []string) FileKind {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "Version") {
			continue
		}
		if strings.HasPrefix(trimmed, "01,") {
			return KindTransactions
		}
		if strings.HasPrefix(trimmed, "1,") || strings.HasPrefix(trimmed, "2,") {
			return KindDefinitions
		}
	}
	return KindTransactions
}

func (imp *Importer) importTransactions(ctx context.Context, lines []string) (int, error) {
	var txs []station.Transaction
	for _, line := range lines {
		t, ok := ParseTransactionLine(line)
		if !ok {
			continue
		}
		txs = append(txs, t)
	}
	if len(txs) == 0 {
		return 0, nil
	}
	if err := imp.store.InsertTransactions(ctx, txs); err != nil {
		return 0, fmt.Errorf("failed to store transactions: %w", err)
	}
	return len(txs), nil
}

func (imp *Importer) importDefinitions(ctx context.Context, lines []string) (int, error) {
	count := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		parts := strings.Split(trimmed, ",")
		if len(parts) < 3 {
			continue
		}

		switch strings.TrimSpace(parts[0]) {
		case "1":
			// Driver: the info field carries the pincode.
			pincode := strings.TrimSpace(parts[2])
			if pincode == "" {
				continue
			}
			if err := imp.store.InsertDriverIfAbsent(ctx, pincode); err != nil {
				return count, fmt.Errorf("failed to store driver: %w", err)
			}
			count++
		case "2":
			id := strings.TrimSpace(parts[1])
			if id == "" {
				continue
			}
			if err := imp.store.InsertVehicleIfAbsent(ctx, id, strings.TrimSpace(parts[2])); err != nil {
				return count, fmt.Errorf("failed to store vehicle: %w", err)
			}
			count++
		}
	}
	return count, nil
}

// ParseTransactionLine parses one "01," export line. Returns false for
// blank lines, other record types and lines with too few fields.
func ParseTransactionLine(line string) (station.Transaction, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !strings.HasPrefix(trimmed, "01,") {
		return station.Transaction{}, false
	}

	parts := strings.Split(trimmed, ",")
	if len(parts) < 11 {
		return station.Transaction{}, false
	}

	field := func(i int) string { return strings.TrimSpace(parts[i]) }

	mileage, _ := strconv.ParseInt(field(6), 10, 64)
	amount, err := decimal.NewFromString(field(7))
	if err != nil {
		amount = decimal.Zero
	}

	return station.Transaction{
		Sequence:  field(2),
		Pincode:   field(3),
		VehicleID: field(4),
		Mileage:   mileage,
		Amount:    amount,
		ProductID: field(8),
		Date:      NormalizeDate(field(9)),
		Time:      field(10),
		RawLine:   trimmed,
	}, true
}

// NormalizeDate converts the terminal's DD.MM.YY form to ISO YYYY-MM-DD.
// Anything else passes through unchanged.
func NormalizeDate(raw string) string {
	if !strings.Contains(raw, ".") {
		return raw
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return raw
	}
	return "20" + parts[2] + "-" + parts[1] + "-" + parts[0]
}
