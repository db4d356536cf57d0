/*
handlers.go - HTTP API handlers for the fuel station engine

PURPOSE:
  Exposes the station engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the domain logic in station/.

ENDPOINTS:
  Analytics:
    GET    /api/stats                      Full analytics payload (optional ?start=&end=)
    GET    /api/reports/analytics.xlsx     XLSX export of the same payload

  Transactions:
    GET    /api/transactions               List with costs (?start=&end=&limit=)
    POST   /api/transactions               Create or update
    DELETE /api/transactions/{id}          Delete

  Station:
    GET    /api/station/deliveries         List deliveries
    POST   /api/station/deliveries         Create or update
    DELETE /api/station/deliveries/{id}    Delete

  Master data:
    GET/POST /api/vehicles, DELETE /api/vehicles/{id}
    GET/POST /api/drivers,  DELETE /api/drivers/{pincode}

  Settings:
    GET    /api/settings                   Key-value map
    POST   /api/settings                   Set one key

  Import:
    POST   /api/upload                     Multipart terminal export file

REPLAY SEMANTICS:
  Every analytics request recomputes the full inventory replay from
  scratch. The replay is always global: date filters restrict only which
  transactions enter the grouped statistics, never the tank trajectory.
  This keeps correctness trivial at the cost of O(total events) per call.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input
  - 404: Unknown route under /api
  - 500: Storage errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - station/: The domain logic these handlers call into
*/
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/fuel-engine/ingest"
	"github.com/warp/fuel-engine/station"
	"github.com/warp/fuel-engine/store/sqlite"
)

// maxUploadSize caps export file uploads (terminal exports are small).
const maxUploadSize = 16 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Importer *ingest.Importer
	Log      *zap.Logger

	// Now is the clock used for days-remaining estimates. Overridable in
	// tests; defaults to time.Now.
	Now func() time.Time
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, importer *ingest.Importer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:    store,
		Importer: importer,
		Log:      log,
		Now:      time.Now,
	}
}

// buildReport runs the global replay and aggregates it for the given
// reporting window.
func (h *Handler) buildReport(r *http.Request, filter station.DateRange) (station.Report, error) {
	ctx := r.Context()

	txs, err := h.Store.AllTransactions(ctx)
	if err != nil {
		return station.Report{}, err
	}
	deliveries, err := h.Store.AllDeliveries(ctx)
	if err != nil {
		return station.Report{}, err
	}
	vehicles, err := h.Store.ListVehicles(ctx)
	if err != nil {
		return station.Report{}, err
	}
	drivers, err := h.Store.ListDrivers(ctx)
	if err != nil {
		return station.Report{}, err
	}
	settings, err := h.Store.GetSettings(ctx)
	if err != nil {
		return station.Report{}, err
	}

	replay := station.Replay(station.MergeEvents(deliveries, txs))

	return station.BuildReport(station.ReportInput{
		Transactions: txs,
		Vehicles:     vehicles,
		Drivers:      drivers,
		Replay:       replay,
		Settings:     settings,
		Filter:       filter,
		Now:          h.Now(),
	}), nil
}

func dateRangeFromQuery(r *http.Request) station.DateRange {
	return station.DateRange{
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	}
}

// =============================================================================
// ANALYTICS
// =============================================================================

// GetStats returns the full analytics payload.
// GET /api/stats?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	rep, err := h.buildReport(r, dateRangeFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(rep))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// ListTransactions returns transactions newest first, annotated with
// joined names and replay-assigned costs.
// GET /api/transactions?start=&end=&limit=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := sqlite.TransactionFilter{
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}

	listed, err := h.Store.ListTransactions(ctx, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	// Costs come from the global replay, regardless of the list filter.
	all, err := h.Store.AllTransactions(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}
	deliveries, err := h.Store.AllDeliveries(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load deliveries", err)
		return
	}
	replay := station.Replay(station.MergeEvents(deliveries, all))

	vehicles, err := h.Store.ListVehicles(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vehicles", err)
		return
	}
	drivers, err := h.Store.ListDrivers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list drivers", err)
		return
	}

	vehicleNames := make(map[string]string, len(vehicles))
	for _, v := range vehicles {
		vehicleNames[v.ID] = v.Name
	}
	driverNames := make(map[string]string, len(drivers))
	for _, d := range drivers {
		driverNames[d.Pincode] = d.Name
	}

	dtos := make([]TransactionDTO, 0, len(listed))
	for _, t := range listed {
		dtos = append(dtos, toTransactionDTO(t, vehicleNames[t.VehicleID], driverNames[t.Pincode], replay.Costs[t.ID].Cost))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveTransaction creates (id == 0) or updates a transaction.
// POST /api/transactions
func (h *Handler) SaveTransaction(w http.ResponseWriter, r *http.Request) {
	var req SaveTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t := station.Transaction{
		ID:        req.ID,
		Sequence:  req.Sequence,
		Pincode:   req.Pincode,
		VehicleID: req.VehicleID,
		Mileage:   req.Mileage,
		Amount:    decimal.NewFromFloat(req.Amount),
		ProductID: req.ProductID,
		Date:      req.Date,
		Time:      req.Time,
	}
	if err := h.Store.SaveTransaction(r.Context(), &t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(t, "", "", decimal.Zero))
}

// DeleteTransaction removes a transaction.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction id", err)
		return
	}
	if err := h.Store.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// =============================================================================
// DELIVERIES
// =============================================================================

// ListDeliveries returns deliveries newest first.
// GET /api/station/deliveries
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.Store.ListDeliveries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list deliveries", err)
		return
	}
	dtos := make([]DeliveryDTO, 0, len(deliveries))
	for _, d := range deliveries {
		dtos = append(dtos, toDeliveryDTO(d))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveDelivery creates (id == 0) or updates a delivery.
// POST /api/station/deliveries
func (h *Handler) SaveDelivery(w http.ResponseWriter, r *http.Request) {
	var req SaveDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	d := station.Delivery{
		ID:     req.ID,
		Date:   req.Date,
		Amount: decimal.NewFromFloat(req.Amount),
		Notes:  req.Notes,
	}
	if req.PricePerLiter != nil {
		d.PricePerLiter = decimal.NewNullDecimal(decimal.NewFromFloat(*req.PricePerLiter))
	}
	if err := h.Store.SaveDelivery(r.Context(), &d); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save delivery", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryDTO(d))
}

// DeleteDelivery removes a delivery.
// DELETE /api/station/deliveries/{id}
func (h *Handler) DeleteDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid delivery id", err)
		return
	}
	if err := h.Store.DeleteDelivery(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete delivery", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// =============================================================================
// MASTER DATA
// =============================================================================

// ListVehicles returns all vehicles.
// GET /api/vehicles
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.Store.ListVehicles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vehicles", err)
		return
	}
	dtos := make([]VehicleDTO, 0, len(vehicles))
	for _, v := range vehicles {
		dtos = append(dtos, VehicleDTO{ID: v.ID, Name: v.Name, Description: v.Description, Color: v.Color})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveVehicle creates or replaces a vehicle.
// POST /api/vehicles
func (h *Handler) SaveVehicle(w http.ResponseWriter, r *http.Request) {
	var req VehicleDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Vehicle id is required", nil)
		return
	}
	v := station.Vehicle{ID: req.ID, Name: req.Name, Description: req.Description, Color: req.Color}
	if err := h.Store.UpsertVehicle(r.Context(), v); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DeleteVehicle removes a vehicle.
// DELETE /api/vehicles/{id}
func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteVehicle(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete vehicle", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListDrivers returns all drivers.
// GET /api/drivers
func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.Store.ListDrivers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list drivers", err)
		return
	}
	dtos := make([]DriverDTO, 0, len(drivers))
	for _, d := range drivers {
		dtos = append(dtos, DriverDTO{Pincode: d.Pincode, Name: d.Name, Color: d.Color})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveDriver creates or replaces a driver.
// POST /api/drivers
func (h *Handler) SaveDriver(w http.ResponseWriter, r *http.Request) {
	var req DriverDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Pincode == "" {
		writeError(w, http.StatusBadRequest, "Driver pincode is required", nil)
		return
	}
	d := station.Driver{Pincode: req.Pincode, Name: req.Name, Color: req.Color}
	if err := h.Store.UpsertDriver(r.Context(), d); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save driver", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DeleteDriver removes a driver.
// DELETE /api/drivers/{pincode}
func (h *Handler) DeleteDriver(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteDriver(r.Context(), chi.URLParam(r, "pincode")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete driver", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// =============================================================================
// SETTINGS
// =============================================================================

// GetSettings returns the raw key-value settings map.
// GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Store.AllSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// SetSetting creates or replaces one setting.
// POST /api/settings
func (h *Handler) SetSetting(w http.ResponseWriter, r *http.Request) {
	var req SetSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "Setting key is required", nil)
		return
	}
	if err := h.Store.SetSetting(r.Context(), req.Key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save setting", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// =============================================================================
// FILE UPLOAD
// =============================================================================

// Upload ingests a terminal export file.
// POST /api/upload (multipart, field "file")
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file", err)
		return
	}

	res, err := h.Importer.ImportFile(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process file", err)
		return
	}

	msg := "File processed successfully"
	if res.Skipped {
		msg = "File already processed"
	}
	writeJSON(w, http.StatusOK, UploadResponse{
		Message: msg,
		Kind:    string(res.Kind),
		Records: res.Records,
		Skipped: res.Skipped,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
