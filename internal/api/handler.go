package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eugenenazirov/freight-binpacker/internal/dataset"
	"github.com/eugenenazirov/freight-binpacker/internal/metrics"
	"github.com/eugenenazirov/freight-binpacker/internal/packer"
	"github.com/eugenenazirov/freight-binpacker/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	defaultMaxUploadBytes = 10 << 20
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	resultFilename        = "bin_packing_result.xlsx"
	metricsSource         = "api"
)

// Handler wires packer, storage and metrics dependencies into HTTP handlers.
type Handler struct {
	packer  packer.Packer
	storage storage.Storage
	metrics *metrics.PackMetrics
	logger  *zap.Logger

	maxUploadBytes int64
	clock          func() time.Time

	mu                sync.RWMutex
	settingsUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMetrics records every packing run on m.
func WithMetrics(m *metrics.PackMetrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithLogger sets the logger used for failed runs.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxUploadBytes caps the size of uploaded workbooks.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(p packer.Packer, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		packer:         p,
		storage:        store,
		logger:         zap.NewNop(),
		maxUploadBytes: defaultMaxUploadBytes,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.settingsUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	_ = r
	limits, err := h.storage.GetLimits()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newSettingsResponse(limits, h.currentSettingsUpdatedAt(), ""))
}

func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req limitsPayload
	if err := decodeJSONBody(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	if err := h.storage.SetLimits(req.toLimits()); err != nil {
		if errors.Is(err, storage.ErrInvalidLimits) {
			writeError(w, http.StatusBadRequest, "Invalid settings", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markSettingsUpdated()

	limits, err := h.storage.GetLimits()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(limits, h.currentSettingsUpdatedAt(), "Settings updated successfully"))
}

func (h *Handler) handlePack(w http.ResponseWriter, r *http.Request) {
	var req packRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	items, err := dataset.ItemsFromRecords(req.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid items", err.Error())
		return
	}

	limits, err := h.storage.GetLimits()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if req.Limits != nil {
		limits = req.Limits.toLimits()
	}

	result, elapsed, ok := h.pack(r.Context(), w, items, limits)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, packResponse{
		Report:            dataset.NewReport(result),
		Limits:            newLimitsView(limits),
		CalculationTimeMs: elapsed.Milliseconds(),
	})
}

func (h *Handler) handlePackWorkbook(w http.ResponseWriter, r *http.Request) {
	limits, err := h.storage.GetLimits()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	limits, err = limitsFromQuery(r.URL.Query(), limits)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid settings", err.Error())
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	items, err := dataset.ReadXLSX(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "Workbook too large",
				"upload exceeds "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes")
		case errors.Is(err, dataset.ErrMissingColumns):
			writeError(w, http.StatusBadRequest, "Invalid workbook", err.Error(),
				"Workbook must contain the columns "+strings.Join(dataset.RequiredColumns, ", "))
		case errors.Is(err, dataset.ErrInvalidRow):
			writeError(w, http.StatusBadRequest, "Invalid workbook", err.Error())
		default:
			writeError(w, http.StatusUnprocessableEntity, "Unreadable workbook", err.Error())
		}
		h.metrics.IncFailure(metricsSource)
		return
	}

	result, _, ok := h.pack(r.Context(), w, items, limits)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := dataset.WriteXLSX(&buf, result); err != nil {
		writeInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+resultFilename+`"`)
	w.Header().Set("X-Total-Bins", strconv.Itoa(result.BinCount()))
	w.Header().Set("X-Below-Min-Bins", strconv.Itoa(result.BelowMinCount()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// pack runs the packer and records metrics. On failure the error response has
// already been written and ok is false.
func (h *Handler) pack(ctx context.Context, w http.ResponseWriter, items []packer.Item, limits packer.Limits) (packer.Result, time.Duration, bool) {
	start := time.Now()
	result, err := h.packer.Pack(items, limits)
	elapsed := time.Since(start)

	if err != nil {
		h.metrics.IncFailure(metricsSource)
		h.logger.Warn("packing failed",
			zap.Error(err),
			zap.Int("items", len(items)),
			zap.String("request_id", requestIDFromContext(ctx)),
		)
		if errors.Is(err, packer.ErrInvalidLimits) {
			writeError(w, http.StatusBadRequest, "Invalid settings", err.Error())
		} else {
			writeInternalError(w, err)
		}
		return packer.Result{}, elapsed, false
	}

	h.metrics.ObserveSuccess(metricsSource, elapsed, result)
	return result, elapsed, true
}

func (h *Handler) currentSettingsUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settingsUpdatedAt
}

func (h *Handler) markSettingsUpdated() {
	h.mu.Lock()
	h.settingsUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// limitsFromQuery overrides base with maxBinWeight, minBinWeight and
// maxItemsPerBin query parameters when present.
func limitsFromQuery(q url.Values, base packer.Limits) (packer.Limits, error) {
	limits := base
	if raw := strings.TrimSpace(q.Get("maxBinWeight")); raw != "" {
		w, err := decimal.NewFromString(raw)
		if err != nil {
			return packer.Limits{}, errors.New("maxBinWeight must be a number")
		}
		limits.MaxBinWeight = w
	}
	if raw := strings.TrimSpace(q.Get("minBinWeight")); raw != "" {
		w, err := decimal.NewFromString(raw)
		if err != nil {
			return packer.Limits{}, errors.New("minBinWeight must be a number")
		}
		limits.MinBinWeight = w
	}
	if raw := strings.TrimSpace(q.Get("maxItemsPerBin")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return packer.Limits{}, errors.New("maxItemsPerBin must be an integer")
		}
		limits.MaxItemsPerBin = n
	}
	if err := limits.Validate(); err != nil {
		return packer.Limits{}, err
	}
	return limits, nil
}

type limitsPayload struct {
	MaxBinWeight   decimal.Decimal `json:"maxBinWeight" validate:"gt=0"`
	MinBinWeight   decimal.Decimal `json:"minBinWeight" validate:"gte=0"`
	MaxItemsPerBin int             `json:"maxItemsPerBin" validate:"min=1"`
}

func (p limitsPayload) toLimits() packer.Limits {
	return packer.Limits{
		MaxBinWeight:   p.MaxBinWeight,
		MinBinWeight:   p.MinBinWeight,
		MaxItemsPerBin: p.MaxItemsPerBin,
	}
}

type packRequest struct {
	Items  []dataset.ItemRecord `json:"items" validate:"dive"`
	Limits *limitsPayload       `json:"limits,omitempty"`
}

type limitsView struct {
	MaxBinWeight   float64 `json:"maxBinWeight"`
	MinBinWeight   float64 `json:"minBinWeight"`
	MaxItemsPerBin int     `json:"maxItemsPerBin"`
}

func newLimitsView(l packer.Limits) limitsView {
	return limitsView{
		MaxBinWeight:   l.MaxBinWeight.InexactFloat64(),
		MinBinWeight:   l.MinBinWeight.InexactFloat64(),
		MaxItemsPerBin: l.MaxItemsPerBin,
	}
}

type packResponse struct {
	dataset.Report
	Limits            limitsView `json:"limits"`
	CalculationTimeMs int64      `json:"calculationTimeMs"`
}

type settingsResponse struct {
	limitsView
	UpdatedAt time.Time `json:"updatedAt"`
	Message   string    `json:"message,omitempty"`
}

func newSettingsResponse(l packer.Limits, updatedAt time.Time, message string) settingsResponse {
	return settingsResponse{
		limitsView: newLimitsView(l),
		UpdatedAt:  updatedAt,
		Message:    message,
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeRequestError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeError(w, http.StatusBadRequest, reqErr.message, reqErr.details)
		return
	}
	writeInternalError(w, err)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
