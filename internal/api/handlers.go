package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/XavierBriggs/Pythia/internal/arbitrage"
	"github.com/XavierBriggs/Pythia/internal/scheduler"
	"github.com/XavierBriggs/Pythia/internal/stats"
	"github.com/XavierBriggs/Pythia/pkg/contracts"
	"github.com/XavierBriggs/Pythia/pkg/models"
)

const (
	defaultBankroll      = 100
	defaultHistoryMonths = 12
	maxHistoryMonths     = 60
)

// SportUpdater is the scheduler surface the API serves from
type SportUpdater interface {
	SportKey() string
	Latest(ctx context.Context) (*models.Snapshot, error)
	ForceUpdate(ctx context.Context) (*scheduler.Result, error)
	Status() scheduler.State
}

var _ SportUpdater = (*scheduler.Scheduler)(nil)

// UsageReader exposes the monthly call ledger
type UsageReader interface {
	CurrentUsage(ctx context.Context) (models.Usage, error)
	History(ctx context.Context, maxMonths int) ([]models.UsageRecord, error)
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	sports   []contracts.SportModule
	updaters map[string]SportUpdater
	usage    UsageReader
	vendor   contracts.VendorAdapter
	detector *arbitrage.Detector
	service  string
	log      *zap.Logger
}

// NewHandler creates a handler serving the given sports.
// Every sport in sports must have an updater with the same key.
func NewHandler(
	service string,
	sports []contracts.SportModule,
	updaters []SportUpdater,
	usage UsageReader,
	vendor contracts.VendorAdapter,
	detector *arbitrage.Detector,
	log *zap.Logger,
) *Handler {
	byKey := make(map[string]SportUpdater, len(updaters))
	for _, u := range updaters {
		byKey[u.SportKey()] = u
	}

	return &Handler{
		sports:   sports,
		updaters: byKey,
		usage:    usage,
		vendor:   vendor,
		detector: detector,
		service:  service,
		log:      log.Named("api"),
	}
}

// SportInfo is one entry of the sports listing
type SportInfo struct {
	Key         string     `json:"key"`
	DisplayName string     `json:"display_name"`
	Regions     []string   `json:"regions"`
	Markets     []string   `json:"markets"`
	LastUpdate  *time.Time `json:"last_update"`
	NextUpdate  *time.Time `json:"next_update,omitempty"`
}

// EventsResponse is the latest snapshot of one sport
type EventsResponse struct {
	Sport      string         `json:"sport"`
	Events     []models.Event `json:"events"`
	Count      int            `json:"count"`
	FetchedAt  *time.Time     `json:"fetched_at"`
	AgeSeconds *float64       `json:"age_seconds,omitempty"`
}

// ArbitrageEntry pairs an opportunity with its stake plan for the requested bankroll
type ArbitrageEntry struct {
	arbitrage.Opportunity
	Stakes *arbitrage.StakePlan `json:"stakes,omitempty"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   h.service,
		"sports":    len(h.sports),
	})
}

// ListSports returns every configured sport with its schedule summary
func (h *Handler) ListSports(w http.ResponseWriter, r *http.Request) {
	infos := make([]SportInfo, 0, len(h.sports))
	for _, s := range h.sports {
		info := SportInfo{
			Key:         s.GetSportKey(),
			DisplayName: s.GetDisplayName(),
			Regions:     s.GetRegions(),
			Markets:     s.GetMarkets(),
		}
		if u, ok := h.updaters[info.Key]; ok {
			st := u.Status()
			info.LastUpdate = st.LastUpdate
			next := st.NextUpdate
			info.NextUpdate = &next
		}
		infos = append(infos, info)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sports": infos,
		"count":  len(infos),
	})
}

// GetEvents returns the cached events of a sport without triggering a fetch
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	sport, snapshot, ok := h.latest(w, r)
	if !ok {
		return
	}

	resp := EventsResponse{Sport: sport, Events: []models.Event{}}
	if snapshot != nil {
		resp.Events = snapshot.Events
		resp.FetchedAt = &snapshot.Timestamp
		age := snapshot.Age(time.Now()).Seconds()
		resp.AgeSeconds = &age
	}
	resp.Count = len(resp.Events)

	respondJSON(w, http.StatusOK, resp)
}

// GetAnalysis returns per-event outcome statistics
// Query params: market
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	sport, snapshot, ok := h.latest(w, r)
	if !ok {
		return
	}
	market, ok := h.market(w, r, sport)
	if !ok {
		return
	}

	analyses := stats.AnalyzeEvents(eventsOf(snapshot), market)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sport":    sport,
		"market":   market,
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// GetRecommendations returns outcome summaries across all cached events
// Query params: market
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	sport, snapshot, ok := h.latest(w, r)
	if !ok {
		return
	}
	market, ok := h.market(w, r, sport)
	if !ok {
		return
	}

	summaries := stats.SummarizeOutcomes(eventsOf(snapshot), market)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sport":           sport,
		"market":          market,
		"recommendations": summaries,
		"count":           len(summaries),
	})
}

// GetArbitrage returns arbitrage and value opportunities with stake plans
// Query params: market, bankroll
func (h *Handler) GetArbitrage(w http.ResponseWriter, r *http.Request) {
	sport, snapshot, ok := h.latest(w, r)
	if !ok {
		return
	}
	market, ok := h.market(w, r, sport)
	if !ok {
		return
	}

	bankroll := decimal.NewFromInt(defaultBankroll)
	if raw := r.URL.Query().Get("bankroll"); raw != "" {
		b, err := decimal.NewFromString(raw)
		if err != nil || !b.IsPositive() {
			h.respondError(w, r, http.StatusBadRequest, "bankroll must be a positive number", nil)
			return
		}
		bankroll = b
	}

	opportunities := h.detector.DetectAll(eventsOf(snapshot), []string{market})

	entries := make([]ArbitrageEntry, 0, len(opportunities))
	for _, opp := range opportunities {
		entry := ArbitrageEntry{Opportunity: opp}
		plan, err := arbitrage.AllocateStakes(opp, bankroll)
		if err != nil {
			h.log.Warn("allocate stakes failed", zap.String("event_id", opp.EventID), zap.Error(err))
		} else {
			entry.Stakes = plan
		}
		entries = append(entries, entry)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sport":         sport,
		"market":        market,
		"bankroll":      bankroll,
		"opportunities": entries,
		"count":         len(entries),
	})
}

// GetSchedule returns the scheduler's state for a sport
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	u, ok := h.updater(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, u.Status())
}

// TriggerUpdate forces a fetch.
// Limits answer 429 "try again later", an update in flight answers 409.
func (h *Handler) TriggerUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := h.updater(w, r)
	if !ok {
		return
	}

	result, err := u.ForceUpdate(r.Context())
	switch {
	case errors.Is(err, scheduler.ErrFetchFailed):
		h.respondError(w, r, http.StatusBadGateway, "upstream fetch failed", err)
		return
	case err != nil:
		h.respondError(w, r, http.StatusInternalServerError, "update failed", err)
		return
	case result == nil:
		h.respondError(w, r, http.StatusConflict, "update already in progress", nil)
		return
	case result.Status.Skipped():
		respondJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":      http.StatusText(http.StatusTooManyRequests),
			"message":    "try again later",
			"code":       http.StatusTooManyRequests,
			"status":     result.Status,
			"attempt_id": result.AttemptID,
		})
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetUsage returns the current month's usage and the vendor-reported quota
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.usage.CurrentUsage(r.Context())
	if err != nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "usage unavailable", err)
		return
	}

	resp := map[string]interface{}{"usage": usage}
	if h.vendor != nil {
		resp["rate_limits"] = h.vendor.GetRateLimits()
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetUsageHistory returns past months' usage, most recent first
// Query params: months
func (h *Handler) GetUsageHistory(w http.ResponseWriter, r *http.Request) {
	months := defaultHistoryMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, r, http.StatusBadRequest, "months must be a positive integer", nil)
			return
		}
		months = min(n, maxHistoryMonths)
	}

	history, err := h.usage.History(r.Context(), months)
	if err != nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "usage history unavailable", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"history": history,
		"count":   len(history),
	})
}

func (h *Handler) updater(w http.ResponseWriter, r *http.Request) (SportUpdater, bool) {
	key := chi.URLParam(r, "sport")
	u, ok := h.updaters[key]
	if !ok {
		h.respondError(w, r, http.StatusNotFound, "unknown sport: "+key, nil)
		return nil, false
	}
	return u, true
}

// latest resolves the sport and its cached snapshot; the snapshot may be nil
func (h *Handler) latest(w http.ResponseWriter, r *http.Request) (string, *models.Snapshot, bool) {
	u, ok := h.updater(w, r)
	if !ok {
		return "", nil, false
	}

	snapshot, err := u.Latest(r.Context())
	if err != nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "cache unavailable", err)
		return "", nil, false
	}
	return u.SportKey(), snapshot, true
}

// market reads ?market= and checks the sport fetches it
func (h *Handler) market(w http.ResponseWriter, r *http.Request, sport string) (string, bool) {
	market := r.URL.Query().Get("market")
	if market == "" {
		market = stats.DefaultMarket
	}

	for _, s := range h.sports {
		if s.GetSportKey() == sport && !slices.Contains(s.GetMarkets(), market) {
			h.respondError(w, r, http.StatusBadRequest, "market not fetched for sport: "+market, nil)
			return "", false
		}
	}
	return market, true
}

func eventsOf(snapshot *models.Snapshot) []models.Event {
	if snapshot == nil {
		return nil
	}
	return snapshot.Events
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}

// respondError keeps err in the server log; clients only see message
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		h.log.Error(message,
			zap.Int("status", status),
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
