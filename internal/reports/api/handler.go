package reports_api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/reports"
	"ms-dispatch/internal/utils"
)

// Handler handles report HTTP endpoints
type Handler struct {
	Service *reports.Service
	Logger  *logger.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *reports.Service, logger *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
	}
}

// RegisterRoutes registers the report routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/tokens", h.ListTokens)
		r.Get("/tokens/updated", h.ListUpdatedTokens)
		r.Get("/tokens/deleted", h.ListDeletedTokens)
		r.Get("/daily-summary", h.GetDailyIssueSummary)
		r.Get("/operators", h.ListOperatorSummaries)
		r.Get("/operators/{operatorID}", h.GetOperatorSummary)
	})
}

// ListTokens returns a page of active tokens, newest first.
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTokenFilter(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid filter", err.Error()))
		return
	}

	page, err := h.Service.ListTokens(r.Context(), filter)
	if err != nil {
		h.writeError(w, err, "Failed to list tokens")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tokens fetched", page))
}

// ListUpdatedTokens returns tokens that were edited after issuance.
func (h *Handler) ListUpdatedTokens(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTokenFilter(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid filter", err.Error()))
		return
	}

	page, err := h.Service.ListUpdatedTokens(r.Context(), filter)
	if err != nil {
		h.writeError(w, err, "Failed to list updated tokens")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Updated tokens fetched", page))
}

// ListDeletedTokens returns soft-deleted tokens for the audit trail.
func (h *Handler) ListDeletedTokens(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTokenFilter(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid filter", err.Error()))
		return
	}

	page, err := h.Service.ListDeletedTokens(r.Context(), filter)
	if err != nil {
		h.writeError(w, err, "Failed to list deleted tokens")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Deleted tokens fetched", page))
}

// GetDailyIssueSummary returns per-day issuance rows for the register.
func (h *Handler) GetDailyIssueSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid filter", err.Error()))
		return
	}

	summary, err := h.Service.GetDailyIssueSummary(r.Context(), r.URL.Query().Get("operator_id"), from, to)
	if err != nil {
		h.writeError(w, err, "Failed to build daily summary")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Daily summary fetched", summary))
}

// GetOperatorSummary returns one operator's live counters.
func (h *Handler) GetOperatorSummary(w http.ResponseWriter, r *http.Request) {
	operatorID := chi.URLParam(r, "operatorID")

	summary, err := h.Service.GetOperatorSummary(r.Context(), operatorID)
	if err != nil {
		h.writeError(w, err, "Failed to fetch operator summary")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Operator summary fetched", summary))
}

// ListOperatorSummaries returns counters for every operator.
func (h *Handler) ListOperatorSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Service.ListOperatorSummaries(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to list operator summaries")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Operator summaries fetched", summaries))
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, sql.ErrNoRows) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse(msg, "not found"))
		return
	}
	h.Logger.Error("REPORTS", msg+": "+err.Error())
	utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse(msg, err.Error()))
}

func parseTokenFilter(r *http.Request) (reports.TokenFilter, error) {
	q := r.URL.Query()

	filter := reports.TokenFilter{
		OperatorID: q.Get("operator_id"),
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		return filter, err
	}
	filter.From = from
	filter.To = to

	if raw := q.Get("loaded"); raw != "" {
		loaded, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("loaded must be true or false")
		}
		filter.Loaded = &loaded
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, errors.New("page must be a positive integer")
		}
		filter.Page = page
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}

func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	var from, to time.Time
	if raw := q.Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, errors.New("from must be a YYYY-MM-DD date")
		}
		from = parsed
	}
	if raw := q.Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, errors.New("to must be a YYYY-MM-DD date")
		}
		// To is exclusive; take the whole named day.
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, nil
}
