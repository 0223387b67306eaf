package vehicles_api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/utils"
	"ms-dispatch/internal/vehicles"
)

// Handler serves the vehicle catalogue and rate card.
type Handler struct {
	Store  *vehicles.Store
	Logger *logger.Logger
}

// NewHandler creates a new vehicles handler
func NewHandler(store *vehicles.Store, logger *logger.Logger) *Handler {
	return &Handler{
		Store:  store,
		Logger: logger,
	}
}

// RegisterRoutes registers the catalogue routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/vehicles", h.ListVehicles)
	r.Get("/vehicles/{vehicleID}", h.GetVehicle)
	r.Get("/rates", h.ListRates)
}

// ListVehicles returns the whole vehicle catalogue.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListVehicles(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to list vehicles")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Vehicles fetched", list))
}

// GetVehicle returns one vehicle.
func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicleID")

	vehicle, err := h.Store.GetVehicleByID(r.Context(), vehicleID)
	if err != nil {
		h.writeError(w, err, "Failed to fetch vehicle")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Vehicle fetched", vehicle))
}

// ListRates returns the current rate card.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Store.ListRates(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to list rates")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Rates fetched", rates))
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, sql.ErrNoRows) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse(msg, "not found"))
		return
	}
	h.Logger.Error("VEHICLES", msg+": "+err.Error())
	utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse(msg, err.Error()))
}
