package ledger_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-dispatch/internal/auth"
	"ms-dispatch/internal/ledger/qr"
	"ms-dispatch/internal/ledger/service"
	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/utils"
)

// Handler exposes the token ledger over HTTP.
type Handler struct {
	Ledger      *service.LedgerService
	QRGenerator *qr.QRGenerator
	Logger      *logger.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(ledger *service.LedgerService, qrGen *qr.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{
		Ledger:      ledger,
		QRGenerator: qrGen,
		Logger:      log,
	}
}

// CreateToken issues a new dispatch token for an operator.
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req service.IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	token, err := h.Ledger.IssueToken(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to create token")
		return
	}

	h.Logger.LogToken("CREATE", token.TokenNo, "token issued for operator "+token.OperatorID)
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Token created", token))
}

// UpdateToken applies a patch to an existing token.
func (h *Handler) UpdateToken(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")

	var req service.UpdateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	token, err := h.Ledger.UpdateToken(r.Context(), tokenID, auth.Username(r.Context()), req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to update token")
		return
	}

	h.Logger.LogToken("UPDATE", token.TokenNo, "token updated by "+auth.Username(r.Context()))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Token updated", token))
}

// DeleteToken soft-deletes a token and rolls back its counter effect.
func (h *Handler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")

	if err := h.Ledger.DeleteToken(r.Context(), tokenID); err != nil {
		h.writeServiceError(w, err, "Failed to delete token")
		return
	}

	h.Logger.LogToken("DELETE", tokenID, "token deleted by "+auth.Username(r.Context()))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Token deleted", nil))
}

// ViewToken returns a single non-deleted token.
func (h *Handler) ViewToken(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")

	token, err := h.Ledger.GetToken(r.Context(), tokenID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch token")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Token fetched", token))
}

// TokenQR returns the token's encrypted QR code as a PNG.
func (h *Handler) TokenQR(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")

	token, err := h.Ledger.GetToken(r.Context(), tokenID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch token")
		return
	}

	png, err := h.QRGenerator.GenerateEncryptedQR(*token)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to generate QR code", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// MarkLoaded flips a token's one-way loaded flag by ID.
func (h *Handler) MarkLoaded(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")

	token, err := h.Ledger.MarkLoaded(r.Context(), tokenID, auth.Username(r.Context()), auth.Role(r.Context()))
	if err != nil {
		h.writeServiceError(w, err, "Failed to mark token loaded")
		return
	}

	h.Logger.LogToken("LOAD", token.TokenNo, "token marked loaded by "+auth.Username(r.Context()))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Token marked loaded", token))
}

// CheckoutToken marks a token loaded from a scanned QR code at the exit gate.
// Expected POST request body: {"encrypted_qr": "base64_encrypted_string"}
func (h *Handler) CheckoutToken(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		EncryptedQR string `json:"encrypted_qr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if requestBody.EncryptedQR == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("encrypted_qr is required", ""))
		return
	}

	payload, err := h.QRGenerator.DecryptPayload(requestBody.EncryptedQR)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid QR code", err.Error()))
		return
	}

	token, err := h.Ledger.GetToken(r.Context(), payload.TokenID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch token")
		return
	}
	if token.ChallanPin != payload.ChallanPin {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("QR code does not match this token", ""))
		return
	}

	token, err = h.Ledger.MarkLoaded(r.Context(), token.ID, auth.Username(r.Context()), auth.Role(r.Context()))
	if err != nil {
		h.writeServiceError(w, err, "Failed to mark token loaded")
		return
	}

	h.Logger.LogToken("CHECKOUT", token.TokenNo, "token checked out at gate by "+auth.Username(r.Context()))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Token checked out", token))
}

// writeServiceError maps ledger errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case service.IsValidationError(err):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse(msg, err.Error()))
	case errors.Is(err, service.ErrOperatorNotFound),
		errors.Is(err, service.ErrVehicleNotFound),
		errors.Is(err, service.ErrRateNotFound),
		errors.Is(err, service.ErrTokenNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse(msg, err.Error()))
	case errors.Is(err, service.ErrCounterConflict):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse(msg, err.Error()))
	case errors.Is(err, service.ErrNotAllowed):
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse(msg, err.Error()))
	default:
		h.Logger.Error("API", msg+": "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse(msg, err.Error()))
	}
}
