package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mantrailing/cardservice/internal/logging"
	"github.com/mantrailing/cardservice/internal/services"
	"github.com/sirupsen/logrus"
)

type QRHandler struct {
	service   *services.CardQRService
	validator *services.ValidationHelper
	log       *logrus.Entry
}

func NewQRHandler(service *services.CardQRService) *QRHandler {
	return &QRHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		log:       logging.Component("qr"),
	}
}

// ResolveRequest carries a scanned QR token
type ResolveRequest struct {
	Token string `json:"token" validate:"required,max=64"`
}

// GetCardQR issues a QR code for a customer card
// @Summary Card QR code
// @Description Short-lived, single-use QR code identifying the card at the till
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Customer account number"
// @Success 200 {object} services.CardQR
// @Failure 404 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /customers/{id}/card/qr [get]
func (h *QRHandler) GetCardQR(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")

	qr, err := h.service.Generate(r.Context(), customerID)
	if err != nil {
		h.writeError(w, customerID, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, qr)
}

// ResolveCard turns a scanned token into the customer snapshot
// @Summary Resolve scanned card
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ResolveRequest true "Scanned token"
// @Success 200 {object} models.Customer
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /cards/resolve [post]
func (h *QRHandler) ResolveCard(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !services.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	customer, err := h.service.Resolve(r.Context(), req.Token)
	if err != nil {
		h.writeError(w, "", err)
		return
	}

	services.WriteJSON(w, http.StatusOK, customer)
}

func (h *QRHandler) writeError(w http.ResponseWriter, customerID string, err error) {
	switch {
	case errors.Is(err, services.ErrQRInvalid):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrCustomerNotFound):
		services.SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
	case errors.Is(err, services.ErrQRUnavailable):
		services.SendErrorResponse(w, err.Error(), http.StatusServiceUnavailable, nil)
	default:
		h.log.WithError(err).WithField("customer_id", customerID).Error("Card QR failed")
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
