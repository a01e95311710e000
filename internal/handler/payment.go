package handler

import (
	"net/http"

	"github.com/utafrali/EcommerceGo/authgateway/internal/service"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/httputil"
)

// PaymentHandler receives payment gateway callbacks.
type PaymentHandler struct {
	service *service.PaymentService
	errors  *httputil.ErrorWriter
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(svc *service.PaymentService, ew *httputil.ErrorWriter) *PaymentHandler {
	return &PaymentHandler{service: svc, errors: ew}
}

type callbackResponse struct {
	OrderNumber string `json:"orderNumber"`
	Verified    bool   `json:"verified"`
}

// Callback handles GET and POST /api/v1/payments/callback. Parameters come
// from the query string or a form body.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	orderNumber := r.FormValue("merchantOrderId")

	err := h.service.HandleCallback(r.Context(), orderNumber, r.FormValue("sig"), r.FormValue("paymentMethod"))
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, callbackResponse{OrderNumber: orderNumber, Verified: true})
}
