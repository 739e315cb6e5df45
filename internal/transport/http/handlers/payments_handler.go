package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
	paymentsvc "github.com/tunngle1/newversionmusicbot/internal/services/payments"
	"github.com/tunngle1/newversionmusicbot/internal/transport/http/dto"
	httperrors "github.com/tunngle1/newversionmusicbot/internal/transport/http/errors"
)

// tributeMaxBody bounds the webhook body read; real payloads are tiny.
const tributeMaxBody = 64 << 10

type PaymentsHandler struct {
	service *paymentsvc.Service
	log     *zap.Logger
}

func NewPaymentsHandler(service *paymentsvc.Service, log *zap.Logger) *PaymentsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentsHandler{service: service, log: log}
}

func (h *PaymentsHandler) Config(w http.ResponseWriter, _ *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	httperrors.Write(w, http.StatusOK, h.service.PublicConfig())
}

func (h *PaymentsHandler) CreateStarsInvoice(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.CreateStarsInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	plan, ok := enums.ParsePlan(req.Plan)
	if !ok {
		writeBadRequest(w, "UNKNOWN_PLAN", "plan must be month or year")
		return
	}

	link, err := h.service.CreateStarsInvoice(r.Context(), identity.UserID, plan)
	if err != nil {
		h.handlePaymentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.InvoiceLinkResponse{InvoiceLink: link})
}

func (h *PaymentsHandler) VerifyTON(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.VerifyTONRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	plan, ok := enums.ParsePlan(req.Plan)
	if !ok {
		writeBadRequest(w, "UNKNOWN_PLAN", "plan must be month or year")
		return
	}

	res, err := h.service.VerifyTONPayment(r.Context(), paymentsvc.TONProofInput{
		UserID:    identity.UserID,
		Plan:      plan,
		BocBase64: req.BocBase64,
	})
	if err != nil {
		h.handlePaymentError(w, err)
		return
	}

	premiumUntil := res.PremiumUntil
	httperrors.Write(w, http.StatusOK, dto.PaymentResultResponse{
		OK:               true,
		AlreadyProcessed: res.AlreadyProcessed,
		PremiumUntil:     &premiumUntil,
	})
}

// TributeWebhook processes billing provider callbacks. The provider retries
// on any non-200, so even rejected payloads are acknowledged; the outcome is
// only logged.
func (h *PaymentsHandler) TributeWebhook(w http.ResponseWriter, r *http.Request) {
	ack := func() {
		httperrors.Write(w, http.StatusOK, dto.WebhookAckResponse{OK: true})
	}

	if h.service == nil {
		ack()
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, tributeMaxBody))
	if err != nil {
		h.log.Warn("tribute webhook body read failed", zap.Error(err))
		ack()
		return
	}

	res, err := h.service.HandleTributeWebhook(r.Context(), body, r.Header.Get("trbt-signature"))
	switch {
	case errors.Is(err, paymentsvc.ErrBadSignature):
		h.log.Warn("tribute webhook signature mismatch")
	case err != nil:
		h.log.Error("tribute webhook processing failed", zap.Error(err))
	case res.AlreadyProcessed:
		h.log.Debug("tribute webhook duplicate or ignored event")
	default:
		h.log.Info("tribute webhook credited",
			zap.Int64("user_id", res.Payment.UserID),
			zap.String("plan", string(res.Payment.Plan)))
	}

	ack()
}

func (h *PaymentsHandler) handlePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, paymentsvc.ErrValidation), errors.Is(err, paymentsvc.ErrUnknownPlan):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, paymentsvc.ErrProofNotFound):
		writeNotFound(w, "TRANSACTION_NOT_FOUND", "transaction not found on chain")
	case errors.Is(err, paymentsvc.ErrProofRejected),
		errors.Is(err, paymentsvc.ErrProofStale),
		errors.Is(err, paymentsvc.ErrAmountMismatch),
		errors.Is(err, paymentsvc.ErrWrongDestination):
		writeBadRequest(w, "PROOF_REJECTED", "payment proof rejected")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
