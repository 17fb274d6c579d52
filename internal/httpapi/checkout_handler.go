package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	d "github.com/toosale/checkout-service/domain"
	"github.com/toosale/checkout-service/internal/gateway"
	"github.com/toosale/checkout-service/internal/repository"
	"github.com/toosale/checkout-service/internal/service"
	"github.com/toosale/checkout-service/pkg/metrics"
)

const idempotencyKeyHeader = "Idempotency-Key"

type CheckoutHandler struct {
	checkout *service.CheckoutService
	summary  *service.SummaryService
	metrics  *metrics.ServerMetrics
	timeout  time.Duration
}

func NewCheckoutHandler(checkout *service.CheckoutService, summary *service.SummaryService, m *metrics.ServerMetrics, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		summary:  summary,
		metrics:  m,
		timeout:  timeout,
	}
}

type sessionResponse struct {
	SessionID     string              `json:"session_id"`
	Status        string              `json:"status"`
	Retryable     bool                `json:"retryable,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
	Pricing       d.PricingBreakdown  `json:"pricing"`
	Payment       *d.PaymentRequest   `json:"payment,omitempty"`
	OrderID       string              `json:"order_id,omitempty"`
	OrderNumber   string              `json:"order_number,omitempty"`
}

func toSessionResponse(s *d.CheckoutSession) sessionResponse {
	return sessionResponse{
		SessionID:     s.ID,
		Status:        s.Status.String(),
		Retryable:     s.Retryable,
		FailureReason: s.FailureReason,
		Pricing:       s.Pricing,
		Payment:       s.Payment,
		OrderID:       s.OrderID,
		OrderNumber:   s.OrderNumber,
	}
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if idempotencyKey == "" {
		respondError(w, http.StatusBadRequest, "missing_idempotency_key",
			idempotencyKeyHeader+" header is required")
		return
	}

	session, err := h.checkout.Start(ctx, userID, idempotencyKey)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toSessionResponse(session))
}

// POST /api/v1/checkout/{session_id}/customer
func (h *CheckoutHandler) SubmitCustomerInfo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var info d.CustomerInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	session, err := h.checkout.SubmitCustomerInfo(ctx, chi.URLParam(r, "session_id"), info)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

type submitProofRequest struct {
	Reference string `json:"reference"`
}

// POST /api/v1/checkout/{session_id}/payment-proof
func (h *CheckoutHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req submitProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	session, err := h.checkout.SubmitProof(ctx, chi.URLParam(r, "session_id"), d.PaymentProof{Reference: req.Reference})
	if err != nil {
		// A finalization failure still carries the session; report its
		// state alongside the error so the client can act on it.
		if session != nil {
			h.respondFinalizationFailure(w, session, err)
			return
		}
		h.respondServiceError(w, err)
		return
	}

	h.countOutcome(session)
	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

// POST /api/v1/checkout/{session_id}/retry
func (h *CheckoutHandler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.checkout.Retry(ctx, chi.URLParam(r, "session_id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

// POST /api/v1/checkout/{session_id}/cancel
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.checkout.Cancel(ctx, chi.URLParam(r, "session_id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

// POST /api/v1/checkout/{session_id}/finalize
func (h *CheckoutHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.checkout.Finalize(ctx, chi.URLParam(r, "session_id"))
	if err != nil {
		if session != nil {
			h.respondFinalizationFailure(w, session, err)
			return
		}
		h.respondServiceError(w, err)
		return
	}

	h.countOutcome(session)
	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

// GET /api/v1/checkout/{session_id}
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.checkout.Get(ctx, chi.URLParam(r, "session_id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

// GET /api/v1/checkout/{session_id}/summary
func (h *CheckoutHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.checkout.Get(ctx, chi.URLParam(r, "session_id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	view := h.summary.Reconcile(ctx, session.OrderID, session.LocalSummary())
	respondJSON(w, http.StatusOK, view)
}

// respondFinalizationFailure reports a session whose finalization did not
// complete. Backend rejection of the customer data carries field errors; any
// other failure returns the session so the client can retry finalization.
func (h *CheckoutHandler) respondFinalizationFailure(w http.ResponseWriter, session *d.CheckoutSession, err error) {
	if gerr, ok := gateway.AsGatewayError(err); ok && gerr.Kind == gateway.KindValidation {
		respondFieldErrors(w, "rejected_by_backend", gerr.Message, gerr.Fields)
		return
	}
	respondJSON(w, http.StatusBadGateway, toSessionResponse(session))
}

func (h *CheckoutHandler) countOutcome(session *d.CheckoutSession) {
	if h.metrics == nil || !session.Status.IsTerminal() {
		return
	}
	h.metrics.CheckoutOutcomes.WithLabelValues(session.Status.String()).Inc()
}

func (h *CheckoutHandler) respondServiceError(w http.ResponseWriter, err error) {
	var fieldErrs d.FieldErrors
	if errors.As(err, &fieldErrs) {
		respondFieldErrors(w, "validation_failed", "some fields need attention", fieldErrs)
		return
	}

	if gerr, ok := gateway.AsGatewayError(err); ok {
		switch gerr.Kind {
		case gateway.KindValidation:
			respondFieldErrors(w, "rejected_by_backend", gerr.Message, gerr.Fields)
		case gateway.KindConflict:
			respondError(w, http.StatusConflict, "conflict", gerr.Message)
		default:
			respondError(w, http.StatusBadGateway, "backend_unavailable", gerr.Message)
		}
		return
	}

	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", "checkout session not found")
	case errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty, nothing to checkout")
	case errors.Is(err, service.ErrEmptyProofReference):
		respondError(w, http.StatusBadRequest, "missing_reference", "payment reference is required")
	case errors.Is(err, service.ErrVerificationInFlight),
		errors.Is(err, service.ErrFinalizationInFlight):
		respondError(w, http.StatusConflict, "in_progress", "this checkout step is already in progress")
	case errors.Is(err, service.ErrNotRetryable):
		respondError(w, http.StatusConflict, "not_retryable", "this payment failure cannot be retried")
	case errors.Is(err, service.ErrCustomerInfoNotAllowed),
		errors.Is(err, service.IllegalTransitionError):
		respondError(w, http.StatusConflict, "invalid_state", "the checkout is not in a state that allows this action")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
