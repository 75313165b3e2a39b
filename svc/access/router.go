package access

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanderaudio/guidekit/pkg/billing"
	"github.com/wanderaudio/guidekit/pkg/consumption"
	"github.com/wanderaudio/guidekit/pkg/creditledger"
)

// Router mounts the HTTP surface of the access service.
func Router(svc *Service) chi.Router {
	r := chi.NewRouter()
	r.Post("/accounts/{accountID}/attractions/{attractionID}/consume", svc.handleConsume)
	r.Get("/accounts/{accountID}/entitlement", svc.handleEntitlement)
	r.Post("/webhooks/billing", svc.handleWebhook)
	return r
}

type consumeRequest struct {
	Amount         json.Number `json:"amount"`
	IdempotencyKey string      `json:"idempotency_key"`
}

// amountValue parses the requested amount, defaulting to one credit and
// rejecting fractions and non-positive values.
func (req consumeRequest) amountValue() (int, error) {
	if req.Amount == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(req.Amount.String())
	if err != nil || n <= 0 {
		return 0, ErrInvalidAmount
	}
	return n, nil
}

func (s *Service) handleConsume(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrMissingAccountID)
		return
	}
	attractionID := chi.URLParam(r, "attractionID")

	var req consumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return
	}
	amount, err := req.amountValue()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// The attraction id is the natural idempotency key for the one-guide-per
	// attraction product: retries and concurrent taps on the same attraction
	// replay instead of double-charging. Clients may override it for flows
	// that legitimately charge the same attraction twice.
	key := req.IdempotencyKey
	if key == "" {
		key = attractionID
	}

	result, err := s.ConsumeAttraction(r.Context(), accountID, attractionID, amount, key)
	if err != nil {
		writeConsumeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrMissingAccountID)
		return
	}

	snapshot, err := s.Entitlement(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to resolve entitlement"))
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleWebhook acknowledges verified deliveries with 200 even when the event
// type is unsupported, so the provider stops retrying. A failed signature is
// a 400; a reconciliation failure is a 500 that triggers redelivery.
func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("failed to read request body"))
		return
	}

	err = s.HandleWebhook(r.Context(), payload, r.Header.Get("Paddle-Signature"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, billing.ErrWebhookVerificationFailed),
		errors.Is(err, billing.ErrMalformedPayload),
		errors.Is(err, billing.ErrMissingAccountID):
		writeError(w, http.StatusBadRequest, errors.New("invalid webhook delivery"))
	default:
		writeError(w, http.StatusInternalServerError, errors.New("failed to process webhook"))
	}
}

func writeConsumeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consumption.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, consumption.ErrInsufficientCredits)
	case errors.Is(err, creditledger.ErrInvalidAmount),
		errors.Is(err, consumption.ErrMissingIdempotencyKey):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, consumption.ErrLedgerConflict):
		writeError(w, http.StatusConflict, errors.New("concurrent update, try again"))
	default:
		writeError(w, http.StatusInternalServerError, errors.New("failed to consume credits"))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
