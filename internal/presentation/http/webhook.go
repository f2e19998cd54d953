package httppresentation

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	appwebhook "github.com/trovamart/marketpay/internal/application/webhook"
	"github.com/trovamart/marketpay/internal/observability"
	"github.com/trovamart/marketpay/internal/observability/logctx"
)

const (
	headerSignature = "X-Gateway-Signature"
	maxWebhookBody  = 1 << 20
)

// webhookPayload is the gateway's delivery envelope.
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference       string `json:"reference"`
		Amount          int64  `json:"amount"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
}

// handleWebhook verifies the HMAC-SHA-512 signature over the raw body before
// any JSON is parsed. A missing header is a malformed request; a present but
// wrong signature is an authentication failure and the event is discarded
// without touching any state.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := logctx.FromOr(r.Context(), h.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sig := r.Header.Get(headerSignature)
	if sig == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing signature header"))
		return
	}
	if !validSignature(h.webhookSecret, body, sig) {
		logger.Warn("webhook_signature_mismatch")
		writeError(w, http.StatusUnauthorized, errors.New("invalid signature"))
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.webhook.Execute(r.Context(), appwebhook.Event{
		Type:        payload.Event,
		Reference:   payload.Data.Reference,
		AmountMinor: payload.Data.Amount,
		Reason:      payload.Data.GatewayResponse,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logger.Info("webhook_processed",
		observability.F("event_type", payload.Event),
		observability.F("reference", payload.Data.Reference),
		observability.F("outcome", string(result.Outcome)),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"outcome": string(result.Outcome),
	})
}

// validSignature compares the hex HMAC-SHA-512 of the raw body in constant time.
func validSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}
