package httppresentation

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	appwebhook "github.com/trovamart/marketpay/internal/application/webhook"
	domledger "github.com/trovamart/marketpay/internal/domain/ledger"
	domwallet "github.com/trovamart/marketpay/internal/domain/wallet"
	"github.com/trovamart/marketpay/internal/infrastructure/memory"
)

const testSecret = "whsec_test"

func newWebhookHandler(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	store := memory.NewStore()
	h := NewHandler(Config{
		Webhook:       appwebhook.NewApplyUseCase(store, nil, nil),
		Store:         store,
		WebhookSecret: testSecret,
	})
	return store, h.Router()
}

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func seedTopup(t *testing.T, store *memory.Store, reference string, amount int64) {
	t.Helper()
	txn, err := domledger.New("t-1", reference, "b-1", string(domwallet.OwnerBuyer),
		domledger.KindCredit, domledger.PurposeWalletTopup, decimal.NewFromInt(amount))
	require.NoError(t, err)
	require.NoError(t, txn.MarkProcessing())
	require.NoError(t, store.Ledger().Insert(context.Background(), txn))
}

func postWebhook(router http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(headerSignature, signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAppliesSignedEvent(t *testing.T) {
	store, router := newWebhookHandler(t)
	seedTopup(t, store, "ref-1", 50)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1","amount":5000}}`)
	rec := postWebhook(router, body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code)

	w, err := store.Wallets().Get(context.Background(), "b-1")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(50).Equal(w.Balance))
}

func TestWebhookMissingSignature(t *testing.T) {
	store, router := newWebhookHandler(t)
	seedTopup(t, store, "ref-1", 50)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1","amount":5000}}`)
	rec := postWebhook(router, body, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookInvalidSignatureLeavesStateUntouched(t *testing.T) {
	store, router := newWebhookHandler(t)
	seedTopup(t, store, "ref-1", 50)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1","amount":5000}}`)
	rec := postWebhook(router, body, sign([]byte("tampered")))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	_, err := store.Wallets().Get(context.Background(), "b-1")
	require.ErrorIs(t, err, domwallet.ErrNotFound)

	entry, err := store.Ledger().GetByReference(context.Background(), "ref-1")
	require.NoError(t, err)
	require.Equal(t, domledger.StatusProcessing, entry.Status)
}

func TestWebhookMalformedBody(t *testing.T) {
	_, router := newWebhookHandler(t)

	body := []byte(`{not json`)
	rec := postWebhook(router, body, sign(body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookUnknownReference(t *testing.T) {
	_, router := newWebhookHandler(t)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-missing","amount":5000}}`)
	rec := postWebhook(router, body, sign(body))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookDuplicateDeliveryAcknowledged(t *testing.T) {
	store, router := newWebhookHandler(t)
	seedTopup(t, store, "ref-1", 50)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1","amount":5000}}`)
	require.Equal(t, http.StatusOK, postWebhook(router, body, sign(body)).Code)
	require.Equal(t, http.StatusOK, postWebhook(router, body, sign(body)).Code)

	w, err := store.Wallets().Get(context.Background(), "b-1")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(50).Equal(w.Balance), "duplicate must not double-credit")
}

func TestWebhookRejectsNonPost(t *testing.T) {
	_, router := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
