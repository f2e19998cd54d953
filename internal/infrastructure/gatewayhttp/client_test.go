package gatewayhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/trovamart/marketpay/internal/domain/gateway"
	"github.com/trovamart/marketpay/internal/infrastructure/observability/prometrics"
	"github.com/trovamart/marketpay/internal/infrastructure/observability/telemetry"
	"github.com/trovamart/marketpay/internal/observability"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, SecretKey: "sk_test"}, nil, nil)
}

func chargeReq() gateway.ChargeRequest {
	return gateway.ChargeRequest{Email: "buyer@shop.test", AmountMinor: 16500, Reference: "ref-1"}
}

func TestInitializeChargeSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "16500", body["amount"], "amount is sent in minor units as a string")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{
			"authorization_url":"https://gateway.test/auth/abc","access_code":"abc","reference":"ref-1"}}`))
	})

	auth, err := client.InitializeCharge(context.Background(), chargeReq())
	require.NoError(t, err)
	require.Equal(t, "https://gateway.test/auth/abc", auth.AuthorizationURL)
	require.Equal(t, "ref-1", auth.Reference)
}

func TestClientClassifiesValidationFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid email address"}`))
	})

	_, err := client.InitializeCharge(context.Background(), chargeReq())
	ge, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, gateway.ClassValidation, ge.Classification)
	require.Equal(t, "Invalid email address", ge.Message)
	require.False(t, ge.Retryable())
}

func TestClientUnwrapsNestedJSONMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"{\"message\":\"Amount below minimum\"}"}`))
	})

	_, err := client.InitializeCharge(context.Background(), chargeReq())
	ge, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, "Amount below minimum", ge.Message)
}

func TestClientClassifiesServerFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream timeout`))
	})

	_, err := client.InitializeCharge(context.Background(), chargeReq())
	ge, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, gateway.ClassServer, ge.Classification)
	require.True(t, ge.Retryable())
}

func TestClientClassifiesNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on
	client := New(Config{BaseURL: srv.URL, SecretKey: "sk_test"}, nil, nil)

	_, err := client.InitializeCharge(context.Background(), chargeReq())
	ge, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, gateway.ClassNetwork, ge.Classification)
	require.True(t, ge.Retryable())
}

func TestClientRejectsEnvelopeFailureOn200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"message":"Duplicate reference"}`))
	})

	_, err := client.InitializeCharge(context.Background(), chargeReq())
	ge, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, gateway.ClassValidation, ge.Classification)
	require.Equal(t, "Duplicate reference", ge.Message)
}

func TestVerifyChargeDecodesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/verify/ref-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{
			"status":"success","reference":"ref-1","amount":16500,"paid_at":"2026-01-02T10:00:00Z"}}`))
	})

	status, err := client.VerifyCharge(context.Background(), "ref-1")
	require.NoError(t, err)
	require.Equal(t, "success", status.Status)
	require.Equal(t, int64(16500), status.AmountMinor)
}

func TestInitiateTransferAndRecipient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transferrecipient":
			_, _ = w.Write([]byte(`{"status":true,"message":"Transfer recipient created","data":{
				"recipient_code":"RCP_1","name":"Vendor One","details":{"account_number":"0123456789","bank_code":"044"}}}`))
		case "/transfer":
			_, _ = w.Write([]byte(`{"status":true,"message":"Transfer has been queued","data":{
				"reference":"ref-9","transfer_code":"TRF_1","status":"pending"}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	rcp, err := client.CreateRecipient(context.Background(), gateway.RecipientRequest{
		Name: "Vendor One", AccountNumber: "0123456789", BankCode: "044",
	})
	require.NoError(t, err)
	require.Equal(t, "RCP_1", rcp.RecipientCode)
	require.Equal(t, "0123456789", rcp.AccountNumber)

	receipt, err := client.InitiateTransfer(context.Background(), gateway.TransferRequest{
		AmountMinor: 6000, RecipientCode: "RCP_1", Reference: "ref-9",
	})
	require.NoError(t, err)
	require.Equal(t, "pending", receipt.Status)
	require.Equal(t, "TRF_1", receipt.TransferCode)
}

func TestClientMetricsUseRegisteredLabels(t *testing.T) {
	// Same instrument registration as the process wiring; a label-key drift
	// between the client and the registry would panic on the first call.
	reg := prometrics.New("marketpay_client_test", "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MGatewayRequests: reg.Counter(string(observability.MGatewayRequests),
			"Total number of gateway calls.", "operation", "outcome"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MGatewayRequestDuration: reg.Histogram(string(observability.MGatewayRequestDuration),
			"Duration of gateway calls in seconds.", prometheus.DefBuckets, "operation"),
	}
	tel := telemetry.New(nil, nil, counters, histograms, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transaction/initialize":
			_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{
				"authorization_url":"https://gateway.test/auth/abc","access_code":"abc","reference":"ref-1"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(srv.Close)
	client := New(Config{BaseURL: srv.URL, SecretKey: "sk_test"}, nil, tel)

	require.NotPanics(t, func() {
		_, err := client.InitializeCharge(context.Background(), chargeReq())
		require.NoError(t, err)

		_, err = client.VerifyCharge(context.Background(), "ref-1")
		require.Error(t, err)
	})
}

func TestClientValidatesInputBeforeCalling(t *testing.T) {
	called := false
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) { called = true })

	_, err := client.InitializeCharge(context.Background(), gateway.ChargeRequest{})
	ge, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, gateway.ClassValidation, ge.Classification)

	_, err = client.InitiateTransfer(context.Background(), gateway.TransferRequest{})
	require.Error(t, err)
	require.False(t, called)
}
