// Package gatewayhttp implements the payment gateway port over HTTPS/JSON.
// Every failure shape the gateway produces (transport errors, HTTP errors,
// status=false envelopes, nested JSON messages) is normalized into a single
// typed gateway.Error before it reaches a caller. The client never retries;
// retrying a charge or transfer is a caller decision.
package gatewayhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/trovamart/marketpay/internal/domain/gateway"
	"github.com/trovamart/marketpay/internal/observability"
	"github.com/trovamart/marketpay/internal/observability/logctx"
)

const (
	componentGateway = "gateway_client"
	defaultTimeout   = 15 * time.Second
	defaultCurrency  = "NGN"
)

// Config carries the per-process gateway credentials. Injected at
// construction; never read from globals.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	cfg     Config
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker[*envelope]
	log     observability.Logger
	tel     observability.Telemetry
}

var _ gateway.Client = (*Client)(nil)

func New(cfg Config, logger observability.Logger, tel observability.Telemetry) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	breaker := gobreaker.NewCircuitBreaker[*envelope](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		log:     logger.With(observability.F("component", componentGateway)),
		tel:     tel,
	}
}

func (c *Client) InitializeCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeAuthorization, error) {
	if req.Email == "" || req.Reference == "" || req.AmountMinor <= 0 {
		return nil, &gateway.Error{Classification: gateway.ClassValidation, Message: "email, reference and a positive amount are required"}
	}
	body := map[string]any{
		"email":     req.Email,
		"amount":    strconv.FormatInt(req.AmountMinor, 10),
		"reference": req.Reference,
	}
	env, err := c.call(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &gateway.Error{Classification: gateway.ClassServer, Message: "malformed initialize payload"}
	}
	return &gateway.ChargeAuthorization{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (c *Client) VerifyCharge(ctx context.Context, reference string) (*gateway.ChargeStatus, error) {
	if reference == "" {
		return nil, &gateway.Error{Classification: gateway.ClassValidation, Message: "reference is required"}
	}
	env, err := c.call(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	var data struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		PaidAt    string `json:"paid_at"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &gateway.Error{Classification: gateway.ClassServer, Message: "malformed verify payload"}
	}
	return &gateway.ChargeStatus{
		Reference:   data.Reference,
		Status:      data.Status,
		AmountMinor: data.Amount,
		PaidAt:      data.PaidAt,
	}, nil
}

func (c *Client) InitiateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferReceipt, error) {
	if req.RecipientCode == "" || req.Reference == "" || req.AmountMinor <= 0 {
		return nil, &gateway.Error{Classification: gateway.ClassValidation, Message: "recipient, reference and a positive amount are required"}
	}
	body := map[string]any{
		"source":    "balance",
		"amount":    req.AmountMinor,
		"recipient": req.RecipientCode,
		"reference": req.Reference,
		"reason":    req.Reason,
	}
	env, err := c.call(ctx, http.MethodPost, "/transfer", body)
	if err != nil {
		return nil, err
	}
	var data struct {
		Reference    string `json:"reference"`
		TransferCode string `json:"transfer_code"`
		Status       string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &gateway.Error{Classification: gateway.ClassServer, Message: "malformed transfer payload"}
	}
	return &gateway.TransferReceipt{
		Reference:    data.Reference,
		TransferCode: data.TransferCode,
		Status:       data.Status,
	}, nil
}

func (c *Client) CreateRecipient(ctx context.Context, req gateway.RecipientRequest) (*gateway.Recipient, error) {
	return c.upsertRecipient(ctx, http.MethodPost, "/transferrecipient", req)
}

func (c *Client) UpdateRecipient(ctx context.Context, code string, req gateway.RecipientRequest) (*gateway.Recipient, error) {
	if code == "" {
		return nil, &gateway.Error{Classification: gateway.ClassValidation, Message: "recipient code is required"}
	}
	return c.upsertRecipient(ctx, http.MethodPut, "/transferrecipient/"+url.PathEscape(code), req)
}

func (c *Client) upsertRecipient(ctx context.Context, method, path string, req gateway.RecipientRequest) (*gateway.Recipient, error) {
	if req.Name == "" || req.AccountNumber == "" || req.BankCode == "" {
		return nil, &gateway.Error{Classification: gateway.ClassValidation, Message: "name, account number and bank code are required"}
	}
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	body := map[string]any{
		"type":           "nuban",
		"name":           req.Name,
		"account_number": req.AccountNumber,
		"bank_code":      req.BankCode,
		"currency":       currency,
	}
	env, err := c.call(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return decodeRecipient(env.Data)
}

func (c *Client) DeleteRecipient(ctx context.Context, code string) error {
	if code == "" {
		return &gateway.Error{Classification: gateway.ClassValidation, Message: "recipient code is required"}
	}
	_, err := c.call(ctx, http.MethodDelete, "/transferrecipient/"+url.PathEscape(code), nil)
	return err
}

func (c *Client) FetchRecipient(ctx context.Context, code string) (*gateway.Recipient, error) {
	if code == "" {
		return nil, &gateway.Error{Classification: gateway.ClassValidation, Message: "recipient code is required"}
	}
	env, err := c.call(ctx, http.MethodGet, "/transferrecipient/"+url.PathEscape(code), nil)
	if err != nil {
		return nil, err
	}
	return decodeRecipient(env.Data)
}

func decodeRecipient(raw json.RawMessage) (*gateway.Recipient, error) {
	var data struct {
		RecipientCode string `json:"recipient_code"`
		Name          string `json:"name"`
		Details       struct {
			AccountNumber string `json:"account_number"`
			BankCode      string `json:"bank_code"`
		} `json:"details"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &gateway.Error{Classification: gateway.ClassServer, Message: "malformed recipient payload"}
	}
	return &gateway.Recipient{
		RecipientCode: data.RecipientCode,
		Name:          data.Name,
		AccountNumber: data.Details.AccountNumber,
		BankCode:      data.Details.BankCode,
	}, nil
}

// call performs one bounded outbound request through the circuit breaker and
// normalizes every failure into a *gateway.Error.
func (c *Client) call(ctx context.Context, method, path string, body any) (*envelope, error) {
	operation := method + " " + routeTemplate(path)
	start := time.Now()
	outcome := "success"

	env, err := c.breaker.Execute(func() (*envelope, error) {
		return c.do(ctx, method, path, body)
	})

	if err != nil {
		outcome = "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &gateway.Error{Classification: gateway.ClassNetwork, Message: "gateway circuit open"}
		}
	}

	c.tel.Counter(observability.MGatewayRequests).Add(1,
		observability.L("operation", operation),
		observability.L("outcome", outcome),
	)
	c.tel.Histogram(observability.MGatewayRequestDuration).Observe(time.Since(start).Seconds(),
		observability.L("operation", operation),
	)

	if err != nil {
		logger := logctx.FromOr(ctx, c.log)
		logger.Warn("gateway_call_failed",
			observability.F("operation", operation),
			observability.F("error", err.Error()),
		)
		return nil, err
	}
	return env, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &gateway.Error{Classification: gateway.ClassValidation, Message: err.Error()}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, &gateway.Error{Classification: gateway.ClassValidation, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Timeout or connection failure: nothing happened, fail closed.
		return nil, &gateway.Error{Classification: gateway.ClassNetwork, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &gateway.Error{Classification: gateway.ClassNetwork, Message: err.Error()}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &gateway.Error{Classification: gateway.ClassServer, Message: failureMessage(env, raw)}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &gateway.Error{Classification: gateway.ClassValidation, Message: failureMessage(env, raw)}
	case decodeErr != nil:
		return nil, &gateway.Error{Classification: gateway.ClassServer, Message: "unparsable gateway response"}
	case !env.Status:
		return nil, &gateway.Error{Classification: gateway.ClassValidation, Message: normalizeMessage(env.Message)}
	}
	return &env, nil
}

func failureMessage(env envelope, raw []byte) string {
	if env.Message != "" {
		return normalizeMessage(env.Message)
	}
	return normalizeMessage(strings.TrimSpace(string(raw)))
}

// normalizeMessage unwraps the one level of JSON the gateway sometimes nests
// inside its message field, falling back to the raw string.
func normalizeMessage(msg string) string {
	trimmed := strings.TrimSpace(msg)
	if trimmed == "" {
		return "gateway request failed"
	}
	switch trimmed[0] {
	case '{':
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(trimmed), &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	case '"':
		var unquoted string
		if err := json.Unmarshal([]byte(trimmed), &unquoted); err == nil && unquoted != "" {
			return unquoted
		}
	}
	return trimmed
}

// routeTemplate strips path parameters so metric labels stay low-cardinality.
func routeTemplate(path string) string {
	for _, prefix := range []string{"/transaction/verify/", "/transferrecipient/"} {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			return prefix + ":id"
		}
	}
	return path
}
