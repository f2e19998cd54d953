package httppresentation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	appcheckout "github.com/trovamart/marketpay/internal/application/checkout"
	appcoupon "github.com/trovamart/marketpay/internal/application/coupon"
	apppayout "github.com/trovamart/marketpay/internal/application/payout"
	appwallet "github.com/trovamart/marketpay/internal/application/wallet"
	appwebhook "github.com/trovamart/marketpay/internal/application/webhook"
	domorder "github.com/trovamart/marketpay/internal/domain/order"
	"github.com/trovamart/marketpay/internal/domain/storage"
	"github.com/trovamart/marketpay/internal/observability"
)

const componentHTTPHandler = "http_server"

type Handler struct {
	checkout    *appcheckout.CreateOrderUseCase
	topup       *appwallet.TopupUseCase
	verifyTopup *appwallet.VerifyTopupUseCase
	balance     *appwallet.BalanceUseCase
	withdraw    *apppayout.WithdrawUseCase
	coupon      *appcoupon.ApplyUseCase
	webhook     *appwebhook.ApplyUseCase
	store       storage.Store

	webhookSecret string
	log           observability.Logger
	tel           observability.Telemetry
}

type Config struct {
	Checkout    *appcheckout.CreateOrderUseCase
	Topup       *appwallet.TopupUseCase
	VerifyTopup *appwallet.VerifyTopupUseCase
	Balance     *appwallet.BalanceUseCase
	Withdraw    *apppayout.WithdrawUseCase
	Coupon      *appcoupon.ApplyUseCase
	Webhook     *appwebhook.ApplyUseCase
	Store       storage.Store

	WebhookSecret string
	Logger        observability.Logger
	Telemetry     observability.Telemetry
}

func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	tel := cfg.Telemetry
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Handler{
		checkout:      cfg.Checkout,
		topup:         cfg.Topup,
		verifyTopup:   cfg.VerifyTopup,
		balance:       cfg.Balance,
		withdraw:      cfg.Withdraw,
		coupon:        cfg.Coupon,
		webhook:       cfg.Webhook,
		store:         cfg.Store,
		webhookSecret: cfg.WebhookSecret,
		log:           logger.With(observability.F("component", componentHTTPHandler)),
		tel:           tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(ObservabilityMiddleware(h.log, h.tel))

	r.Post("/checkout", h.handleCheckout)
	r.Get("/orders/{orderID}", h.handleGetOrder)
	r.Post("/orders/{orderID}/coupon", h.handleApplyCoupon)
	r.Post("/wallet/topup", h.handleTopup)
	r.Post("/wallet/topup/{reference}/verify", h.handleVerifyTopup)
	r.Get("/wallet/{ownerID}", h.handleBalance)
	r.Post("/payouts", h.handleWithdraw)
	r.Post("/webhook", h.handleWebhook)

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type checkoutRequest struct {
	BuyerID             string `json:"buyer_id"`
	TransactionPassword string `json:"transaction_password"`
	Method              string `json:"method,omitempty"`
}

type checkoutResponse struct {
	OrderID          string          `json:"order_id"`
	Status           domorder.Status `json:"status"`
	Total            decimal.Decimal `json:"total"`
	PaymentReference string          `json:"payment_reference"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.checkout.Execute(r.Context(), appcheckout.CreateOrderInput{
		BuyerID:             req.BuyerID,
		TransactionPassword: req.TransactionPassword,
		Method:              appcheckout.Method(req.Method),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AuthorizationURL != "" {
		// The order is pending an external charge; the client must follow the
		// authorization redirect.
		status = http.StatusAccepted
	}
	writeJSON(w, status, checkoutResponse{
		OrderID:          result.OrderID,
		Status:           result.Status,
		Total:            result.Total,
		PaymentReference: result.PaymentReference,
		AuthorizationURL: result.AuthorizationURL,
	})
}

type orderItemResponse struct {
	ID        string          `json:"id"`
	VendorID  string          `json:"vendor_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	SubTotal  decimal.Decimal `json:"sub_total"`
	Saved     decimal.Decimal `json:"saved"`
	Total     decimal.Decimal `json:"total"`
	Coupons   []string        `json:"coupons,omitempty"`
}

type orderResponse struct {
	OrderID          string              `json:"order_id"`
	BuyerID          string              `json:"buyer_id"`
	Status           domorder.Status     `json:"status"`
	SubTotal         decimal.Decimal     `json:"sub_total"`
	Shipping         decimal.Decimal     `json:"shipping"`
	Tax              decimal.Decimal     `json:"tax"`
	ServiceFee       decimal.Decimal     `json:"service_fee"`
	Saved            decimal.Decimal     `json:"saved"`
	Total            decimal.Decimal     `json:"total"`
	InitialTotal     decimal.Decimal     `json:"initial_total"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	Items            []orderItemResponse `json:"items"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	ord, err := h.store.Orders().Get(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]orderItemResponse, 0, len(ord.Items))
	for _, it := range ord.Items {
		items = append(items, orderItemResponse{
			ID:        it.ID,
			VendorID:  it.VendorID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			SubTotal:  it.SubTotal,
			Saved:     it.Saved,
			Total:     it.Total,
			Coupons:   it.Coupons,
		})
	}
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:          ord.ID,
		BuyerID:          ord.BuyerID,
		Status:           ord.Status,
		SubTotal:         ord.SubTotal,
		Shipping:         ord.Shipping,
		Tax:              ord.Tax,
		ServiceFee:       ord.ServiceFee,
		Saved:            ord.Saved,
		Total:            ord.Total,
		InitialTotal:     ord.InitialTotal,
		PaymentReference: ord.PaymentReference,
		FailureReason:    ord.FailureReason,
		Items:            items,
	})
}

type applyCouponRequest struct {
	BuyerID string `json:"buyer_id,omitempty"`
	Code    string `json:"code"`
}

type applyCouponResponse struct {
	OrderID  string          `json:"order_id"`
	Code     string          `json:"code"`
	Saved    decimal.Decimal `json:"saved"`
	NewTotal decimal.Decimal `json:"new_total"`
}

func (h *Handler) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.coupon.Execute(r.Context(), appcoupon.ApplyInput{
		OrderID: chi.URLParam(r, "orderID"),
		BuyerID: req.BuyerID,
		Code:    req.Code,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, applyCouponResponse{
		OrderID:  result.OrderID,
		Code:     result.Code,
		Saved:    result.Saved,
		NewTotal: result.NewTotal,
	})
}

type topupRequest struct {
	OwnerID string  `json:"owner_id"`
	Amount  float64 `json:"amount"`
}

type topupResponse struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url"`
	Amount           decimal.Decimal `json:"amount"`
}

func (h *Handler) handleTopup(w http.ResponseWriter, r *http.Request) {
	var req topupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.topup.Execute(r.Context(), appwallet.TopupInput{
		OwnerID: req.OwnerID,
		Amount:  decimal.NewFromFloat(req.Amount),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, topupResponse{
		Reference:        result.Reference,
		AuthorizationURL: result.AuthorizationURL,
		Amount:           result.Amount,
	})
}

type verifyTopupResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Settled   bool   `json:"settled"`
}

func (h *Handler) handleVerifyTopup(w http.ResponseWriter, r *http.Request) {
	result, err := h.verifyTopup.Execute(r.Context(), appwallet.VerifyTopupInput{
		Reference: chi.URLParam(r, "reference"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyTopupResponse{
		Reference: result.Reference,
		Status:    string(result.Status),
		Settled:   result.Settled,
	})
}

type balanceResponse struct {
	OwnerID   string          `json:"owner_id"`
	OwnerKind string          `json:"owner_kind"`
	Balance   decimal.Decimal `json:"balance"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	result, err := h.balance.Execute(r.Context(), appwallet.BalanceInput{
		OwnerID: chi.URLParam(r, "ownerID"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		OwnerID:   result.OwnerID,
		OwnerKind: string(result.OwnerKind),
		Balance:   result.Balance,
	})
}

type withdrawRequest struct {
	VendorID            string  `json:"vendor_id"`
	TransactionPassword string  `json:"transaction_password"`
	Amount              float64 `json:"amount"`
	AccountNumber       string  `json:"account_number"`
	AccountName         string  `json:"account_name"`
	BankName            string  `json:"bank_name"`
}

type withdrawResponse struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.withdraw.Execute(r.Context(), apppayout.WithdrawInput{
		VendorID:            req.VendorID,
		TransactionPassword: req.TransactionPassword,
		Amount:              decimal.NewFromFloat(req.Amount),
		AccountNumber:       req.AccountNumber,
		AccountName:         req.AccountName,
		BankName:            req.BankName,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, withdrawResponse{
		Reference: result.Reference,
		Status:    string(result.Status),
		Amount:    result.Amount,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
