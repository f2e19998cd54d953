package checkout

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domaccount "github.com/trovamart/marketpay/internal/domain/account"
	domcart "github.com/trovamart/marketpay/internal/domain/cart"
	domgateway "github.com/trovamart/marketpay/internal/domain/gateway"
	domledger "github.com/trovamart/marketpay/internal/domain/ledger"
	domorder "github.com/trovamart/marketpay/internal/domain/order"
	domwallet "github.com/trovamart/marketpay/internal/domain/wallet"
	"github.com/trovamart/marketpay/internal/infrastructure/memory"
)

type seqIDGenerator struct{ n int }

func (g *seqIDGenerator) NewID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

type fakeGateway struct {
	initCalls     int
	initErr       error
	transferCalls int
}

func (f *fakeGateway) InitializeCharge(_ context.Context, req domgateway.ChargeRequest) (*domgateway.ChargeAuthorization, error) {
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &domgateway.ChargeAuthorization{
		AuthorizationURL: "https://gateway.test/authorize/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (f *fakeGateway) VerifyCharge(context.Context, string) (*domgateway.ChargeStatus, error) {
	return nil, &domgateway.Error{Classification: domgateway.ClassServer, Message: "not implemented"}
}

func (f *fakeGateway) InitiateTransfer(context.Context, domgateway.TransferRequest) (*domgateway.TransferReceipt, error) {
	f.transferCalls++
	return &domgateway.TransferReceipt{Status: "pending"}, nil
}

func (f *fakeGateway) CreateRecipient(context.Context, domgateway.RecipientRequest) (*domgateway.Recipient, error) {
	return &domgateway.Recipient{RecipientCode: "RCP_test"}, nil
}

func (f *fakeGateway) UpdateRecipient(context.Context, string, domgateway.RecipientRequest) (*domgateway.Recipient, error) {
	return nil, nil
}
func (f *fakeGateway) DeleteRecipient(context.Context, string) error { return nil }
func (f *fakeGateway) FetchRecipient(context.Context, string) (*domgateway.Recipient, error) {
	return nil, nil
}

func seedBuyer(t *testing.T, s *memory.Store, id string, balance int64) {
	t.Helper()
	ctx := context.Background()
	buyer := domaccount.New(id, domaccount.KindBuyer, id+"@shop.test", "Buyer")
	require.NoError(t, buyer.SetTransactionPassword("hunter2"))
	require.NoError(t, s.Accounts().Save(ctx, buyer))
	if balance > 0 {
		w := domwallet.New(id, domwallet.OwnerBuyer)
		require.NoError(t, w.Credit(decimal.NewFromInt(balance)))
		require.NoError(t, s.Wallets().Save(ctx, w))
	}
}

func seedTwoVendorCart(t *testing.T, s *memory.Store, buyerID string) {
	t.Helper()
	ctx := context.Background()
	l1, err := domcart.NewLine("l-1", buyerID, "v-1", "p-1", 2,
		decimal.NewFromInt(50), decimal.NewFromInt(10), decimal.Zero, decimal.NewFromInt(5))
	require.NoError(t, err)
	l2, err := domcart.NewLine("l-2", buyerID, "v-2", "p-2", 1,
		decimal.NewFromInt(50), decimal.NewFromInt(10), decimal.Zero, decimal.NewFromInt(5))
	require.NoError(t, err)
	require.NoError(t, s.Carts().Save(ctx, l1))
	require.NoError(t, s.Carts().Save(ctx, l2))
}

func walletBalance(t *testing.T, s *memory.Store, ownerID string) decimal.Decimal {
	t.Helper()
	w, err := s.Wallets().Get(context.Background(), ownerID)
	require.NoError(t, err)
	return w.Balance
}

func TestCheckoutSettlesFromWallet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gw := &fakeGateway{}
	uc := NewCreateOrderUseCase(store, gw, &seqIDGenerator{}, nil, nil)

	seedBuyer(t, store, "b-1", 200)
	seedTwoVendorCart(t, store, "b-1")

	result, err := uc.Execute(ctx, CreateOrderInput{BuyerID: "b-1", TransactionPassword: "hunter2"})
	require.NoError(t, err)
	require.Equal(t, domorder.StatusPaid, result.Status)
	require.True(t, decimal.NewFromInt(165).Equal(result.Total), "total %s", result.Total)
	require.Empty(t, result.AuthorizationURL)
	require.Zero(t, gw.initCalls, "wallet settlement must not touch the gateway")

	require.True(t, decimal.NewFromInt(35).Equal(walletBalance(t, store, "b-1")))
	require.True(t, decimal.NewFromInt(100).Equal(walletBalance(t, store, "v-1")))
	require.True(t, decimal.NewFromInt(50).Equal(walletBalance(t, store, "v-2")))

	lines, err := store.Carts().ListByOwner(ctx, "b-1")
	require.NoError(t, err)
	require.Empty(t, lines)

	entry, err := store.Ledger().GetByReference(ctx, result.PaymentReference)
	require.NoError(t, err)
	require.Equal(t, domledger.StatusSuccess, entry.Status)
	require.Equal(t, domledger.PurposeOrderCharge, entry.Purpose)

	ord, err := store.Orders().Get(ctx, result.OrderID)
	require.NoError(t, err)
	require.NoError(t, ord.CheckTotals())
}

func TestCheckoutWalletMethodRejectsShortBalance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gw := &fakeGateway{}
	uc := NewCreateOrderUseCase(store, gw, &seqIDGenerator{}, nil, nil)

	seedBuyer(t, store, "b-1", 100)
	seedTwoVendorCart(t, store, "b-1")

	_, err := uc.Execute(ctx, CreateOrderInput{
		BuyerID:             "b-1",
		TransactionPassword: "hunter2",
		Method:              MethodWallet,
	})
	require.ErrorIs(t, err, domwallet.ErrInsufficientFunds)
	require.Zero(t, gw.initCalls)

	require.True(t, decimal.NewFromInt(100).Equal(walletBalance(t, store, "b-1")))
	lines, err := store.Carts().ListByOwner(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, lines, 2, "cart must survive a rejected checkout")
}

func TestCheckoutFallsBackToGateway(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gw := &fakeGateway{}
	uc := NewCreateOrderUseCase(store, gw, &seqIDGenerator{}, nil, nil)

	seedBuyer(t, store, "b-1", 100)
	seedTwoVendorCart(t, store, "b-1")

	result, err := uc.Execute(ctx, CreateOrderInput{BuyerID: "b-1", TransactionPassword: "hunter2"})
	require.NoError(t, err)
	require.Equal(t, 1, gw.initCalls)
	require.Equal(t, domorder.StatusProcessing, result.Status)
	require.NotEmpty(t, result.AuthorizationURL)

	// Nothing moves until the webhook settles the charge.
	require.True(t, decimal.NewFromInt(100).Equal(walletBalance(t, store, "b-1")))

	lines, err := store.Carts().ListByOwner(ctx, "b-1")
	require.NoError(t, err)
	require.Empty(t, lines)

	entry, err := store.Ledger().GetByReference(ctx, result.PaymentReference)
	require.NoError(t, err)
	require.Equal(t, domledger.StatusProcessing, entry.Status)

	ord, err := store.Orders().GetByReference(ctx, result.PaymentReference)
	require.NoError(t, err)
	require.Equal(t, result.OrderID, ord.ID)
}

func TestCheckoutGatewayRejectionLeavesNoState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gw := &fakeGateway{initErr: &domgateway.Error{
		Classification: domgateway.ClassValidation,
		Message:        "invalid email",
	}}
	uc := NewCreateOrderUseCase(store, gw, &seqIDGenerator{}, nil, nil)

	seedBuyer(t, store, "b-1", 0)
	seedTwoVendorCart(t, store, "b-1")

	_, err := uc.Execute(ctx, CreateOrderInput{BuyerID: "b-1", TransactionPassword: "hunter2"})
	ge, ok := domgateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, domgateway.ClassValidation, ge.Classification)

	lines, err := store.Carts().ListByOwner(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
}

func TestCheckoutRequiresPassword(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewCreateOrderUseCase(store, &fakeGateway{}, &seqIDGenerator{}, nil, nil)

	seedBuyer(t, store, "b-1", 200)
	seedTwoVendorCart(t, store, "b-1")

	_, err := uc.Execute(ctx, CreateOrderInput{BuyerID: "b-1", TransactionPassword: "wrong"})
	require.ErrorIs(t, err, domaccount.ErrPasswordInvalid)

	fresh := domaccount.New("b-2", domaccount.KindBuyer, "b2@shop.test", "Buyer")
	require.NoError(t, store.Accounts().Save(ctx, fresh))
	_, err = uc.Execute(ctx, CreateOrderInput{BuyerID: "b-2", TransactionPassword: "anything"})
	require.ErrorIs(t, err, domaccount.ErrPasswordNotSet)
}

func TestCheckoutEmptyCart(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewCreateOrderUseCase(store, &fakeGateway{}, &seqIDGenerator{}, nil, nil)

	seedBuyer(t, store, "b-1", 200)

	_, err := uc.Execute(ctx, CreateOrderInput{BuyerID: "b-1", TransactionPassword: "hunter2"})
	require.ErrorIs(t, err, domcart.ErrEmpty)
}
