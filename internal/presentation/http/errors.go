package httppresentation

import (
	"errors"
	"net/http"

	"github.com/trovamart/marketpay/internal/application"
	appwebhook "github.com/trovamart/marketpay/internal/application/webhook"
	domaccount "github.com/trovamart/marketpay/internal/domain/account"
	domcart "github.com/trovamart/marketpay/internal/domain/cart"
	domcoupon "github.com/trovamart/marketpay/internal/domain/coupon"
	domgateway "github.com/trovamart/marketpay/internal/domain/gateway"
	domledger "github.com/trovamart/marketpay/internal/domain/ledger"
	domorder "github.com/trovamart/marketpay/internal/domain/order"
	dompayout "github.com/trovamart/marketpay/internal/domain/payout"
	domwallet "github.com/trovamart/marketpay/internal/domain/wallet"
)

// writeDomainError maps the domain error taxonomy onto HTTP statuses. Gateway
// failures keep their classification: user mistakes are 400, upstream faults
// are 502, unreachability is 503.
func writeDomainError(w http.ResponseWriter, err error) {
	if ge, ok := domgateway.AsError(err); ok {
		switch ge.Classification {
		case domgateway.ClassValidation:
			writeError(w, http.StatusBadRequest, err)
		case domgateway.ClassServer:
			writeError(w, http.StatusBadGateway, err)
		default:
			writeError(w, http.StatusServiceUnavailable, err)
		}
		return
	}

	switch {
	case errors.Is(err, domaccount.ErrPasswordNotSet):
		// Setup required rather than rejected: the client should route the
		// user to transaction-password setup.
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": err.Error(),
			"code":  "transaction_password_not_set",
		})
	case errors.Is(err, domaccount.ErrPasswordInvalid):
		writeError(w, http.StatusUnauthorized, err)

	case errors.Is(err, domaccount.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domwallet.ErrNotFound),
		errors.Is(err, domledger.ErrNotFound),
		errors.Is(err, domcoupon.ErrNotFound),
		errors.Is(err, dompayout.ErrRecipientNotFound),
		errors.Is(err, appwebhook.ErrUnknownReference):
		writeError(w, http.StatusNotFound, err)

	case errors.Is(err, domorder.ErrConflict),
		errors.Is(err, domledger.ErrConflict),
		errors.Is(err, domorder.ErrImmutable),
		errors.Is(err, domcoupon.ErrAlreadyApplied):
		writeError(w, http.StatusConflict, err)

	case errors.Is(err, application.ErrValidation),
		errors.Is(err, domcart.ErrEmpty),
		errors.Is(err, domwallet.ErrInsufficientFunds),
		errors.Is(err, domwallet.ErrInvalidAmount),
		errors.Is(err, domcoupon.ErrNoMatchingItem),
		errors.Is(err, domcoupon.ErrInvalidPercent),
		errors.Is(err, dompayout.ErrInvalidAccount),
		errors.Is(err, dompayout.ErrUnknownBank),
		errors.Is(err, appwebhook.ErrAmountMismatch):
		writeError(w, http.StatusBadRequest, err)

	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
