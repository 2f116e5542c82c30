package payment

import (
	"context"

	"github.com/wifibill/hotspot-server/internal/models"
)

// CashGateway handles over-the-counter sales. There is no provider to call;
// an administrator confirms receipt of cash through the admin API, which
// drives the same confirmation path as a provider callback.
type CashGateway struct{}

// NewCashGateway creates a new cash gateway
func NewCashGateway() *CashGateway {
	return &CashGateway{}
}

// Name returns the provider identifier
func (g *CashGateway) Name() models.PaymentProvider {
	return models.ProviderCash
}

// RequestPayment records intent only; nothing external is charged
func (g *CashGateway) RequestPayment(ctx context.Context, r Request) error {
	return nil
}

// CheckStatus always reports PENDING: cash is confirmed manually, never polled
func (g *CashGateway) CheckStatus(ctx context.Context, reference string) (Status, error) {
	return StatusPending, nil
}
