package payment

import (
	"context"
	"errors"

	"github.com/wifibill/hotspot-server/internal/models"
)

// Common errors
var (
	// ErrProviderUnavailable means the provider auth/token exchange failed.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrTransient is a retryable transport failure, distinct from a
	// definitive FAILED status.
	ErrTransient = errors.New("transient provider error")
	// ErrInvalidRequest means the charge request itself was malformed.
	ErrInvalidRequest = errors.New("invalid payment request")
)

// Status is the provider-reported state of a charge
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusSuccessful Status = "SUCCESSFUL"
	StatusFailed     Status = "FAILED"
)

// Request describes a charge to initiate. Reference is chosen by the caller
// and doubles as the provider-side idempotency key, so re-submitting the same
// request cannot create a second charge.
type Request struct {
	Reference   string
	ExternalID  string
	PhoneNumber string
	Amount      int64
	Currency    string
	Message     string
}

// Gateway abstracts a mobile-money provider
type Gateway interface {
	Name() models.PaymentProvider

	// RequestPayment initiates a charge. It creates provider-side state only;
	// the caller persists the payment intent.
	RequestPayment(ctx context.Context, req Request) error

	// CheckStatus polls the provider for the current charge status. It is
	// read-only on the provider side and safe to call repeatedly.
	CheckStatus(ctx context.Context, reference string) (Status, error)
}
