package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wifibill/hotspot-server/internal/models"
	"github.com/wifibill/hotspot-server/internal/payment"
	"github.com/wifibill/hotspot-server/internal/router"
	"github.com/wifibill/hotspot-server/internal/storage"
	"github.com/wifibill/hotspot-server/pkg/crypto"
)

// Common errors
var (
	// ErrZoneInactive means the zone is disabled and cannot sell access
	ErrZoneInactive = errors.New("zone is not active")
	// ErrProviderNotConfigured means no gateway is registered for the provider
	ErrProviderNotConfigured = errors.New("payment provider not configured")
	// ErrAmountMismatch means the submitted amount does not match the plan price
	ErrAmountMismatch = errors.New("amount does not match plan price")
	// ErrVoucherNotRedeemable means the voucher is expired or already consumed
	ErrVoucherNotRedeemable = errors.New("voucher not redeemable")
	// ErrNotRetryable means the payment is not in a state where provisioning
	// can be retried
	ErrNotRetryable = errors.New("provisioning not retryable")
	// ErrNotCash means cash confirmation was attempted on a provider payment
	ErrNotCash = errors.New("payment is not a cash payment")
)

// NATS subjects published by the coordinator
const (
	SubjectPaymentCompleted = "billing.payment.completed"
	SubjectProvisionRetry   = "billing.provision.retry"
)

// Publisher pushes billing events onto the message bus. It may be nil-backed
// in deployments without NATS; publish failures never fail the operation.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// maxCodeAttempts bounds regeneration when a generated voucher code collides
// with an existing one.
const maxCodeAttempts = 5

// Coordinator drives a payment from initiation through voucher issuance to
// router provisioning. The payment status transition in storage is the single
// linearization point: however many callbacks and polls race, exactly one
// caller issues the voucher.
type Coordinator struct {
	store       storage.Store
	gateways    map[models.PaymentProvider]payment.Gateway
	provisioner router.Provisioner
	catalog     *PlanCatalog
	publisher   Publisher

	cipherKey       []byte
	defaultPort     int
	enforceCapacity bool
}

// CoordinatorConfig wires a Coordinator's collaborators explicitly
type CoordinatorConfig struct {
	Store       storage.Store
	Gateways    []payment.Gateway
	Provisioner router.Provisioner
	Catalog     *PlanCatalog
	Publisher   Publisher

	// EncryptionKey decrypts zone router passwords; nil stores them plain
	EncryptionKey []byte

	DefaultRouterPort int
	EnforceCapacity   bool
}

// NewCoordinator creates a coordinator
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	gateways := make(map[models.PaymentProvider]payment.Gateway, len(cfg.Gateways))
	for _, g := range cfg.Gateways {
		gateways[g.Name()] = g
	}

	port := cfg.DefaultRouterPort
	if port == 0 {
		port = 8728
	}

	return &Coordinator{
		store:           cfg.Store,
		gateways:        gateways,
		provisioner:     cfg.Provisioner,
		catalog:         cfg.Catalog,
		publisher:       cfg.Publisher,
		cipherKey:       cfg.EncryptionKey,
		defaultPort:     port,
		enforceCapacity: cfg.EnforceCapacity,
	}
}

// Catalog returns the plan catalog
func (c *Coordinator) Catalog() *PlanCatalog {
	return c.catalog
}

// InitiateRequest describes a new purchase from the captive portal
type InitiateRequest struct {
	ZoneID      uuid.UUID
	PlanID      string
	Provider    models.PaymentProvider
	PhoneNumber string

	// Amount is what the customer was shown. Zero means trust the catalog;
	// a non-zero value must match the plan price exactly.
	Amount int64
}

// InitiatePayment validates the purchase, persists a PENDING payment and asks
// the provider to charge the customer. Validation happens before the provider
// call so a bad request never creates provider-side state.
func (c *Coordinator) InitiatePayment(ctx context.Context, req InitiateRequest) (*models.Payment, error) {
	plan, err := c.catalog.Resolve(req.PlanID)
	if err != nil {
		return nil, err
	}

	if req.Amount != 0 && req.Amount != plan.Price {
		return nil, fmt.Errorf("%w: got %d, plan %s costs %d",
			ErrAmountMismatch, req.Amount, plan.ID, plan.Price)
	}

	zone, err := c.store.GetZone(ctx, req.ZoneID)
	if err != nil {
		return nil, fmt.Errorf("get zone: %w", err)
	}
	if !zone.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrZoneInactive, zone.Name)
	}

	gateway, ok := c.gateways[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, req.Provider)
	}

	p := &models.Payment{
		Reference:      uuid.New().String(),
		Provider:       req.Provider,
		PhoneNumber:    req.PhoneNumber,
		PlanID:         plan.ID,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Status:         models.PaymentStatusPending,
		ProvisionState: models.ProvisionStateNone,
		ZoneID:         zone.ID,
	}

	if err := c.store.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	err = gateway.RequestPayment(ctx, payment.Request{
		Reference:   p.Reference,
		ExternalID:  p.ID.String(),
		PhoneNumber: p.PhoneNumber,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Message:     fmt.Sprintf("WiFi access: %s", plan.Name),
	})
	if err != nil {
		if _, ferr := c.store.MarkPaymentFailed(ctx, p.ID); ferr != nil {
			log.Error().Err(ferr).Str("payment_id", p.ID.String()).
				Msg("Failed to mark payment failed after provider error")
		}
		p.Status = models.PaymentStatusFailed
		c.logEvent(ctx, &models.EventLog{
			ZoneID:      &p.ZoneID,
			PaymentID:   &p.ID,
			Type:        models.EventTypePaymentFailed,
			Level:       models.EventLevelError,
			Description: fmt.Sprintf("Provider %s rejected charge request", p.Provider),
			Details:     models.Variables{"error": err.Error()},
		})
		return p, fmt.Errorf("request payment: %w", err)
	}

	c.logEvent(ctx, &models.EventLog{
		ZoneID:      &p.ZoneID,
		PaymentID:   &p.ID,
		Type:        models.EventTypePaymentInitiated,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Payment of %d %s initiated via %s", p.Amount, p.Currency, p.Provider),
	})

	log.Info().
		Str("payment_id", p.ID.String()).
		Str("reference", p.Reference).
		Str("provider", string(p.Provider)).
		Int64("amount", p.Amount).
		Msg("Payment initiated")

	return p, nil
}

// CheckPayment polls the provider for the payment's status and, on a terminal
// answer, drives the same confirmation path as a provider callback. It is safe
// to call any number of times; only the first terminal observation has effect.
func (c *Coordinator) CheckPayment(ctx context.Context, reference string) (*models.Payment, error) {
	p, err := c.store.GetPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if p.Terminal() {
		return p, nil
	}

	gateway, ok := c.gateways[p.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, p.Provider)
	}

	status, err := gateway.CheckStatus(ctx, p.Reference)
	if err != nil {
		// A transient poll failure leaves the payment PENDING; the portal
		// polls again and the sweeper is the backstop.
		log.Warn().Err(err).Str("reference", reference).Msg("Provider status check failed")
		return p, nil
	}

	switch status {
	case payment.StatusSuccessful:
		return c.ConfirmPayment(ctx, p.ID)
	case payment.StatusFailed:
		return c.FailPayment(ctx, p.ID, "provider reported failure")
	default:
		return p, nil
	}
}

// ConfirmPayment marks a payment SUCCEEDED and, if this call won the
// transition, issues the voucher and provisions the router login. Losing
// callers get the already-confirmed payment back unchanged, which makes
// provider callbacks and status polls idempotent against each other.
func (c *Coordinator) ConfirmPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	won, err := c.store.MarkPaymentSucceeded(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("mark payment succeeded: %w", err)
	}

	if !won {
		return c.store.GetPayment(ctx, paymentID)
	}

	p, err := c.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	c.logEvent(ctx, &models.EventLog{
		ZoneID:      &p.ZoneID,
		PaymentID:   &p.ID,
		Type:        models.EventTypePaymentCompleted,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Payment of %d %s completed", p.Amount, p.Currency),
	})

	v, err := c.issueVoucher(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("issue voucher: %w", err)
	}
	p.VoucherID = &v.ID

	c.publish(SubjectPaymentCompleted, map[string]string{
		"payment_id": p.ID.String(),
		"voucher_id": v.ID.String(),
		"zone_id":    p.ZoneID.String(),
	})

	// Provisioning failure does not undo the sale. The payment is recorded
	// as paid with provisioning FAILED and is retried asynchronously.
	if err := c.provision(ctx, p, v); err != nil {
		log.Error().Err(err).
			Str("payment_id", p.ID.String()).
			Str("voucher_code", v.Code).
			Msg("Router provisioning failed, queued for retry")
	}

	return c.store.GetPayment(ctx, paymentID)
}

// FailPayment marks a payment FAILED. Like ConfirmPayment it is idempotent:
// a payment already terminal is returned unchanged.
func (c *Coordinator) FailPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	won, err := c.store.MarkPaymentFailed(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("mark payment failed: %w", err)
	}

	p, err := c.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if won {
		c.logEvent(ctx, &models.EventLog{
			ZoneID:      &p.ZoneID,
			PaymentID:   &p.ID,
			Type:        models.EventTypePaymentFailed,
			Level:       models.EventLevelWarning,
			Description: fmt.Sprintf("Payment failed: %s", reason),
		})
	}

	return p, nil
}

// ConfirmCash records an administrator's confirmation of an over-the-counter
// cash sale. Only CASH payments may be confirmed this way.
func (c *Coordinator) ConfirmCash(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	p, err := c.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if p.Provider != models.ProviderCash {
		return nil, fmt.Errorf("%w: %s", ErrNotCash, p.Provider)
	}

	return c.ConfirmPayment(ctx, paymentID)
}

// issueVoucher creates the voucher for a confirmed payment inside a
// transaction and links it to the payment. A code collision regenerates
// rather than failing the sale.
func (c *Coordinator) issueVoucher(ctx context.Context, p *models.Payment) (*models.Voucher, error) {
	plan, err := c.catalog.Resolve(p.PlanID)
	if err != nil {
		return nil, err
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var v *models.Voucher
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}

		v = &models.Voucher{
			Code:            code,
			PlanID:          plan.ID,
			PlanName:        plan.Name,
			DurationMinutes: plan.DurationMinutes,
			Price:           plan.Price,
			Currency:        plan.Currency,
			Status:          models.VoucherStatusUnused,
			ExpiresAt:       time.Now().Add(Duration(plan)),
			ZoneID:          p.ZoneID,
			PaymentID:       &p.ID,
		}

		err = tx.CreateVoucher(ctx, v)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("create voucher: %w", err)
		}
		v = nil
	}
	if v == nil {
		return nil, fmt.Errorf("voucher code collisions exhausted %d attempts", maxCodeAttempts)
	}

	if err := tx.SetPaymentVoucher(ctx, p.ID, v.ID); err != nil {
		return nil, fmt.Errorf("link voucher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	c.logEvent(ctx, &models.EventLog{
		ZoneID:      &p.ZoneID,
		PaymentID:   &p.ID,
		VoucherID:   &v.ID,
		Type:        models.EventTypeVoucherIssued,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Voucher %s issued for plan %s", v.Code, v.PlanName),
	})

	log.Info().
		Str("voucher_code", v.Code).
		Str("payment_id", p.ID.String()).
		Str("plan", v.PlanID).
		Msg("Voucher issued")

	return v, nil
}

// provision creates the hotspot login on the zone's router. The voucher code
// is both username and password, matching what is printed for the customer.
func (c *Coordinator) provision(ctx context.Context, p *models.Payment, v *models.Voucher) error {
	if err := c.store.SetProvisionState(ctx, p.ID, models.ProvisionStatePending); err != nil {
		return err
	}

	err := c.doProvision(ctx, p, v)
	if err != nil {
		if serr := c.store.SetProvisionState(ctx, p.ID, models.ProvisionStateFailed); serr != nil {
			log.Error().Err(serr).Str("payment_id", p.ID.String()).
				Msg("Failed to record provisioning failure")
		}

		c.logEvent(ctx, &models.EventLog{
			ZoneID:      &p.ZoneID,
			PaymentID:   &p.ID,
			VoucherID:   &v.ID,
			Type:        models.EventTypeProvisionFailed,
			Level:       models.EventLevelError,
			Description: fmt.Sprintf("Failed to provision voucher %s", v.Code),
			Details:     models.Variables{"error": err.Error()},
		})

		c.publish(SubjectProvisionRetry, map[string]string{
			"payment_id": p.ID.String(),
		})

		return err
	}

	if err := c.store.SetProvisionState(ctx, p.ID, models.ProvisionStateProvisioned); err != nil {
		return err
	}

	c.logEvent(ctx, &models.EventLog{
		ZoneID:      &p.ZoneID,
		PaymentID:   &p.ID,
		VoucherID:   &v.ID,
		Type:        models.EventTypeProvisioned,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Voucher %s provisioned on router", v.Code),
	})

	return nil
}

func (c *Coordinator) doProvision(ctx context.Context, p *models.Payment, v *models.Voucher) error {
	zone, err := c.store.GetZone(ctx, p.ZoneID)
	if err != nil {
		return fmt.Errorf("get zone: %w", err)
	}

	if c.enforceCapacity && zone.MaxUsers > 0 {
		active, err := c.store.CountActiveSessions(ctx, zone.ID)
		if err != nil {
			return fmt.Errorf("count sessions: %w", err)
		}
		if active >= zone.MaxUsers {
			return fmt.Errorf("%w: %d/%d", router.ErrCapacityExceeded, active, zone.MaxUsers)
		}
	}

	target, err := c.resolveTarget(zone)
	if err != nil {
		return err
	}

	plan, err := c.catalog.Resolve(v.PlanID)
	if err != nil {
		return err
	}

	err = c.provisioner.CreateLogin(ctx, target, router.Login{
		Username:  v.Code,
		Password:  v.Code,
		Profile:   ProfileName(plan),
		TimeLimit: time.Duration(v.DurationMinutes) * time.Minute,
		Comment:   fmt.Sprintf("payment:%s", p.ID),
	})
	if errors.Is(err, router.ErrDuplicateUser) {
		// A prior attempt created the login before failing to record it
		return nil
	}
	return err
}

// RetryProvisioning re-runs router provisioning for a paid payment whose
// login was never created. Driven by the retry subscriber and by the manual
// admin endpoint.
func (c *Coordinator) RetryProvisioning(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	p, err := c.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if p.Status != models.PaymentStatusSucceeded || p.VoucherID == nil {
		return nil, fmt.Errorf("%w: payment %s is %s", ErrNotRetryable, p.ID, p.Status)
	}
	if p.ProvisionState == models.ProvisionStateProvisioned {
		return p, nil
	}

	v, err := c.store.GetVoucher(ctx, *p.VoucherID)
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}

	c.logEvent(ctx, &models.EventLog{
		ZoneID:      &p.ZoneID,
		PaymentID:   &p.ID,
		VoucherID:   &v.ID,
		Type:        models.EventTypeProvisionRetry,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Retrying provisioning for voucher %s", v.Code),
	})

	if err := c.provision(ctx, p, v); err != nil {
		return nil, err
	}

	return c.store.GetPayment(ctx, paymentID)
}

// ValidateVoucher checks a voucher code for redeemability and activates it on
// first use. Expired or consumed vouchers return ErrVoucherNotRedeemable.
func (c *Coordinator) ValidateVoucher(ctx context.Context, code string) (*models.Voucher, error) {
	v, err := c.store.GetVoucherByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !v.Redeemable(now) {
		return nil, fmt.Errorf("%w: %s is %s", ErrVoucherNotRedeemable, v.Code, v.Status)
	}

	if v.Status == models.VoucherStatusUnused {
		v.Status = models.VoucherStatusActive
		if err := c.store.UpdateVoucher(ctx, v); err != nil {
			return nil, fmt.Errorf("activate voucher: %w", err)
		}
	}

	return v, nil
}

// ZoneActiveUsers fetches the router's live session list for a zone and
// replaces the stored snapshot with it.
func (c *Coordinator) ZoneActiveUsers(ctx context.Context, zoneID uuid.UUID) ([]*models.RouterSession, error) {
	zone, err := c.store.GetZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	target, err := c.resolveTarget(zone)
	if err != nil {
		return nil, err
	}

	live, err := c.provisioner.ListActiveSessions(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := time.Now()
	sessions := make([]*models.RouterSession, 0, len(live))
	for _, s := range live {
		sessions = append(sessions, &models.RouterSession{
			ZoneID:     zone.ID,
			Username:   s.Username,
			Address:    s.Address,
			MACAddress: s.MACAddress,
			Uptime:     s.Uptime,
			BytesIn:    s.BytesIn,
			BytesOut:   s.BytesOut,
			Status:     models.SessionStatusActive,
			StartedAt:  now,
		})
	}

	if err := c.store.ReplaceActiveSessions(ctx, zone.ID, sessions); err != nil {
		return nil, fmt.Errorf("store sessions: %w", err)
	}

	return sessions, nil
}

// DisconnectUser forcibly ends a user's session on the zone's router. The
// hotspot username is the voucher code, so the matching voucher is consumed:
// a disconnected customer cannot log back in with the same code.
func (c *Coordinator) DisconnectUser(ctx context.Context, zoneID uuid.UUID, username string) error {
	zone, err := c.store.GetZone(ctx, zoneID)
	if err != nil {
		return err
	}

	target, err := c.resolveTarget(zone)
	if err != nil {
		return err
	}

	if err := c.provisioner.DisconnectSession(ctx, target, username); err != nil {
		return err
	}

	if err := c.store.EndSession(ctx, zone.ID, username); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("end session: %w", err)
	}

	if v, verr := c.store.GetVoucherByCode(ctx, username); verr == nil {
		if v.Status == models.VoucherStatusUnused || v.Status == models.VoucherStatusActive {
			v.Status = models.VoucherStatusUsed
			if uerr := c.store.UpdateVoucher(ctx, v); uerr != nil {
				log.Warn().Err(uerr).Str("voucher_code", v.Code).
					Msg("Failed to mark voucher used after disconnect")
			}
		}
	}

	c.logEvent(ctx, &models.EventLog{
		ZoneID:      &zone.ID,
		Type:        models.EventTypeSessionDisconnect,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Session for %s disconnected by administrator", username),
	})

	return nil
}

// TestZone runs a connectivity test against a zone's router and updates the
// zone's last-seen timestamp on success.
func (c *Coordinator) TestZone(ctx context.Context, zoneID uuid.UUID) (*models.ZoneHealth, error) {
	zone, err := c.store.GetZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	target, err := c.resolveTarget(zone)
	if err != nil {
		return nil, err
	}

	health, err := c.provisioner.TestConnectivity(ctx, target)
	if err != nil {
		c.logEvent(ctx, &models.EventLog{
			ZoneID:      &zone.ID,
			Type:        models.EventTypeZoneDown,
			Level:       models.EventLevelWarning,
			Description: fmt.Sprintf("Zone %s unreachable", zone.Name),
			Details:     models.Variables{"error": err.Error()},
		})
		if health == nil {
			health = &router.Health{Reachable: false, Message: err.Error()}
		}
	} else {
		now := time.Now()
		zone.LastSeenAt = &now
		if uerr := c.store.UpdateZone(ctx, zone); uerr != nil {
			log.Warn().Err(uerr).Str("zone_id", zone.ID.String()).Msg("Failed to update zone last seen")
		}
	}

	return &models.ZoneHealth{
		Reachable: health.Reachable,
		Identity:  health.Identity,
		Version:   health.Version,
		Uptime:    health.Uptime,
		Message:   health.Message,
	}, nil
}

// EncryptRouterPassword encrypts a zone's router API password for storage
func (c *Coordinator) EncryptRouterPassword(plaintext string) ([]byte, error) {
	if len(c.cipherKey) == 0 {
		return []byte(plaintext), nil
	}
	return crypto.EncryptString(c.cipherKey, plaintext)
}

// resolveTarget builds router connection parameters for a zone, decrypting
// the stored API password.
func (c *Coordinator) resolveTarget(zone *models.Zone) (router.Target, error) {
	password := string(zone.APIPasswordCipher)
	if len(c.cipherKey) > 0 && len(zone.APIPasswordCipher) > 0 {
		decrypted, err := crypto.DecryptString(c.cipherKey, zone.APIPasswordCipher)
		if err != nil {
			return router.Target{}, fmt.Errorf("decrypt router password: %w", err)
		}
		password = decrypted
	}

	port := zone.RouterPort
	if port == 0 {
		port = c.defaultPort
	}

	return router.Target{
		ZoneID:   zone.ID,
		Address:  zone.RouterAddress,
		Port:     port,
		Username: zone.APIUser,
		Password: password,
	}, nil
}

// GenerateVouchers creates a batch of unsold vouchers for a plan, for printed
// scratch-card style distribution. ValidUntil bounds redemption.
func (c *Coordinator) GenerateVouchers(ctx context.Context, zoneID uuid.UUID, planID string, count int, validUntil time.Time) ([]*models.Voucher, error) {
	plan, err := c.catalog.Resolve(planID)
	if err != nil {
		return nil, err
	}

	if _, err := c.store.GetZone(ctx, zoneID); err != nil {
		return nil, fmt.Errorf("get zone: %w", err)
	}

	vouchers := make([]*models.Voucher, 0, count)
	for i := 0; i < count; i++ {
		var v *models.Voucher
		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			code, err := GenerateCode()
			if err != nil {
				return vouchers, err
			}

			v = &models.Voucher{
				Code:            code,
				PlanID:          plan.ID,
				PlanName:        plan.Name,
				DurationMinutes: plan.DurationMinutes,
				Price:           plan.Price,
				Currency:        plan.Currency,
				Status:          models.VoucherStatusUnused,
				ExpiresAt:       validUntil,
				ZoneID:          zoneID,
			}

			err = c.store.CreateVoucher(ctx, v)
			if err == nil {
				break
			}
			if !errors.Is(err, storage.ErrDuplicateKey) {
				return vouchers, fmt.Errorf("create voucher: %w", err)
			}
			v = nil
		}
		if v == nil {
			return vouchers, fmt.Errorf("voucher code collisions exhausted %d attempts", maxCodeAttempts)
		}
		vouchers = append(vouchers, v)
	}

	return vouchers, nil
}

func (c *Coordinator) publish(subject string, payload map[string]string) {
	if c.publisher == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	if err := c.publisher.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}

func (c *Coordinator) logEvent(ctx context.Context, event *models.EventLog) {
	if err := c.store.CreateEventLog(ctx, event); err != nil {
		log.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to write event log")
	}
}
