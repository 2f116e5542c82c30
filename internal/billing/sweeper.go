package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wifibill/hotspot-server/internal/models"
	"github.com/wifibill/hotspot-server/internal/storage"
)

// Sweeper periodically fails abandoned PENDING payments and expires vouchers
// whose validity window has elapsed. It is the backstop for lost provider
// callbacks and for customers who never complete the charge on their phone.
type Sweeper struct {
	coordinator *Coordinator

	interval       time.Duration
	pendingTimeout time.Duration
}

// NewSweeper creates a sweeper
func NewSweeper(coordinator *Coordinator, interval, pendingTimeout time.Duration) *Sweeper {
	return &Sweeper{
		coordinator:    coordinator,
		interval:       interval,
		pendingTimeout: pendingTimeout,
	}
}

// Run sweeps on a ticker until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().
		Dur("interval", s.interval).
		Dur("pending_timeout", s.pendingTimeout).
		Msg("Payment sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Payment sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if err := s.sweepStalePayments(ctx); err != nil {
		log.Error().Err(err).Msg("Stale payment sweep failed")
	}
	if err := s.expireVouchers(ctx); err != nil {
		log.Error().Err(err).Msg("Voucher expiry sweep failed")
	}
}

// sweepStalePayments resolves payments stuck in PENDING past the timeout.
// Each is polled once before being failed, so a charge that succeeded while
// its callback was lost still becomes a voucher.
func (s *Sweeper) sweepStalePayments(ctx context.Context) error {
	cutoff := time.Now().Add(-s.pendingTimeout)

	stale, err := s.coordinator.store.ListStalePendingPayments(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale payments: %w", err)
	}

	for _, p := range stale {
		resolved, err := s.coordinator.CheckPayment(ctx, p.Reference)
		if err != nil {
			log.Warn().Err(err).Str("payment_id", p.ID.String()).Msg("Stale payment check failed")
			continue
		}
		if resolved.Terminal() {
			continue
		}

		if _, err := s.coordinator.FailPayment(ctx, p.ID, "pending timeout exceeded"); err != nil {
			log.Error().Err(err).Str("payment_id", p.ID.String()).Msg("Failed to expire payment")
			continue
		}

		s.coordinator.logEvent(ctx, &models.EventLog{
			ZoneID:      &p.ZoneID,
			PaymentID:   &p.ID,
			Type:        models.EventTypePaymentExpired,
			Level:       models.EventLevelWarning,
			Description: fmt.Sprintf("Payment %s expired after %s pending", p.Reference, s.pendingTimeout),
		})

		log.Info().
			Str("payment_id", p.ID.String()).
			Str("reference", p.Reference).
			Msg("Stale pending payment expired")
	}

	return nil
}

// expireVouchers marks elapsed vouchers EXPIRED and removes their router
// logins so access ends with the paid window.
func (s *Sweeper) expireVouchers(ctx context.Context) error {
	now := time.Now()

	expired, err := s.coordinator.store.ListExpiredVouchers(ctx, now)
	if err != nil {
		return fmt.Errorf("list expired vouchers: %w", err)
	}

	for _, v := range expired {
		v.Status = models.VoucherStatusExpired
		if err := s.coordinator.store.UpdateVoucher(ctx, v); err != nil {
			log.Error().Err(err).Str("voucher_code", v.Code).Msg("Failed to expire voucher")
			continue
		}

		if err := s.removeLogin(ctx, v); err != nil {
			log.Warn().Err(err).
				Str("voucher_code", v.Code).
				Msg("Failed to remove expired login from router")
		}

		s.coordinator.logEvent(ctx, &models.EventLog{
			ZoneID:      &v.ZoneID,
			VoucherID:   &v.ID,
			PaymentID:   v.PaymentID,
			Type:        models.EventTypeVoucherExpired,
			Level:       models.EventLevelInfo,
			Description: fmt.Sprintf("Voucher %s expired", v.Code),
		})
	}

	return nil
}

func (s *Sweeper) removeLogin(ctx context.Context, v *models.Voucher) error {
	zone, err := s.coordinator.store.GetZone(ctx, v.ZoneID)
	if err != nil {
		return err
	}

	target, err := s.coordinator.resolveTarget(zone)
	if err != nil {
		return err
	}

	if err := s.coordinator.provisioner.RemoveLogin(ctx, target, v.Code); err != nil {
		return err
	}

	err = s.coordinator.store.EndSession(ctx, v.ZoneID, v.Code)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	return nil
}
