package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/wifibill/hotspot-server/internal/billing"
	"github.com/wifibill/hotspot-server/internal/config"
)

// ConnectNATS connects to NATS with reconnect handling
func ConnectNATS(cfg *config.NATSConfig, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.ReconnectWait(cfg.ReconnectInterval),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Msg("Reconnected to NATS")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().
				Err(err).
				Str("subject", sub.Subject).
				Msg("NATS error")
		}),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	return nats.Connect(cfg.URL, opts...)
}

// NATSPublisher adapts a NATS connection to the billing publisher interface
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher creates a publisher
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// Publish publishes a message
func (p *NATSPublisher) Publish(subject string, data []byte) error {
	return p.nc.Publish(subject, data)
}

// NATSSubscriber consumes billing events. Its one job today is driving
// provisioning retries: a failed provisioning publishes a retry message, the
// subscriber waits out the delay and re-runs provisioning. A still-broken
// router fails again and republishes, so retries continue at retryDelay pace
// until the router comes back or an administrator intervenes.
type NATSSubscriber struct {
	nc          *nats.Conn
	coordinator *billing.Coordinator
	retryDelay  time.Duration
	subs        []*nats.Subscription
}

// NewNATSSubscriber creates a subscriber
func NewNATSSubscriber(nc *nats.Conn, coordinator *billing.Coordinator, retryDelay time.Duration) *NATSSubscriber {
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	return &NATSSubscriber{
		nc:          nc,
		coordinator: coordinator,
		retryDelay:  retryDelay,
		subs:        make([]*nats.Subscription, 0),
	}
}

// Start starts subscriptions and blocks until the context is cancelled
func (s *NATSSubscriber) Start(ctx context.Context) error {
	sub1, err := s.nc.Subscribe(billing.SubjectProvisionRetry, s.handleProvisionRetry)
	if err != nil {
		return fmt.Errorf("subscribe provision retry: %w", err)
	}
	s.subs = append(s.subs, sub1)

	sub2, err := s.nc.Subscribe(billing.SubjectPaymentCompleted, s.handlePaymentCompleted)
	if err != nil {
		return fmt.Errorf("subscribe payment completed: %w", err)
	}
	s.subs = append(s.subs, sub2)

	log.Info().
		Int("subscriptions", len(s.subs)).
		Msg("NATS subscriber started")

	<-ctx.Done()

	for _, sub := range s.subs {
		sub.Unsubscribe()
	}

	return ctx.Err()
}

// handleProvisionRetry re-runs provisioning for a paid payment after a delay
func (s *NATSSubscriber) handleProvisionRetry(msg *nats.Msg) {
	var event struct {
		PaymentID string `json:"payment_id"`
	}
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal provision retry event")
		return
	}

	paymentID, err := uuid.Parse(event.PaymentID)
	if err != nil {
		log.Error().Err(err).Str("payment_id", event.PaymentID).Msg("Invalid payment id in retry event")
		return
	}

	log.Info().
		Str("payment_id", event.PaymentID).
		Dur("delay", s.retryDelay).
		Msg("Provisioning retry scheduled")

	time.AfterFunc(s.retryDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := s.coordinator.RetryProvisioning(ctx, paymentID); err != nil {
			log.Warn().Err(err).
				Str("payment_id", event.PaymentID).
				Msg("Provisioning retry failed")
		}
	})
}

// handlePaymentCompleted logs completed sales for external consumers tailing
// the same subject
func (s *NATSSubscriber) handlePaymentCompleted(msg *nats.Msg) {
	var event struct {
		PaymentID string `json:"payment_id"`
		VoucherID string `json:"voucher_id"`
		ZoneID    string `json:"zone_id"`
	}
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal payment completed event")
		return
	}

	log.Debug().
		Str("payment_id", event.PaymentID).
		Str("voucher_id", event.VoucherID).
		Str("zone_id", event.ZoneID).
		Msg("Payment completed event received")
}
