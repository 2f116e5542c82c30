package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wifibill/hotspot-server/internal/config"
	"github.com/wifibill/hotspot-server/internal/models"
	"github.com/wifibill/hotspot-server/internal/payment"
	"github.com/wifibill/hotspot-server/internal/router"
	"github.com/wifibill/hotspot-server/internal/storage"
)

var testPlans = []config.PlanConfig{
	{ID: "1hour", Name: "1 Hour", DurationMinutes: 60, Price: 1000, Currency: "UGX"},
	{ID: "1day", Name: "1 Day", DurationMinutes: 1440, Price: 5000, Currency: "UGX", Popular: true},
}

type testEnv struct {
	coordinator *Coordinator
	store       *memStore
	gateway     *mockGateway
	provisioner *flakyProvisioner
	publisher   *recordingPublisher
	zone        *models.Zone
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	gateway := newMockGateway(models.ProviderMTN)
	provisioner := newFlakyProvisioner()
	publisher := newRecordingPublisher()

	zone := &models.Zone{
		Name:              "Kampala Cafe",
		RouterAddress:     "192.168.88.1",
		RouterPort:        8728,
		APIUser:           "api",
		APIPasswordCipher: []byte("secret"),
		MaxUsers:          10,
		IsActive:          true,
	}
	if err := store.CreateZone(context.Background(), zone); err != nil {
		t.Fatalf("create zone: %v", err)
	}

	coordinator := NewCoordinator(CoordinatorConfig{
		Store:       store,
		Gateways:    []payment.Gateway{gateway, newMockGateway(models.ProviderCash)},
		Provisioner: provisioner,
		Catalog:     NewPlanCatalog(testPlans),
		Publisher:   publisher,
	})

	return &testEnv{
		coordinator: coordinator,
		store:       store,
		gateway:     gateway,
		provisioner: provisioner,
		publisher:   publisher,
		zone:        zone,
	}
}

func (e *testEnv) initiate(t *testing.T) *models.Payment {
	t.Helper()
	p, err := e.coordinator.InitiatePayment(context.Background(), InitiateRequest{
		ZoneID:      e.zone.ID,
		PlanID:      "1day",
		Provider:    models.ProviderMTN,
		PhoneNumber: "+256700000001",
	})
	if err != nil {
		t.Fatalf("initiate payment: %v", err)
	}
	return p
}

func TestCoordinator_InitiatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a valid request When initiated Then payment is pending with plan price", func(t *testing.T) {
		env := newTestEnv(t)

		p := env.initiate(t)

		if p.Status != models.PaymentStatusPending {
			t.Errorf("expected PENDING, got %s", p.Status)
		}
		if p.Amount != 5000 || p.Currency != "UGX" {
			t.Errorf("expected snapshot of plan price, got %d %s", p.Amount, p.Currency)
		}
		if p.ProvisionState != models.ProvisionStateNone {
			t.Errorf("expected provision state NONE, got %s", p.ProvisionState)
		}
		if env.gateway.RequestCalls != 1 {
			t.Errorf("expected 1 gateway call, got %d", env.gateway.RequestCalls)
		}
		if env.gateway.LastRequest.Reference != p.Reference {
			t.Errorf("gateway reference mismatch")
		}
	})

	t.Run("Given an unknown plan When initiated Then no provider call is made", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.coordinator.InitiatePayment(ctx, InitiateRequest{
			ZoneID:   env.zone.ID,
			PlanID:   "lifetime",
			Provider: models.ProviderMTN,
		})

		if !errors.Is(err, ErrUnknownPlan) {
			t.Fatalf("expected ErrUnknownPlan, got %v", err)
		}
		if env.gateway.RequestCalls != 0 {
			t.Errorf("gateway must not be called for invalid requests")
		}
	})

	t.Run("Given a mismatched amount When initiated Then request is rejected", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.coordinator.InitiatePayment(ctx, InitiateRequest{
			ZoneID:   env.zone.ID,
			PlanID:   "1day",
			Provider: models.ProviderMTN,
			Amount:   100,
		})

		if !errors.Is(err, ErrAmountMismatch) {
			t.Fatalf("expected ErrAmountMismatch, got %v", err)
		}
		if env.gateway.RequestCalls != 0 {
			t.Errorf("gateway must not be called on amount mismatch")
		}
	})

	t.Run("Given an inactive zone When initiated Then request is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.zone.IsActive = false

		_, err := env.coordinator.InitiatePayment(ctx, InitiateRequest{
			ZoneID:   env.zone.ID,
			PlanID:   "1day",
			Provider: models.ProviderMTN,
		})

		if !errors.Is(err, ErrZoneInactive) {
			t.Fatalf("expected ErrZoneInactive, got %v", err)
		}
	})

	t.Run("Given a provider error When initiated Then payment is failed", func(t *testing.T) {
		env := newTestEnv(t)
		env.gateway.RequestErr = ErrMockGateway

		p, err := env.coordinator.InitiatePayment(ctx, InitiateRequest{
			ZoneID:      env.zone.ID,
			PlanID:      "1hour",
			Provider:    models.ProviderMTN,
			PhoneNumber: "+256700000001",
		})
		if err == nil {
			t.Fatal("expected error")
		}

		stored, err := env.store.GetPayment(ctx, p.ID)
		if err != nil {
			t.Fatalf("get payment: %v", err)
		}
		if stored.Status != models.PaymentStatusFailed {
			t.Errorf("expected FAILED, got %s", stored.Status)
		}
	})
}

func TestCoordinator_ConfirmPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a pending payment When confirmed Then voucher is issued and router provisioned", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.initiate(t)

		confirmed, err := env.coordinator.ConfirmPayment(ctx, p.ID)
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}

		if confirmed.Status != models.PaymentStatusSucceeded {
			t.Errorf("expected SUCCEEDED, got %s", confirmed.Status)
		}
		if confirmed.ProvisionState != models.ProvisionStateProvisioned {
			t.Errorf("expected PROVISIONED, got %s", confirmed.ProvisionState)
		}
		if confirmed.VoucherID == nil {
			t.Fatal("expected voucher to be linked")
		}

		v, err := env.store.GetVoucher(ctx, *confirmed.VoucherID)
		if err != nil {
			t.Fatalf("get voucher: %v", err)
		}
		if len(v.Code) != CodeLength {
			t.Errorf("expected %d-char code, got %q", CodeLength, v.Code)
		}
		if v.PlanName != "1 Day" || v.DurationMinutes != 1440 || v.Price != 5000 {
			t.Errorf("voucher did not snapshot plan terms: %+v", v)
		}
		if v.Status != models.VoucherStatusUnused {
			t.Errorf("expected UNUSED, got %s", v.Status)
		}

		if env.publisher.count(SubjectPaymentCompleted) != 1 {
			t.Errorf("expected one payment completed event")
		}
	})

	t.Run("Given concurrent confirmations When both arrive Then only one voucher is issued", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.initiate(t)

		first, err := env.coordinator.ConfirmPayment(ctx, p.ID)
		if err != nil {
			t.Fatalf("first confirm: %v", err)
		}
		second, err := env.coordinator.ConfirmPayment(ctx, p.ID)
		if err != nil {
			t.Fatalf("second confirm: %v", err)
		}

		if *first.VoucherID != *second.VoucherID {
			t.Errorf("confirmations disagree on voucher")
		}
		vouchers, total, _ := env.store.ListVouchers(ctx, 100, 0)
		if total != 1 {
			t.Errorf("expected exactly 1 voucher, got %d: %+v", total, vouchers)
		}
		if env.publisher.count(SubjectPaymentCompleted) != 1 {
			t.Errorf("duplicate confirmation must not republish")
		}
	})

	t.Run("Given a failed payment When confirmed late Then it stays failed", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.initiate(t)

		if _, err := env.coordinator.FailPayment(ctx, p.ID, "customer cancelled"); err != nil {
			t.Fatalf("fail: %v", err)
		}
		confirmed, err := env.coordinator.ConfirmPayment(ctx, p.ID)
		if err != nil {
			t.Fatalf("late confirm: %v", err)
		}

		if confirmed.Status != models.PaymentStatusFailed {
			t.Errorf("terminal status must not change, got %s", confirmed.Status)
		}
		if confirmed.VoucherID != nil {
			t.Errorf("failed payment must not get a voucher")
		}
	})

	t.Run("Given code collisions When issuing Then the code is regenerated", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.initiate(t)
		env.store.FailVoucherCreates = 2

		confirmed, err := env.coordinator.ConfirmPayment(ctx, p.ID)
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if confirmed.VoucherID == nil {
			t.Fatal("expected voucher despite collisions")
		}
	})
}

func TestCoordinator_ProvisionFailureAndRetry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.initiate(t)

	env.provisioner.setBroken(true)

	confirmed, err := env.coordinator.ConfirmPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// The sale stands even though the router was unreachable
	if confirmed.Status != models.PaymentStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", confirmed.Status)
	}
	if confirmed.ProvisionState != models.ProvisionStateFailed {
		t.Errorf("expected provision FAILED, got %s", confirmed.ProvisionState)
	}
	if confirmed.VoucherID == nil {
		t.Fatal("voucher must be issued before provisioning")
	}
	if env.publisher.count(SubjectProvisionRetry) != 1 {
		t.Errorf("expected a retry event")
	}

	// Router comes back; retry succeeds
	env.provisioner.setBroken(false)

	retried, err := env.coordinator.RetryProvisioning(ctx, p.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.ProvisionState != models.ProvisionStateProvisioned {
		t.Errorf("expected PROVISIONED after retry, got %s", retried.ProvisionState)
	}

	// A second retry is a no-op
	again, err := env.coordinator.RetryProvisioning(ctx, p.ID)
	if err != nil {
		t.Fatalf("idempotent retry: %v", err)
	}
	if again.ProvisionState != models.ProvisionStateProvisioned {
		t.Errorf("expected PROVISIONED, got %s", again.ProvisionState)
	}
}

func TestCoordinator_RetryProvisioning_NotRetryable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.initiate(t)

	_, err := env.coordinator.RetryProvisioning(ctx, p.ID)
	if !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable for pending payment, got %v", err)
	}
}

func TestCoordinator_CheckPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Given provider reports success When polled Then payment is confirmed", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.initiate(t)
		env.gateway.PollStatus = payment.StatusSuccessful

		checked, err := env.coordinator.CheckPayment(ctx, p.Reference)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if checked.Status != models.PaymentStatusSucceeded {
			t.Errorf("expected SUCCEEDED, got %s", checked.Status)
		}
		if checked.VoucherID == nil {
			t.Errorf("expected voucher from poll path")
		}
	})

	t.Run("Given provider reports failure When polled Then payment fails", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.initiate(t)
		env.gateway.PollStatus = payment.StatusFailed

		checked, err := env.coordinator.CheckPayment(ctx, p.Reference)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if checked.Status != models.PaymentStatusFailed {
			t.Errorf("expected FAILED, got %s", checked.Status)
		}
	})

	t.Run("Given a poll error When polled Then payment stays pending", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.initiate(t)
		env.gateway.PollErr = payment.ErrTransient

		checked, err := env.coordinator.CheckPayment(ctx, p.Reference)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if checked.Status != models.PaymentStatusPending {
			t.Errorf("expected PENDING, got %s", checked.Status)
		}
	})

	t.Run("Given a terminal payment When polled Then provider is not asked", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.initiate(t)
		if _, err := env.coordinator.ConfirmPayment(ctx, p.ID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		env.gateway.PollErr = ErrMockGateway

		checked, err := env.coordinator.CheckPayment(ctx, p.Reference)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if checked.Status != models.PaymentStatusSucceeded {
			t.Errorf("expected SUCCEEDED, got %s", checked.Status)
		}
	})
}

func TestCoordinator_ConfirmCash(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a cash payment When confirmed Then voucher is issued", func(t *testing.T) {
		env := newTestEnv(t)
		p, err := env.coordinator.InitiatePayment(ctx, InitiateRequest{
			ZoneID:   env.zone.ID,
			PlanID:   "1hour",
			Provider: models.ProviderCash,
		})
		if err != nil {
			t.Fatalf("initiate cash: %v", err)
		}

		confirmed, err := env.coordinator.ConfirmCash(ctx, p.ID)
		if err != nil {
			t.Fatalf("confirm cash: %v", err)
		}
		if confirmed.Status != models.PaymentStatusSucceeded || confirmed.VoucherID == nil {
			t.Errorf("cash confirmation must issue a voucher")
		}
	})

	t.Run("Given a mobile money payment When cash-confirmed Then it is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.initiate(t)

		_, err := env.coordinator.ConfirmCash(ctx, p.ID)
		if !errors.Is(err, ErrNotCash) {
			t.Fatalf("expected ErrNotCash, got %v", err)
		}
	})
}

func TestCoordinator_ValidateVoucher(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an unused voucher When validated Then it becomes active", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.initiate(t)
		confirmed, _ := env.coordinator.ConfirmPayment(ctx, p.ID)
		v, _ := env.store.GetVoucher(ctx, *confirmed.VoucherID)

		validated, err := env.coordinator.ValidateVoucher(ctx, v.Code)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if validated.Status != models.VoucherStatusActive {
			t.Errorf("expected ACTIVE, got %s", validated.Status)
		}

		// Validating again is fine while the window is open
		if _, err := env.coordinator.ValidateVoucher(ctx, v.Code); err != nil {
			t.Errorf("second validation: %v", err)
		}
	})

	t.Run("Given an expired voucher When validated Then it is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		v := &models.Voucher{
			Code:      "EXPIRED23",
			PlanID:    "1hour",
			Status:    models.VoucherStatusUnused,
			ExpiresAt: time.Now().Add(-time.Hour),
			ZoneID:    env.zone.ID,
		}
		if err := env.store.CreateVoucher(ctx, v); err != nil {
			t.Fatalf("create voucher: %v", err)
		}

		_, err := env.coordinator.ValidateVoucher(ctx, "EXPIRED23")
		if !errors.Is(err, ErrVoucherNotRedeemable) {
			t.Fatalf("expected ErrVoucherNotRedeemable, got %v", err)
		}
	})

	t.Run("Given an unknown code When validated Then not found", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.coordinator.ValidateVoucher(ctx, "NOSUCHCDE")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestCoordinator_ZoneSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.initiate(t)

	confirmed, err := env.coordinator.ConfirmPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	v, _ := env.store.GetVoucher(ctx, *confirmed.VoucherID)

	// The simulator starts a session for each provisioned login
	sessions, err := env.coordinator.ZoneActiveUsers(ctx, env.zone.ID)
	if err != nil {
		t.Fatalf("zone active users: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Username != v.Code {
		t.Fatalf("expected one session for %s, got %+v", v.Code, sessions)
	}

	if err := env.coordinator.DisconnectUser(ctx, env.zone.ID, v.Code); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	// The disconnect consumes the voucher; the code cannot be replayed
	v, _ = env.store.GetVoucher(ctx, *confirmed.VoucherID)
	if v.Status != models.VoucherStatusUsed {
		t.Errorf("expected USED after disconnect, got %s", v.Status)
	}
	if _, err := env.coordinator.ValidateVoucher(ctx, v.Code); !errors.Is(err, ErrVoucherNotRedeemable) {
		t.Errorf("expected ErrVoucherNotRedeemable for used voucher, got %v", err)
	}

	err = env.coordinator.DisconnectUser(ctx, env.zone.ID, v.Code)
	if !errors.Is(err, router.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second disconnect, got %v", err)
	}
}

func TestCoordinator_CapacityEnforcement(t *testing.T) {
	ctx := context.Background()

	store := newMemStore()
	gateway := newMockGateway(models.ProviderMTN)
	zone := &models.Zone{
		Name:          "Tiny Cafe",
		RouterAddress: "192.168.88.1",
		APIUser:       "api",
		MaxUsers:      1,
		IsActive:      true,
	}
	if err := store.CreateZone(ctx, zone); err != nil {
		t.Fatalf("create zone: %v", err)
	}

	coordinator := NewCoordinator(CoordinatorConfig{
		Store:           store,
		Gateways:        []payment.Gateway{gateway},
		Provisioner:     newFlakyProvisioner(),
		Catalog:         NewPlanCatalog(testPlans),
		EnforceCapacity: true,
	})

	// Zone already at its limit
	if err := store.CreateSession(ctx, &models.RouterSession{
		ZoneID:   zone.ID,
		Username: "OCCUPIED",
		Status:   models.SessionStatusActive,
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	p, err := coordinator.InitiatePayment(ctx, InitiateRequest{
		ZoneID:      zone.ID,
		PlanID:      "1hour",
		Provider:    models.ProviderMTN,
		PhoneNumber: "+256700000002",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	confirmed, err := coordinator.ConfirmPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Payment stands, provisioning is deferred until capacity frees up
	if confirmed.Status != models.PaymentStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", confirmed.Status)
	}
	if confirmed.ProvisionState != models.ProvisionStateFailed {
		t.Errorf("expected provision FAILED at capacity, got %s", confirmed.ProvisionState)
	}
}

func TestCoordinator_GenerateVouchers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	validUntil := time.Now().Add(30 * 24 * time.Hour)
	vouchers, err := env.coordinator.GenerateVouchers(ctx, env.zone.ID, "1hour", 5, validUntil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(vouchers) != 5 {
		t.Fatalf("expected 5 vouchers, got %d", len(vouchers))
	}

	seen := make(map[string]bool)
	for _, v := range vouchers {
		if seen[v.Code] {
			t.Errorf("duplicate code %s", v.Code)
		}
		seen[v.Code] = true
		if v.PaymentID != nil {
			t.Errorf("bulk vouchers must not reference a payment")
		}
		if !v.ExpiresAt.Equal(validUntil) {
			t.Errorf("expected validity bound %v, got %v", validUntil, v.ExpiresAt)
		}
	}

	_, err = env.coordinator.GenerateVouchers(ctx, env.zone.ID, "lifetime", 1, validUntil)
	if !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestCoordinator_EventTrail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.initiate(t)

	if _, err := env.coordinator.ConfirmPayment(ctx, p.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	got := env.store.eventTypes()
	want := []models.EventType{
		models.EventTypePaymentInitiated,
		models.EventTypePaymentCompleted,
		models.EventTypeVoucherIssued,
		models.EventTypeProvisioned,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
