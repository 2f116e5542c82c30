package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/config"
	"github.com/wifibill/hotspot-server/internal/models"
	"github.com/wifibill/hotspot-server/internal/storage"
)

// callbackStore stubs just the payment lookups the MTN callback touches.
// The embedded interface panics on anything else, which is the point: the
// callback must not reach further into storage on its error paths.
type callbackStore struct {
	storage.Store

	payment   *models.Payment
	lookupErr error
}

func (s *callbackStore) GetPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if s.payment == nil || s.payment.Reference != reference {
		return nil, storage.ErrNotFound
	}
	return s.payment, nil
}

func (s *callbackStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if s.payment == nil || s.payment.ID != id {
		return nil, storage.ErrNotFound
	}
	return s.payment, nil
}

func postMTNCallback(t *testing.T, store storage.Store, body string) *httptest.ResponseRecorder {
	t.Helper()

	s := NewRESTServer(&config.Config{}, store, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/portal/payments/mtn/callback", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	s.HandleMTNCallback(w, req)
	return w
}

func TestHandleMTNCallback_Lookup(t *testing.T) {
	t.Run("Given an unknown reference When the callback arrives Then it is acknowledged", func(t *testing.T) {
		w := postMTNCallback(t, &callbackStore{lookupErr: storage.ErrNotFound},
			`{"referenceId":"no-such-ref","status":"SUCCESSFUL"}`)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200 for unknown reference, got %d", w.Code)
		}
	})

	t.Run("Given a storage outage When the callback arrives Then it is refused for redelivery", func(t *testing.T) {
		w := postMTNCallback(t, &callbackStore{lookupErr: errors.New("connection refused")},
			`{"referenceId":"mtn-ref-1","status":"SUCCESSFUL"}`)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503 on storage error, got %d", w.Code)
		}
	})

	t.Run("Given a malformed externalId When no reference is present Then the callback is rejected", func(t *testing.T) {
		w := postMTNCallback(t, &callbackStore{},
			`{"externalId":"not-a-uuid","status":"SUCCESSFUL"}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for malformed externalId, got %d", w.Code)
		}
	})

	t.Run("Given a non-terminal status When the payment exists Then nothing is confirmed", func(t *testing.T) {
		payment := &models.Payment{
			BaseModel: models.BaseModel{ID: uuid.New()},
			Reference: "mtn-ref-2",
			Status:    models.PaymentStatusPending,
		}
		w := postMTNCallback(t, &callbackStore{payment: payment},
			`{"referenceId":"mtn-ref-2","status":"PENDING"}`)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200 for non-terminal status, got %d", w.Code)
		}
	})
}
