package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/billing"
	"github.com/wifibill/hotspot-server/internal/storage"
)

// ========== Payment handlers ==========

// HandleListPayments lists payments
func (s *RESTServer) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	payments, total, err := s.store.ListPayments(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"total":    total,
	})
}

// HandleGetPayment gets a payment
func (s *RESTServer) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	payment, err := s.store.GetPayment(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "payment not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, payment)
}

// HandleRetryProvision re-runs router provisioning for a paid payment whose
// login was never created
func (s *RESTServer) HandleRetryProvision(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	payment, err := s.coordinator.RetryProvisioning(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "payment not found")
		case errors.Is(err, billing.ErrNotRetryable):
			s.respondError(w, http.StatusConflict, err.Error())
		default:
			s.respondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, payment)
}

// HandleConfirmCash records an administrator's confirmation of a cash sale
func (s *RESTServer) HandleConfirmCash(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	payment, err := s.coordinator.ConfirmCash(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "payment not found")
		case errors.Is(err, billing.ErrNotCash):
			s.respondError(w, http.StatusConflict, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, payment)
}
