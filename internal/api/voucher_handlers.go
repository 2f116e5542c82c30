package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/storage"
)

// ========== Voucher handlers ==========

// HandleListVouchers lists vouchers
func (s *RESTServer) HandleListVouchers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	vouchers, total, err := s.store.ListVouchers(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"vouchers": vouchers,
		"total":    total,
	})
}

// HandleGenerateVouchers creates a batch of unsold vouchers for printing
func (s *RESTServer) HandleGenerateVouchers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ZoneID     string `json:"zone_id" validate:"required"`
		PlanID     string `json:"plan_id" validate:"required"`
		Count      int    `json:"count" validate:"required,min=1,max=500"`
		ValidUntil string `json:"valid_until" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	zoneID, err := uuid.Parse(req.ZoneID)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone_id")
		return
	}

	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid valid_until, expected RFC3339")
		return
	}
	if validUntil.Before(time.Now()) {
		s.respondError(w, http.StatusBadRequest, "valid_until is in the past")
		return
	}

	vouchers, err := s.coordinator.GenerateVouchers(r.Context(), zoneID, req.PlanID, req.Count, validUntil)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "zone not found")
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"vouchers": vouchers,
		"total":    len(vouchers),
	})
}

// HandleGetVoucher gets a voucher
func (s *RESTServer) HandleGetVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid voucher id")
		return
	}

	voucher, err := s.store.GetVoucher(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "voucher not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, voucher)
}

// HandleDeleteVoucher deletes a voucher
func (s *RESTServer) HandleDeleteVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid voucher id")
		return
	}

	if err := s.store.DeleteVoucher(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "voucher not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
