package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wifibill/hotspot-server/internal/billing"
	"github.com/wifibill/hotspot-server/internal/models"
	"github.com/wifibill/hotspot-server/internal/storage"
)

// ========== Captive portal handlers ==========
//
// These routes are public: the customer is behind the router's walled garden
// and has no account. Responses never include router credentials or any other
// admin-only fields.

// HandlePortalPlans lists purchasable plans in display order
func (s *RESTServer) HandlePortalPlans(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": s.coordinator.Catalog().List(),
	})
}

// HandlePortalConfig returns portal branding for the landing page
func (s *RESTServer) HandlePortalConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetPortalConfig(r.Context())
	if err != nil {
		if err == storage.ErrNotFound {
			// No config saved yet; the portal renders defaults
			s.respondJSON(w, http.StatusOK, &models.PortalConfig{})
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, cfg)
}

// HandlePortalInitiatePayment starts a purchase from the captive portal
func (s *RESTServer) HandlePortalInitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ZoneID      string `json:"zone_id" validate:"required"`
		PlanID      string `json:"plan_id" validate:"required"`
		Provider    string `json:"provider" validate:"required"`
		PhoneNumber string `json:"phone_number"`
		Amount      int64  `json:"amount"`
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

	provider := models.PaymentProvider(strings.ToUpper(req.Provider))
	if provider != models.ProviderCash && req.PhoneNumber == "" {
		s.respondError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	payment, err := s.coordinator.InitiatePayment(r.Context(), billing.InitiateRequest{
		ZoneID:      zoneID,
		PlanID:      req.PlanID,
		Provider:    provider,
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUnknownPlan),
			errors.Is(err, billing.ErrAmountMismatch),
			errors.Is(err, billing.ErrProviderNotConfigured):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, billing.ErrZoneInactive):
			s.respondError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "zone not found")
		default:
			s.respondError(w, http.StatusBadGateway, "payment provider error")
		}
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"payment_id": payment.ID,
		"reference":  payment.Reference,
		"status":     payment.Status,
		"amount":     payment.Amount,
		"currency":   payment.Currency,
	})
}

// HandlePortalPaymentStatus reports a payment's progress to the polling
// portal. A PENDING payment is re-checked against the provider on each poll.
func (s *RESTServer) HandlePortalPaymentStatus(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		s.respondError(w, http.StatusBadRequest, "missing reference")
		return
	}

	payment, err := s.coordinator.CheckPayment(r.Context(), reference)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "payment not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"reference":       payment.Reference,
		"status":          payment.Status,
		"provision_state": payment.ProvisionState,
	}

	// The voucher code is the whole point of the purchase; hand it over as
	// soon as it exists.
	if payment.VoucherID != nil {
		if voucher, err := s.store.GetVoucher(r.Context(), *payment.VoucherID); err == nil {
			resp["voucher"] = map[string]interface{}{
				"code":             voucher.Code,
				"plan_name":        voucher.PlanName,
				"duration_minutes": voucher.DurationMinutes,
				"expires_at":       voucher.ExpiresAt,
			}
		}
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// HandleMTNCallback receives MTN MoMo payment notifications. Callbacks can
// arrive more than once and can race the status poll; confirmation is
// idempotent so every path lands on the same outcome.
func (s *RESTServer) HandleMTNCallback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReferenceID string `json:"referenceId"`
		ExternalID  string `json:"externalId"`
		Status      string `json:"status"`
		Reason      string `json:"reason"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid callback body")
		return
	}

	reference := body.ReferenceID
	if reference == "" {
		reference = r.Header.Get("X-Reference-Id")
	}

	var payment *models.Payment
	var err error
	if reference != "" {
		payment, err = s.store.GetPaymentByReference(r.Context(), reference)
	} else if body.ExternalID != "" {
		id, perr := uuid.Parse(body.ExternalID)
		if perr != nil {
			s.respondError(w, http.StatusBadRequest, "invalid externalId")
			return
		}
		payment, err = s.store.GetPayment(r.Context(), id)
	} else {
		s.respondError(w, http.StatusBadRequest, "missing payment reference")
		return
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Acknowledge unknown references; MTN retries otherwise and the
			// payment will never appear.
			log.Warn().Str("reference", reference).Msg("MTN callback for unknown payment")
			w.WriteHeader(http.StatusOK)
			return
		}
		// Storage trouble is transient; refuse the callback so MTN
		// redelivers it once the database is back.
		log.Error().Err(err).Str("reference", reference).Msg("Failed to look up payment for MTN callback")
		s.respondError(w, http.StatusServiceUnavailable, "temporarily unable to process callback")
		return
	}

	switch strings.ToUpper(body.Status) {
	case "SUCCESSFUL":
		_, err = s.coordinator.ConfirmPayment(r.Context(), payment.ID)
	case "FAILED", "REJECTED", "TIMEOUT":
		reason := body.Reason
		if reason == "" {
			reason = "provider reported " + body.Status
		}
		_, err = s.coordinator.FailPayment(r.Context(), payment.ID, reason)
	default:
		// Not terminal; the portal poll or sweeper resolves it later
	}

	if err != nil {
		log.Error().Err(err).
			Str("payment_id", payment.ID.String()).
			Str("callback_status", body.Status).
			Msg("Failed to process MTN callback")
		s.respondError(w, http.StatusInternalServerError, "callback processing failed")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// HandleValidateVoucher checks a voucher code for the portal login form
func (s *RESTServer) HandleValidateVoucher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code" validate:"required,len=9"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	voucher, err := s.coordinator.ValidateVoucher(r.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "voucher not found")
		case errors.Is(err, billing.ErrVoucherNotRedeemable):
			s.respondError(w, http.StatusGone, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":            true,
		"code":             voucher.Code,
		"plan_name":        voucher.PlanName,
		"duration_minutes": voucher.DurationMinutes,
		"expires_at":       voucher.ExpiresAt,
	})
}

// ========== Portal config admin handlers ==========

// HandleGetPortalConfig gets the portal configuration for editing
func (s *RESTServer) HandleGetPortalConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetPortalConfig(r.Context())
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondJSON(w, http.StatusOK, &models.PortalConfig{})
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, cfg)
}

// HandleSavePortalConfig saves the portal configuration
func (s *RESTServer) HandleSavePortalConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessName        string           `json:"business_name" validate:"required,max=200"`
		LogoURL             string           `json:"logo_url"`
		MerchantCode        string           `json:"merchant_code"`
		PaymentInstructions models.Variables `json:"payment_instructions"`
		Theme               models.Variables `json:"theme"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := &models.PortalConfig{
		BusinessName:        req.BusinessName,
		LogoURL:             req.LogoURL,
		MerchantCode:        req.MerchantCode,
		PaymentInstructions: req.PaymentInstructions,
		Theme:               req.Theme,
	}

	if err := s.store.SavePortalConfig(r.Context(), cfg); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, cfg)
}
