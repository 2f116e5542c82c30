package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/models"
	"github.com/wifibill/hotspot-server/internal/router"
	"github.com/wifibill/hotspot-server/internal/storage"
)

// ========== Zone handlers ==========

// HandleListZones lists zones
func (s *RESTServer) HandleListZones(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	zones, total, err := s.store.ListZones(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"zones": zones,
		"total": total,
	})
}

// HandleCreateZone creates a zone
func (s *RESTServer) HandleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name" validate:"required,min=3,max=100"`
		Location      string `json:"location"`
		RouterAddress string `json:"router_address" validate:"required"`
		RouterPort    int    `json:"router_port"`
		APIUser       string `json:"api_user" validate:"required"`
		APIPassword   string `json:"api_password" validate:"required"`
		MaxUsers      int    `json:"max_users" validate:"min=0"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cipher, err := s.coordinator.EncryptRouterPassword(req.APIPassword)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to encrypt router password")
		return
	}

	zone := &models.Zone{
		Name:              req.Name,
		Location:          req.Location,
		RouterAddress:     req.RouterAddress,
		RouterPort:        req.RouterPort,
		APIUser:           req.APIUser,
		APIPasswordCipher: cipher,
		MaxUsers:          req.MaxUsers,
		IsActive:          true,
	}

	if err := s.store.CreateZone(r.Context(), zone); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "zone already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, zone)
}

// HandleGetZone gets a zone
func (s *RESTServer) HandleGetZone(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone id")
		return
	}

	zone, err := s.store.GetZone(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "zone not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, zone)
}

// HandleUpdateZone updates a zone. An empty api_password keeps the stored one.
func (s *RESTServer) HandleUpdateZone(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone id")
		return
	}

	var req struct {
		Name          string `json:"name" validate:"required,min=3,max=100"`
		Location      string `json:"location"`
		RouterAddress string `json:"router_address" validate:"required"`
		RouterPort    int    `json:"router_port"`
		APIUser       string `json:"api_user" validate:"required"`
		APIPassword   string `json:"api_password"`
		MaxUsers      int    `json:"max_users" validate:"min=0"`
		IsActive      bool   `json:"is_active"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	zone, err := s.store.GetZone(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "zone not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	zone.Name = req.Name
	zone.Location = req.Location
	zone.RouterAddress = req.RouterAddress
	zone.RouterPort = req.RouterPort
	zone.APIUser = req.APIUser
	zone.MaxUsers = req.MaxUsers
	zone.IsActive = req.IsActive

	if req.APIPassword != "" {
		cipher, err := s.coordinator.EncryptRouterPassword(req.APIPassword)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to encrypt router password")
			return
		}
		zone.APIPasswordCipher = cipher
	}

	if err := s.store.UpdateZone(r.Context(), zone); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, zone)
}

// HandleDeleteZone deletes a zone
func (s *RESTServer) HandleDeleteZone(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone id")
		return
	}

	if err := s.store.DeleteZone(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "zone not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleTestZone runs a connectivity test against the zone's router
func (s *RESTServer) HandleTestZone(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone id")
		return
	}

	health, err := s.coordinator.TestZone(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "zone not found")
			return
		}
		// Unreachable routers still produce a diagnostic payload
		if health != nil {
			s.respondJSON(w, http.StatusOK, health)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, health)
}

// HandleZoneActiveUsers returns the zone's live hotspot sessions
func (s *RESTServer) HandleZoneActiveUsers(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone id")
		return
	}

	sessions, err := s.coordinator.ZoneActiveUsers(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "zone not found")
			return
		}
		if errors.Is(err, router.ErrConnection) {
			s.respondError(w, http.StatusBadGateway, "router unreachable")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// HandleZoneDisconnect forcibly disconnects a user from the zone's router
func (s *RESTServer) HandleZoneDisconnect(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid zone id")
		return
	}

	var req struct {
		Username string `json:"username" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.coordinator.DisconnectUser(r.Context(), id, req.Username); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "zone not found")
		case errors.Is(err, router.ErrSessionNotFound):
			s.respondError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, router.ErrConnection):
			s.respondError(w, http.StatusBadGateway, "router unreachable")
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "disconnected",
	})
}
