package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/auth"
	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/internal/router"
	"github.com/netbill/netbill-server/internal/storage"
)

// HandleGetSettings returns the router settings without the password
func (s *RESTServer) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetRouterSettings(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, errorStatus(router.KindNotConfigured), router.KindNotConfigured, router.ErrNotConfigured.Error())
		return
	}
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, settings.Redacted())
}

// HandleSaveSettings replaces the router settings. An empty password keeps
// the stored one.
func (s *RESTServer) HandleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Username string `json:"username"`
		Password string `json:"password"`
		SSL      bool   `json:"ssl"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	settings := &models.RouterSettings{
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		SSL:      req.SSL,
	}
	if settings.Port == 0 {
		settings.Port = s.config.Router.DefaultPort
	}
	if err := s.validator.Validate(settings); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	ctx := r.Context()
	if settings.Password == "" {
		existing, err := s.store.GetRouterSettings(ctx)
		switch {
		case err == nil:
			settings.Password = existing.Password
		case !errors.Is(err, storage.ErrNotFound):
			s.respondFailure(w, r, err)
			return
		}
	}

	if err := s.store.SaveRouterSettings(ctx, settings); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	event := log.Info().Str("host", settings.Host).Int("port", settings.Port)
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		event = event.Str("operator", claims.Username)
	}
	event.Msg("Router settings saved")

	s.respondJSON(w, http.StatusOK, settings.Redacted())
}
