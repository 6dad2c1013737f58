package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/internal/reconcile"
	"github.com/netbill/netbill-server/internal/router"
)

// secretRequest is the writable part of a secret
type secretRequest struct {
	Username      string             `json:"username"`
	Password      string             `json:"password"`
	Service       models.ServiceType `json:"service"`
	Profile       string             `json:"profile"`
	LocalAddress  string             `json:"localAddress"`
	RemoteAddress string             `json:"remoteAddress"`
	Comment       string             `json:"comment"`
	Disabled      bool               `json:"disabled"`
	CustomerID    *uuid.UUID         `json:"customerId"`
	PackageID     *uuid.UUID         `json:"packageId"`
}

func (req *secretRequest) apply(secret *models.Secret) {
	secret.Username = req.Username
	if req.Password != "" {
		secret.Password = req.Password
	}
	secret.Service = req.Service
	secret.Profile = req.Profile
	if secret.Profile == "" {
		secret.Profile = "default"
	}
	secret.LocalAddress = req.LocalAddress
	secret.RemoteAddress = req.RemoteAddress
	secret.Comment = req.Comment
	secret.Disabled = req.Disabled
	secret.CustomerID = req.CustomerID
	secret.PackageID = req.PackageID
}

// syncRequested reports whether ?sync=true was given
func syncRequested(r *http.Request) bool {
	sync, _ := strconv.ParseBool(r.URL.Query().Get("sync"))
	return sync
}

// HandleListSecrets lists secrets
func (s *RESTServer) HandleListSecrets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := pagination(r)

	q := r.URL.Query()
	filter := models.SecretFilter{Search: q.Get("search")}
	if v := q.Get("service"); v != "" {
		service := models.ServiceType(v)
		if !service.Valid() {
			s.respondError(w, http.StatusBadRequest, router.KindInvalid, "invalid service")
			return
		}
		filter.Service = &service
	}
	if v := q.Get("disabled"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, router.KindInvalid, "invalid disabled filter")
			return
		}
		filter.Disabled = &disabled
	}

	secrets, total, err := s.store.ListSecrets(ctx, filter, limit, offset)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"secrets": secrets,
		"total":   total,
	})
}

// HandleCreateSecret stores a secret and, with ?sync=true, creates it on
// the router
func (s *RESTServer) HandleCreateSecret(w http.ResponseWriter, r *http.Request) {
	var req secretRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	secret := &models.Secret{}
	req.apply(secret)
	if err := s.validator.Validate(secret); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	ctx := r.Context()
	if err := s.store.CreateSecret(ctx, secret); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	response := map[string]interface{}{"secret": secret}
	if syncRequested(r) {
		result, err := s.reconcile.SyncSecret(ctx, reconcile.SyncRequest{SecretID: &secret.ID, Action: models.SyncCreate})
		if err != nil {
			s.respondFailure(w, r, err)
			return
		}
		response["sync"] = result
	}

	s.respondJSON(w, http.StatusCreated, response)
}

// HandleGetSecret gets a secret
func (s *RESTServer) HandleGetSecret(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	secret, err := s.store.GetSecret(r.Context(), id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, secret)
}

// HandleUpdateSecret updates a secret. An empty password keeps the stored
// one.
func (s *RESTServer) HandleUpdateSecret(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	var req secretRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	secret, err := s.store.GetSecret(ctx, id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	previous, previousService := secret.Username, secret.Service
	req.apply(secret)
	if err := s.validator.Validate(secret); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	sync := syncRequested(r)
	if sync && secret.Service != previousService {
		s.respondError(w, http.StatusBadRequest, router.KindInvalid, "service cannot change while syncing")
		return
	}

	if err := s.store.UpdateSecret(ctx, secret); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	response := map[string]interface{}{"secret": secret}
	if sync {
		result, err := s.reconcile.SyncSecret(ctx, reconcile.SyncRequest{
			SecretID:         &secret.ID,
			Action:           models.SyncUpdate,
			PreviousUsername: previous,
		})
		if err != nil {
			s.respondFailure(w, r, err)
			return
		}
		response["sync"] = result
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleDeleteSecret deletes a secret and, with ?sync=true, removes it
// from the router first
func (s *RESTServer) HandleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	secret, err := s.store.GetSecret(ctx, id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	if syncRequested(r) {
		_, err := s.reconcile.SyncSecret(ctx, reconcile.SyncRequest{
			SecretID: &id,
			Action:   models.SyncDelete,
			Username: secret.Username,
			Service:  secret.Service,
		})
		if err != nil {
			s.respondFailure(w, r, err)
			return
		}
	}

	if err := s.store.DeleteSecret(ctx, id); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSyncSecret pushes a secret to the router
func (s *RESTServer) HandleSyncSecret(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	var req reconcile.SyncRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.SecretID = &id

	result, err := s.reconcile.SyncSecret(r.Context(), req)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// HandleImportSecrets copies router secrets missing locally into the store
func (s *RESTServer) HandleImportSecrets(w http.ResponseWriter, r *http.Request) {
	result, err := s.reconcile.ImportFromRouter(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, importResponse(result))
}

// HandleToggleSecret enables or disables a secret on the router and
// records the state locally
func (s *RESTServer) HandleToggleSecret(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Enable *bool `json:"enable"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Enable == nil {
		s.respondError(w, http.StatusBadRequest, router.KindInvalid, "enable is required")
		return
	}

	ctx := r.Context()
	secret, err := s.store.GetSecret(ctx, id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	if err := s.toggleSecret(ctx, secret, *req.Enable); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, secret)
}

func (s *RESTServer) toggleSecret(ctx context.Context, secret *models.Secret, enable bool) error {
	if err := s.client.ToggleSecret(ctx, secret.Username, secret.Service, enable); err != nil {
		return err
	}

	secret.Disabled = !enable
	if err := s.store.UpdateSecret(ctx, secret); err != nil {
		log.Error().Err(err).Str("username", secret.Username).Msg("Router toggled but local state not saved")
		return err
	}
	return nil
}
