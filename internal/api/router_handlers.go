package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/internal/reconcile"
	"github.com/netbill/netbill-server/internal/router"
)

// actionRequest carries the parameters of every router action
type actionRequest struct {
	Action     string             `json:"action"`
	Username   string             `json:"username"`
	Password   string             `json:"password"`
	Type       models.ServiceType `json:"type"`
	Service    models.ServiceType `json:"service"`
	Profile    string             `json:"profile"`
	Comment    string             `json:"comment"`
	Enable     *bool              `json:"enable"`
	Toggle     string             `json:"toggle"`
	SecretID   *uuid.UUID         `json:"secretId"`
	SyncAction models.SyncAction  `json:"syncAction"`
	PackageID  *uuid.UUID         `json:"packageId"`
}

// service returns the requested service, accepting either key
func (a *actionRequest) service() models.ServiceType {
	switch {
	case a.Type != "":
		return a.Type
	case a.Service != "":
		return a.Service
	default:
		return models.ServicePPPoE
	}
}

// explicitService returns the requested service without a default, so a
// sync falls back to the stored secret
func (a *actionRequest) explicitService() models.ServiceType {
	if a.Type != "" {
		return a.Type
	}
	return a.Service
}

// enable resolves {"enable": bool} or {"toggle": "enable"|"disable"}
func (a *actionRequest) enable() (bool, error) {
	if a.Enable != nil {
		return *a.Enable, nil
	}
	switch a.Toggle {
	case "enable":
		return true, nil
	case "disable":
		return false, nil
	default:
		return false, fmt.Errorf("%w: enable or toggle is required", router.ErrInvalid)
	}
}

type actionFunc func(s *RESTServer, ctx context.Context, req *actionRequest) (interface{}, error)

var actions = map[string]actionFunc{
	"test-connection":  (*RESTServer).actionTestConnection,
	"get-system":       (*RESTServer).actionGetSystem,
	"get-traffic":      (*RESTServer).actionGetTraffic,
	"get-interfaces":   (*RESTServer).actionGetInterfaces,
	"get-online-users": (*RESTServer).actionGetOnlineUsers,
	"get-user-detail":  (*RESTServer).actionGetUserDetail,
	"toggle-user":      (*RESTServer).actionToggleUser,
	"disconnect-user":  (*RESTServer).actionDisconnectUser,
	"create-user":      (*RESTServer).actionCreateUser,
	"delete-user":      (*RESTServer).actionDeleteUser,
	"sync-secret":      (*RESTServer).actionSyncSecret,
	"import-secrets":   (*RESTServer).actionImportSecrets,
}

// HandleRouterAction dispatches {"action": ...} requests
func (s *RESTServer) HandleRouterAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	fn, ok := actions[req.Action]
	if !ok {
		s.respondError(w, http.StatusBadRequest, router.KindInvalid, fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	log.Debug().Str("action", req.Action).Msg("Router action")

	result, err := fn(s, r.Context(), &req)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

type actionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *RESTServer) actionTestConnection(ctx context.Context, _ *actionRequest) (interface{}, error) {
	report, err := s.client.TestConnection(ctx)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *RESTServer) actionGetSystem(ctx context.Context, _ *actionRequest) (interface{}, error) {
	return s.client.GetSystemResource(ctx)
}

func (s *RESTServer) actionGetTraffic(ctx context.Context, _ *actionRequest) (interface{}, error) {
	return s.traffic.Poll(ctx)
}

func (s *RESTServer) actionGetInterfaces(ctx context.Context, _ *actionRequest) (interface{}, error) {
	return s.client.GetInterfaces(ctx)
}

func (s *RESTServer) actionGetOnlineUsers(ctx context.Context, _ *actionRequest) (interface{}, error) {
	return s.client.ListActiveSessions(ctx)
}

func (s *RESTServer) actionGetUserDetail(ctx context.Context, req *actionRequest) (interface{}, error) {
	return s.client.GetUserDetail(ctx, req.Username, req.service())
}

func (s *RESTServer) actionToggleUser(ctx context.Context, req *actionRequest) (interface{}, error) {
	enable, err := req.enable()
	if err != nil {
		return nil, err
	}
	if err := s.client.ToggleSecret(ctx, req.Username, req.service(), enable); err != nil {
		return nil, err
	}
	verb := "disabled"
	if enable {
		verb = "enabled"
	}
	return actionResult{Success: true, Message: "User " + verb + " successfully"}, nil
}

func (s *RESTServer) actionDisconnectUser(ctx context.Context, req *actionRequest) (interface{}, error) {
	if err := s.client.DisconnectActiveSession(ctx, req.Username, req.service()); err != nil {
		return nil, err
	}
	return actionResult{Success: true, Message: "User disconnected"}, nil
}

func (s *RESTServer) actionCreateUser(ctx context.Context, req *actionRequest) (interface{}, error) {
	var pkg *models.Package
	if req.PackageID != nil {
		p, err := s.store.GetPackage(ctx, *req.PackageID)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", req.PackageID, err)
		}
		pkg = p
	}

	spec := router.SecretSpec{
		Username: req.Username,
		Password: req.Password,
		Service:  req.service(),
		Profile:  req.Profile,
		Comment:  req.Comment,
	}
	return s.client.CreateSecret(ctx, spec, pkg)
}

func (s *RESTServer) actionDeleteUser(ctx context.Context, req *actionRequest) (interface{}, error) {
	if err := s.client.DeleteSecret(ctx, req.Username, req.service()); err != nil {
		return nil, err
	}
	return actionResult{Success: true, Message: "User deleted"}, nil
}

func (s *RESTServer) actionSyncSecret(ctx context.Context, req *actionRequest) (interface{}, error) {
	return s.reconcile.SyncSecret(ctx, reconcile.SyncRequest{
		SecretID: req.SecretID,
		Action:   req.SyncAction,
		Username: req.Username,
		Service:  req.explicitService(),
	})
}

func (s *RESTServer) actionImportSecrets(ctx context.Context, _ *actionRequest) (interface{}, error) {
	result, err := s.reconcile.ImportFromRouter(ctx)
	if err != nil {
		return nil, err
	}
	return importResponse(result), nil
}

func importResponse(result *reconcile.ImportResult) interface{} {
	return struct {
		Success bool `json:"success"`
		*reconcile.ImportResult
		Message string `json:"message"`
	}{true, result, result.Message()}
}

// HandleGetSystem returns the router system resource
func (s *RESTServer) HandleGetSystem(w http.ResponseWriter, r *http.Request) {
	resource, err := s.client.GetSystemResource(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resource)
}

// HandleGetInterfaces lists router interfaces
func (s *RESTServer) HandleGetInterfaces(w http.ResponseWriter, r *http.Request) {
	ifaces, err := s.client.GetInterfaces(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"interfaces": ifaces,
		"wan":        s.client.SelectWAN(ifaces),
	})
}

// HandleGetSessions lists online PPP and Hotspot users
func (s *RESTServer) HandleGetSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.client.ListActiveSessions(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// HandleGetTraffic polls the uplink. The previous reading is the baseline
// for the rate, so the first call reports zero. ?cached=true returns the
// last reading without touching the router.
func (s *RESTServer) HandleGetTraffic(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("cached") == "true" {
		if reading := s.traffic.Last(); reading != nil {
			s.respondJSON(w, http.StatusOK, reading)
			return
		}
	}

	reading, err := s.traffic.Poll(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, reading)
}

// HandleTestConnection checks that the router answers
func (s *RESTServer) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	report, err := s.client.TestConnection(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}
