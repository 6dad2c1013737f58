package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/router"
	"github.com/netbill/netbill-server/internal/validation"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// HandleHealth health check
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
	})
}

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, kind, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
		"kind":  kind,
	})
}

// errorStatus maps an error kind to its HTTP status
func errorStatus(kind string) int {
	switch kind {
	case router.KindNotConfigured:
		return http.StatusServiceUnavailable
	case router.KindConnection, router.KindProtocol:
		return http.StatusBadGateway
	case router.KindNotFound:
		return http.StatusNotFound
	case router.KindInvalid:
		return http.StatusBadRequest
	case router.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondFailure classifies err and responds with its kind
func (s *RESTServer) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		s.respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  err.Error(),
			"kind":   router.KindInvalid,
			"fields": fieldErrs,
		})
		return
	}

	kind := router.Kind(err)
	status := errorStatus(kind)

	event := log.Warn()
	if status >= http.StatusInternalServerError && kind != router.KindNotConfigured {
		event = log.Error()
	}
	event.Err(err).
		Str("kind", kind).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Request failed")

	message := err.Error()
	var fallback *router.FallbackError
	if errors.As(err, &fallback) {
		message = fallback.Detail()
	}
	if kind == router.KindInternal {
		message = "internal error"
	}

	s.respondError(w, status, kind, message)
}

// decodeJSON decodes the request body into v
func (s *RESTServer) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, router.KindInvalid, "invalid request body")
		return false
	}
	return true
}

// idParam parses the {id} URL parameter
func (s *RESTServer) idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, router.KindInvalid, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads limit and offset query parameters
func pagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
