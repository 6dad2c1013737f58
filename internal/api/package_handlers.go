package api

import (
	"net/http"

	"github.com/netbill/netbill-server/internal/models"
)

// packageRequest is the writable part of a package
type packageRequest struct {
	Name      string             `json:"name"`
	Type      models.ServiceType `json:"type"`
	Bandwidth string             `json:"bandwidth"`
	Burst     string             `json:"burst"`
	Priority  *int               `json:"priority"`
	Price     float64            `json:"price"`
}

func (req *packageRequest) apply(pkg *models.Package) {
	pkg.Name = req.Name
	pkg.Type = req.Type
	pkg.Bandwidth = req.Bandwidth
	pkg.Burst = req.Burst
	pkg.Priority = req.Priority
	pkg.Price = req.Price
}

// HandleListPackages lists packages
func (s *RESTServer) HandleListPackages(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	packages, total, err := s.store.ListPackages(r.Context(), limit, offset)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"packages": packages,
		"total":    total,
	})
}

// HandleCreatePackage creates a package
func (s *RESTServer) HandleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	pkg := &models.Package{}
	req.apply(pkg)
	if err := s.validator.Validate(pkg); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	if err := s.store.CreatePackage(r.Context(), pkg); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, pkg)
}

// HandleGetPackage gets a package
func (s *RESTServer) HandleGetPackage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	pkg, err := s.store.GetPackage(r.Context(), id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, pkg)
}

// HandleUpdatePackage updates a package
func (s *RESTServer) HandleUpdatePackage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	var req packageRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	pkg, err := s.store.GetPackage(ctx, id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	req.apply(pkg)
	if err := s.validator.Validate(pkg); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	if err := s.store.UpdatePackage(ctx, pkg); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, pkg)
}

// HandleDeletePackage deletes a package
func (s *RESTServer) HandleDeletePackage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	if err := s.store.DeletePackage(r.Context(), id); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSyncPackage writes the package rate limit to its router profile
func (s *RESTServer) HandleSyncPackage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	pkg, err := s.store.GetPackage(ctx, id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	result, err := s.client.SyncPackage(ctx, pkg)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}
