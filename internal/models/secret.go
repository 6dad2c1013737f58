package models

import (
	"github.com/google/uuid"
)

// Secret is a locally stored access credential mirrored on the router as a
// PPP secret or a Hotspot user. (Username, Service) is unique.
type Secret struct {
	BaseModel

	Username      string      `json:"username" db:"username" validate:"required,max=64"`
	Password      string      `json:"password,omitempty" db:"password" validate:"max=128"`
	Service       ServiceType `json:"service" db:"service" validate:"required,oneof=pppoe hotspot"`
	Profile       string      `json:"profile" db:"profile" validate:"max=64"`
	LocalAddress  string      `json:"localAddress,omitempty" db:"local_address" validate:"omitempty,ip"`
	RemoteAddress string      `json:"remoteAddress,omitempty" db:"remote_address" validate:"omitempty,ip"`
	Comment       string      `json:"comment,omitempty" db:"comment"`
	Disabled      bool        `json:"disabled" db:"disabled"`

	CustomerID *uuid.UUID `json:"customerId,omitempty" db:"customer_id"`
	PackageID  *uuid.UUID `json:"packageId,omitempty" db:"package_id"`
}

// ProfileOrDefault returns the router profile, falling back to "default"
func (s *Secret) ProfileOrDefault() string {
	if s.Profile == "" {
		return "default"
	}
	return s.Profile
}

// SecretFilter narrows ListSecrets
type SecretFilter struct {
	Service  *ServiceType
	Disabled *bool
	Search   string
}
