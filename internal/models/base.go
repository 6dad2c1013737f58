package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel contains common fields for persisted models
type BaseModel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ServiceType is the access service a credential belongs to
type ServiceType string

const (
	ServicePPPoE   ServiceType = "pppoe"
	ServiceHotspot ServiceType = "hotspot"
)

// Valid reports whether s is a known service
func (s ServiceType) Valid() bool {
	return s == ServicePPPoE || s == ServiceHotspot
}

// String implements fmt.Stringer
func (s ServiceType) String() string {
	return string(s)
}
