package models

import (
	"regexp"
	"strings"
)

// DefaultQueuePriority is used when a package leaves priority unset
const DefaultQueuePriority = 8

// Package is a sellable bandwidth plan
type Package struct {
	BaseModel

	Name      string      `json:"name" db:"name" validate:"required,max=128"`
	Type      ServiceType `json:"type" db:"type" validate:"required,oneof=pppoe hotspot"`
	Bandwidth string      `json:"bandwidth" db:"bandwidth" validate:"required,rate"`
	Burst     string      `json:"burst,omitempty" db:"burst" validate:"omitempty,rate"`
	Priority  *int        `json:"priority,omitempty" db:"priority" validate:"omitempty,min=1,max=8"`
	Price     float64     `json:"price" db:"price" validate:"gte=0"`
}

// BurstLimit returns the burst limit, defaulting to the bandwidth
func (p *Package) BurstLimit() string {
	if p.Burst == "" {
		return p.Bandwidth
	}
	return p.Burst
}

// QueuePriority returns the priority, defaulting to 8
func (p *Package) QueuePriority() int {
	if p.Priority == nil {
		return DefaultQueuePriority
	}
	return *p.Priority
}

var nonSlug = regexp.MustCompile(`\s+`)

// ProfileName is the router profile name used when the package is pushed
func (p *Package) ProfileName() string {
	return "profile-" + nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(p.Name)), "-")
}
