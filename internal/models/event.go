package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncAction is what a sync pushes to the router
type SyncAction string

const (
	SyncCreate SyncAction = "create"
	SyncUpdate SyncAction = "update"
	SyncDelete SyncAction = "delete"
)

// Valid reports whether a is a known action
func (a SyncAction) Valid() bool {
	return a == SyncCreate || a == SyncUpdate || a == SyncDelete
}

// SecretSyncedEvent is published after a secret was pushed to the router
type SecretSyncedEvent struct {
	SecretID      *uuid.UUID  `json:"secretId,omitempty"`
	Username      string      `json:"username"`
	Service       ServiceType `json:"service"`
	Action        SyncAction  `json:"action"`
	AlreadyAbsent bool        `json:"alreadyAbsent,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// SecretsImportedEvent is published after an import from the router
type SecretsImportedEvent struct {
	Imported  int       `json:"imported"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// TrafficEvent carries one rate reading of an interface
type TrafficEvent struct {
	Interface string    `json:"interface"`
	Download  float64   `json:"download"`
	Upload    float64   `json:"upload"`
	RxBytes   uint64    `json:"rxBytes"`
	TxBytes   uint64    `json:"txBytes"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscriptionEvent is received from the billing workflow
type SubscriptionEvent struct {
	SubscriptionID uuid.UUID   `json:"subscriptionId"`
	CustomerID     *uuid.UUID  `json:"customerId,omitempty"`
	PackageID      *uuid.UUID  `json:"packageId,omitempty"`
	Username       string      `json:"username"`
	Password       string      `json:"password,omitempty"`
	Service        ServiceType `json:"service,omitempty"`
}
