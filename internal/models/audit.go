package models

import (
	"encoding/json"
	"time"
)

// Audit entity types.
const (
	AuditEntityDevice      = "device"
	AuditEntityTransfer    = "transfer"
	AuditEntityMaintenance = "maintenance"
)

// Audit actions.
const (
	AuditActionCreate     = "create"
	AuditActionUpdate     = "update"
	AuditActionApprove    = "approve"
	AuditActionStart      = "start"
	AuditActionComplete   = "complete"
	AuditActionCancel     = "cancel"
	AuditActionDepreciate = "depreciate"
)

// AuditLog represents an append-only audit trail record.
type AuditLog struct {
	ID         int64           `db:"id" json:"id"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   int64           `db:"entity_id" json:"entityId"`
	Action     string          `db:"action" json:"action"`
	UserID     int64           `db:"user_id" json:"userId"`
	OldValues  json.RawMessage `db:"old_values" json:"oldValues,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"newValues,omitempty"`
	IPAddress  *string         `db:"ip_address" json:"ipAddress,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// AuditFilter constrains audit listings.
type AuditFilter struct {
	EntityType string
	EntityID   *int64
	UserID     *int64
	Limit      int
	Offset     int
}
