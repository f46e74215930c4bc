package domain

import "time"

// Idempotency records the outcome of a completed poll creation, keyed by
// (scope, key). A retried POST carrying the same Idempotency-Key is answered
// with the stored poll instead of creating a second one. Fingerprint is a
// digest of the normalized request; a retry with a different body conflicts.
type Idempotency struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	Scope       string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_idem_scope_key,priority:1"`
	Key         string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_idem_scope_key,priority:2"`
	PollID      string    `gorm:"type:char(36);not null;index"`
	Fingerprint string    `gorm:"type:char(64);not null;default:''"`
	Status      int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
