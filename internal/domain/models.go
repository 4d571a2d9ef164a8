// Package domain defines the persistence models for compliments and
// idempotency records. These types are mapped with GORM and form the core
// data layer of the kudos application.
package domain

import "time"

// Compliment is one anonymous text message addressed to a recipient code.
// Rows are append-only: a compliment is created once by the ingress path and
// is never updated or deleted afterwards.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - RecipientCode: uppercase share code the compliment is addressed to;
//     indexed because it partitions both storage and live delivery.
//   - Message: non-empty text content of the compliment.
//   - CreatedAt: server-assigned UTC creation timestamp.
type Compliment struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	RecipientCode string    `json:"recipient_code" gorm:"type:varchar(32);not null;index:idx_code_compliments,priority:1"`
	Message       string    `json:"message"        gorm:"type:text;not null"`
	CreatedAt     time.Time `json:"created_at"     gorm:"index:idx_code_compliments,priority:2"`
}

// TableName returns the database table name for Compliment.
func (Compliment) TableName() string { return "compliments" }
