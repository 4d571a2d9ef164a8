// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Compliment
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// append/query composition. The compliment log is append-only by contract —
// there are deliberately no update or delete functions in this file.
//
// Error semantics:
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//   - Listing a code with no rows is not an error; it returns an empty slice.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kudobox/kudos-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateCompliment appends a new Compliment row for the given recipient code.
// The id is a randomly generated UUID (string), and CreatedAt is set to UTC.
// Uniqueness is global (UUID); no per-code sequence is maintained.
//
// On success, it returns the persisted Compliment. On failure, it returns a
// DB error.
func CreateCompliment(ctx context.Context, db *gorm.DB, code, message string) (*domain.Compliment, error) {
	c := &domain.Compliment{
		ID:            uuid.NewString(),
		RecipientCode: code,
		Message:       message,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListCompliments returns all compliments addressed to code, ordered newest
// first (CreatedAt DESC, ID DESC as a deterministic tie-break). Every call
// recomputes from durable state; no cursor is retained. It returns an empty
// slice when the code has no compliments.
func ListCompliments(ctx context.Context, db *gorm.DB, code string) ([]domain.Compliment, error) {
	out := []domain.Compliment{}
	err := db.WithContext(ctx).
		Where("recipient_code = ?", code).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// GetCompliment fetches a compliment by ID. If the record does not exist,
// it returns ErrNotFound.
func GetCompliment(ctx context.Context, db *gorm.DB, id string) (*domain.Compliment, error) {
	var c domain.Compliment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
