// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kudobox/kudos-backend/internal/domain"
)

// ComplimentStats returns aggregate metadata for a recipient code: the total
// number of rows and the maximum CreatedAt timestamp among those rows.
//
// Because compliments are append-only, (count, maxCreatedAt) changes exactly
// when the history changes, which makes the pair a cheap ETag source.
// When the code has no compliments, count is 0 and maxCreatedAt is nil.
func ComplimentStats(ctx context.Context, db *gorm.DB, code string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Compliment{}).Where("recipient_code = ?", code)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
