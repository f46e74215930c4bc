// Package repo implements the data persistence layer for the vote ledger,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-live-polls/internal/domain"
)

// PollStats returns aggregate metadata for a poll's votes: the total number
// of rows and the latest CreatedAt among them. Votes are immutable, so the
// pair changes exactly when the tally changes.
//
// When the poll has no votes, the returned count is 0 and latest is nil.
func PollStats(ctx context.Context, db *gorm.DB, pollID string) (count int64, latest *time.Time, err error) {
	scoped := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Vote{}).Where("poll_id = ?", pollID)
	}

	if err = scoped().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = scoped().Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
