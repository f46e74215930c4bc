// Package repo implements the data persistence layer for the vote ledger,
// backed by GORM. This file provides repository functions for polls and
// their options.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business rules (option
// counts, trimming, expiry) live here, only persistence and query
// composition.
//
// Error semantics:
//   - When a poll is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound).
//   - Other DB errors are propagated unchanged.
//
// Functions:
//
//   - CreatePoll(ctx, db, p, optionTexts) -> *domain.Poll, []domain.Option, error
//     Inserts the poll and its options (positions 0..N-1) in one transaction.
//
//   - GetPoll(ctx, db, id) -> *domain.Poll, error
//
//   - ListOptions(ctx, db, pollID) -> []domain.Option, error
//
//   - OptionInPoll(ctx, db, pollID, optionID) -> bool, error
//
//   - ListPollsByCreator(ctx, db, email, now) -> []domain.PollSummary, error
//     Dashboard rows, newest first, with derived status.
//
//   - DeletePoll(ctx, db, id) -> error
//     Hard delete of the poll, its options and its votes.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-live-polls/internal/domain"
)

// NewPoll describes a poll to insert. Validation is the caller's job.
type NewPoll struct {
	Question     string
	CreatorEmail *string
	ExpiresAt    *time.Time
	Options      []string
}

// CreatePoll inserts a poll and all of its options atomically: either the
// poll and every option exist afterwards, or none do. The poll ID is a
// random UUID and option positions follow the input order.
func CreatePoll(ctx context.Context, db *gorm.DB, in NewPoll) (*domain.Poll, []domain.Option, error) {
	p := &domain.Poll{
		ID:           uuid.NewString(),
		Question:     in.Question,
		CreatorEmail: in.CreatorEmail,
		ExpiresAt:    in.ExpiresAt,
		CreatedAt:    time.Now().UTC(),
	}
	opts := make([]domain.Option, len(in.Options))
	for i, text := range in.Options {
		opts[i] = domain.Option{PollID: p.ID, Text: text, Position: i}
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return err
		}
		if len(opts) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).Create(&opts).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return p, opts, nil
}

// GetPoll fetches a single poll by ID. If the record does not exist, it
// returns ErrNotFound.
func GetPoll(ctx context.Context, db *gorm.DB, id string) (*domain.Poll, error) {
	var p domain.Poll
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListOptions returns a poll's options ordered by position.
func ListOptions(ctx context.Context, db *gorm.DB, pollID string) ([]domain.Option, error) {
	var out []domain.Option
	err := db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("position asc").
		Find(&out).Error
	return out, err
}

// OptionInPoll reports whether optionID exists and belongs to pollID.
func OptionInPoll(ctx context.Context, db *gorm.DB, pollID string, optionID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Option{}).
		Where("id = ? AND poll_id = ?", optionID, pollID).
		Count(&n).Error
	return n > 0, err
}

// ListPollsByCreator returns the dashboard rows for polls tagged with email,
// newest first. Vote totals are aggregated on every call and status is
// derived from expires_at relative to now.
func ListPollsByCreator(ctx context.Context, db *gorm.DB, email string, now time.Time) ([]domain.PollSummary, error) {
	var rows []struct {
		ID        string
		Question  string
		ExpiresAt *time.Time
		CreatedAt time.Time
		Votes     int64
	}
	err := db.WithContext(ctx).
		Table("polls AS p").
		Select("p.id, p.question, p.expires_at, p.created_at, COUNT(v.id) AS votes").
		Joins("LEFT JOIN votes AS v ON v.poll_id = p.id").
		Where("p.creator_email = ?", email).
		Group("p.id, p.question, p.expires_at, p.created_at").
		Order("p.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.PollSummary, 0, len(rows))
	for _, r := range rows {
		p := domain.Poll{ExpiresAt: r.ExpiresAt}
		out = append(out, domain.PollSummary{
			ID:        r.ID,
			Question:  r.Question,
			Votes:     r.Votes,
			Status:    p.Status(now),
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// DeletePoll hard-deletes a poll together with its options, votes, and the
// idempotency records that point at it. The
// child rows are removed explicitly in the same transaction, so the cascade
// holds even where the engine does not enforce foreign keys. Returns
// ErrNotFound when no poll with id exists.
func DeletePoll(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("poll_id = ?", id).Delete(&domain.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("poll_id = ?", id).Delete(&domain.Option{}).Error; err != nil {
			return err
		}
		if err := tx.Where("poll_id = ?", id).Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Poll{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
