// Package repo implements the data persistence layer for the vote ledger,
// backed by GORM. This file provides repository functions for votes and
// tallies.
//
// Duplicate votes are detected exclusively through the storage engine's
// unique index on (poll_id, voter_hash). There is no read-before-insert:
// two concurrent inserts with the same key race on the index and exactly one
// of them wins; the other receives ErrDuplicate.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-live-polls/internal/domain"
)

// InsertVote records one vote. ipHash may be empty. On a unique violation
// for (poll_id, voter_hash) it returns ErrDuplicate; other DB errors are
// returned unchanged.
func InsertVote(ctx context.Context, db *gorm.DB, pollID string, optionID int64, voterHash, ipHash string) (*domain.Vote, error) {
	v := &domain.Vote{
		OptionID:  optionID,
		PollID:    pollID,
		VoterHash: voterHash,
		CreatedAt: time.Now().UTC(),
	}
	if ipHash != "" {
		v.IPHash = &ipHash
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(v).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return v, nil
}

// Tally returns the current vote count of every option of pollID, ordered
// by option position. Options without votes report 0. Counts are always
// aggregated from the votes table; nothing is cached.
func Tally(ctx context.Context, db *gorm.DB, pollID string) ([]domain.OptionTally, error) {
	out := []domain.OptionTally{}
	err := db.WithContext(ctx).
		Table("options AS o").
		Select("o.id, o.text, COUNT(v.id) AS votes").
		Joins("LEFT JOIN votes AS v ON v.option_id = o.id").
		Where("o.poll_id = ?", pollID).
		Group("o.id, o.text, o.position").
		Order("o.position ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountVotes returns the number of votes recorded for pollID.
func CountVotes(ctx context.Context, db *gorm.DB, pollID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("poll_id = ?", pollID).
		Count(&n).Error
	return n, err
}
