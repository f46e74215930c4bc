// Package domain defines the persistence models for polls, options, and
// votes. These types are mapped with GORM and form the vote ledger of the
// live polls application.
package domain

import (
	"time"
)

// Poll status values. Status is derived from ExpiresAt at read time and
// never stored.
const (
	StatusActive = "Active"
	StatusEnded  = "Ended"
)

// Poll is a question with a fixed set of options. Once created, the ID and
// Question never change; only deletion removes a poll.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Question: trimmed, non-empty question text.
//   - CreatorEmail: optional creator tag used by the dashboard listing.
//   - ExpiresAt: optional deadline after which votes are rejected.
//   - CreatedAt: creation timestamp (UTC).
//
// There is no soft delete: removing a poll hard-deletes its options and votes.
type Poll struct {
	ID           string     `json:"id"                   gorm:"type:char(36);primaryKey"`
	Question     string     `json:"question"             gorm:"type:text;not null"`
	CreatorEmail *string    `json:"creator_email,omitempty" gorm:"type:varchar(320);index:idx_polls_creator,priority:1"`
	ExpiresAt    *time.Time `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"           gorm:"not null;index:idx_polls_creator,priority:2"`
}

// TableName returns the database table name for Poll.
func (Poll) TableName() string { return "polls" }

// Expired reports whether the poll has a deadline that is before now.
func (p Poll) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// Status returns the derived dashboard status at now.
func (p Poll) Status(now time.Time) string {
	if p.Expired(now) {
		return StatusEnded
	}
	return StatusActive
}

// Option is one answer of a poll. Position is assigned at creation (0-based,
// input order) and is unique within the poll.
type Option struct {
	ID       int64  `json:"id"       gorm:"primaryKey;autoIncrement"`
	PollID   string `json:"poll_id"  gorm:"type:char(36);not null;index;uniqueIndex:ux_options_poll_position,priority:1"`
	Text     string `json:"text"     gorm:"type:text;not null"`
	Position int    `json:"position" gorm:"not null;uniqueIndex:ux_options_poll_position,priority:2"`

	// Poll is the owning poll. Options are cascade-deleted with it.
	Poll Poll `json:"-" gorm:"foreignKey:PollID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Option.
func (Option) TableName() string { return "options" }

// Vote is a single counted vote. At most one vote exists per
// (poll_id, voter_hash), enforced by the ux_votes_poll_voter unique index.
//
// Fields:
//   - OptionID: the chosen option.
//   - PollID: the option's poll, duplicated for the uniqueness constraint.
//   - VoterHash: client-supplied voter token (the dedup key).
//   - IPHash: keyed hash of the client network address, kept for analysis.
type Vote struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	OptionID  int64     `json:"option_id"  gorm:"not null;index"`
	PollID    string    `json:"poll_id"    gorm:"type:char(36);not null;uniqueIndex:ux_votes_poll_voter,priority:1"`
	VoterHash string    `json:"-"          gorm:"type:varchar(256);not null;uniqueIndex:ux_votes_poll_voter,priority:2"`
	IPHash    *string   `json:"-"          gorm:"type:char(64)"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`

	Option Option `json:"-" gorm:"foreignKey:OptionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Poll   Poll   `json:"-" gorm:"foreignKey:PollID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// OptionTally is the current vote count of one option, always computed by
// aggregation.
type OptionTally struct {
	ID    int64  `json:"id"`
	Text  string `json:"text"`
	Votes int64  `json:"votes"`
}

// PollSummary is one row of a creator's dashboard listing.
type PollSummary struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Votes     int64     `json:"votes"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// PollUpdate is the realtime payload pushed to a poll's subscribers after a
// vote is recorded. It always carries the full tally.
type PollUpdate struct {
	ID      string        `json:"id"`
	Options []OptionTally `json:"options"`
}
