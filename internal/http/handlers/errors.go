// Package handlers defines the error codes returned in every API error
// envelope. Clients branch on Code; Message is for display.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "duplicate_vote",
//	  "message": "You have already voted on this poll"
//	}
package handlers

const (
	ErrCodeValidation       = "validation_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeExpired          = "expired"
	ErrCodeDuplicateVote    = "duplicate_vote"
	ErrCodeIdemConflict     = "idempotency_conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// User-facing messages for domain errors.
const (
	msgPollNotFound  = "Poll not found"
	msgPollExpired   = "This poll has expired"
	msgDuplicateVote = "You have already voted on this poll"
	msgIdemConflict  = "Idempotency-Key was already used with a different request"
	msgInvalidBody   = "Invalid request body"
	MsgVoteRateLimit = "Too many vote attempts, please try again later"
	msgCreateFailed  = "Failed to create poll"
	msgListFailed    = "Failed to fetch polls"
	msgGetFailed     = "Failed to fetch poll"
	msgVoteFailed    = "Failed to submit vote"
	msgDeleteFailed  = "Failed to delete poll"
)
