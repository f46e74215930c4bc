// Poll HTTP handlers.
//
// This file exposes the REST endpoints for polls:
//   - POST   /polls            (create, Idempotency-Key aware)
//   - GET    /polls/user       (creator dashboard)
//   - GET    /polls/{id}       (poll with live tally, weak ETag)
//   - POST   /polls/{id}/vote  (cast a vote)
//   - DELETE /polls/{id}       (hard delete)
//
// Handlers are transport-thin: they decode loosely typed JSON, hand the
// values to PollService and translate its errors into the error envelope.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-live-polls/internal/domain"
	"github.com/tbourn/go-live-polls/internal/http/middleware"
	"github.com/tbourn/go-live-polls/internal/services"
)

// PollService is the application contract consumed by the poll handlers.
type PollService interface {
	CreateIdempotent(ctx context.Context, key string, in services.CreatePollInput) (*domain.Poll, bool, error)
	Get(ctx context.Context, id string) (*services.PollView, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListByCreator(ctx context.Context, email string) ([]domain.PollSummary, error)
	Vote(ctx context.Context, in services.VoteInput) ([]domain.OptionTally, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, id string) (int64, *time.Time, error)
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	polls PollService
}

// New constructs Handlers bound to the poll service.
func New(polls PollService) *Handlers {
	return &Handlers{polls: polls}
}

//
// DTOs
//

// CreatePollRequest documents the creation payload. Fields are decoded
// leniently: a non-string question or a non-array options value is treated
// as missing, and non-string option entries count as blank.
type CreatePollRequest struct {
	Question     string     `json:"question" example:"Where should we eat?"`
	Options      []string   `json:"options" example:"Pizza,Sushi"`
	CreatorEmail string     `json:"creatorEmail,omitempty" example:"host@example.com"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty" example:"2030-01-01T00:00:00Z"`
}

// CreatePollResponse carries the new poll id.
type CreatePollResponse struct {
	ID string `json:"id" example:"2b1f4c9e-7d3a-4f0e-9a51-0c1d2e3f4a5b"`
}

// VoteRequest documents the vote payload. optionId accepts a JSON number or
// a numeric string.
type VoteRequest struct {
	OptionID  int64  `json:"optionId" example:"1"`
	VoterHash string `json:"voterHash" example:"fp-3f9a1c"`
}

// VoteResponse returns the tally after the vote was recorded.
type VoteResponse struct {
	Success bool                 `json:"success" example:"true"`
	Options []domain.OptionTally `json:"options"`
}

// SuccessResponse is a bare acknowledgement.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

type rawCreatePoll struct {
	Question     json.RawMessage `json:"question"`
	Options      json.RawMessage `json:"options"`
	CreatorEmail json.RawMessage `json:"creatorEmail"`
	ExpiresAt    json.RawMessage `json:"expiresAt"`
}

type rawVote struct {
	OptionID  json.RawMessage `json:"optionId"`
	VoterHash json.RawMessage `json:"voterHash"`
}

//
// Helpers
//

// jsonString returns raw as a string when it is a JSON string, else "".
func jsonString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// jsonStrings decodes a JSON array, mapping non-string entries to "". A
// non-array yields nil.
func jsonStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = jsonString(it)
	}
	return out
}

// parseOptionID accepts an integral JSON number or a numeric string. Anything
// else, including fractions, yields 0.
func parseOptionID(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	txt := string(raw)
	if raw[0] == '"' {
		txt = strings.TrimSpace(jsonString(raw))
	}
	if n, err := strconv.ParseInt(txt, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(txt, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// parseExpiry decodes an optional RFC 3339 timestamp; null or absent is nil.
func parseExpiry(raw json.RawMessage) (*time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, false
	}
	return &t, true
}

func pollETag(id string, count int64, latest *time.Time) string {
	var ts int64
	if latest != nil {
		ts = latest.UTC().UnixNano()
	}
	return fmt.Sprintf(`W/"poll:%s:%d:%d"`, id, count, ts)
}

//
// Handlers
//

// CreatePoll godoc
// @ID          createPoll
// @Summary     Create a poll
// @Description Creates a poll with 2 to 10 options. Blank options are dropped after the count check.
// @Description Supports idempotency via the Idempotency-Key header (same key → same poll).
// @Description Reusing a key with a different body is rejected with 409.
// @Tags        Polls
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                      false  "Idempotency key for safe retries"
// @Param       body             body    handlers.CreatePollRequest  true   "Poll payload"
// @Success     201  {object}  handlers.CreatePollResponse  "Created"
// @Success     200  {object}  handlers.CreatePollResponse  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse       "Validation error"
// @Failure     409  {object}  handlers.ErrorResponse       "Idempotency key conflict"
// @Failure     500  {object}  handlers.ErrorResponse       "Internal error"
// @Router      /polls [post]
func (h *Handlers) CreatePoll(c *gin.Context) {
	var req rawCreatePoll
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, msgInvalidBody)
		return
	}
	expiresAt, valid := parseExpiry(req.ExpiresAt)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "expiresAt must be an RFC 3339 timestamp")
		return
	}

	in := services.CreatePollInput{
		Question:     jsonString(req.Question),
		Options:      jsonStrings(req.Options),
		CreatorEmail: jsonString(req.CreatorEmail),
		ExpiresAt:    expiresAt,
	}
	key, _ := middleware.GetIdempotencyKey(c)

	p, replay, err := h.polls.CreateIdempotent(c.Request.Context(), key, in)
	if err != nil {
		failService(c, err, msgCreateFailed)
		return
	}
	if replay {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, CreatePollResponse{ID: p.ID})
		return
	}
	ok(c, http.StatusCreated, CreatePollResponse{ID: p.ID})
}

// ListUserPolls godoc
// @ID          listUserPolls
// @Summary     List a creator's polls
// @Description Returns the polls tagged with the given creator e-mail, newest first, with vote totals and status.
// @Tags        Polls
// @Produce     json
// @Param       email  query  string  true  "Creator e-mail"
// @Success     200  {array}   domain.PollSummary
// @Failure     400  {object}  handlers.ErrorResponse  "Email is required"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /polls/user [get]
func (h *Handlers) ListUserPolls(c *gin.Context) {
	rows, err := h.polls.ListByCreator(c.Request.Context(), c.Query("email"))
	if err != nil {
		failService(c, err, msgListFailed)
		return
	}
	ok(c, http.StatusOK, rows)
}

// GetPoll godoc
// @ID          getPoll
// @Summary     Get a poll with its tally
// @Description Returns the poll and the current vote count of every option. Supports weak ETag via If-None-Match.
// @Tags        Polls
// @Produce     json
// @Param       id             path    string  true   "Poll ID"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Header      200  {string}  ETag  "Weak ETag for the current tally"
// @Success     200  {object}  services.PollView
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Poll not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /polls/{id} [get]
func (h *Handlers) GetPoll(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	// ETag pre-check (best effort).
	var etag string
	if count, latest, err := h.polls.Stats(ctx, id); err == nil {
		etag = pollETag(id, count, latest)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			if exists, err := h.polls.Exists(ctx, id); err == nil && exists {
				c.Header("ETag", etag)
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	view, err := h.polls.Get(ctx, id)
	if err != nil {
		failService(c, err, msgGetFailed)
		return
	}
	if etag != "" {
		c.Header("ETag", etag)
	}
	ok(c, http.StatusOK, view)
}

// Vote godoc
// @ID          votePoll
// @Summary     Vote on a poll
// @Description Records one vote per voter token and poll, then broadcasts the new tally to realtime subscribers.
// @Tags        Polls
// @Accept      json
// @Produce     json
// @Param       id    path  string                true  "Poll ID"
// @Param       body  body  handlers.VoteRequest  true  "Vote payload"
// @Success     200  {object}  handlers.VoteResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid option or voter token"
// @Failure     403  {object}  handlers.ErrorResponse  "Expired or already voted"
// @Failure     404  {object}  handlers.ErrorResponse  "Poll not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Too many vote attempts"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /polls/{id}/vote [post]
func (h *Handlers) Vote(c *gin.Context) {
	var req rawVote
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, msgInvalidBody)
		return
	}

	tally, err := h.polls.Vote(c.Request.Context(), services.VoteInput{
		PollID:     c.Param("id"),
		OptionID:   parseOptionID(req.OptionID),
		VoterHash:  jsonString(req.VoterHash),
		ClientAddr: c.ClientIP(),
	})
	if err != nil {
		failService(c, err, msgVoteFailed)
		return
	}
	ok(c, http.StatusOK, VoteResponse{Success: true, Options: tally})
}

// DeletePoll godoc
// @ID          deletePoll
// @Summary     Delete a poll
// @Description Hard-deletes the poll together with its options and votes.
// @Tags        Polls
// @Produce     json
// @Param       id  path  string  true  "Poll ID"
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Poll not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /polls/{id} [delete]
func (h *Handlers) DeletePoll(c *gin.Context) {
	if err := h.polls.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err, msgDeleteFailed)
		return
	}
	ok(c, http.StatusOK, SuccessResponse{Success: true})
}
