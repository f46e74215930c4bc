// Package services – PollService
//
// This file implements PollService, the only component that mutates the vote
// ledger and the only caller of the realtime fanout. It validates inputs,
// checks poll state, derives the network-address key, records votes under the
// ledger's uniqueness constraint, and publishes the recomputed tally.
//
// Observability: all public methods are OpenTelemetry-instrumented; vote
// outcomes and poll creation are counted in Prometheus.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-live-polls/internal/domain"
	"github.com/tbourn/go-live-polls/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Option count bounds for a new poll.
const (
	MinOptions = 2
	MaxOptions = 10
)

// AddrHasher derives the stored key for a client network address.
type AddrHasher interface {
	Hash(addr string) string
}

// Publisher receives tallies after every accepted vote. Implementations must
// not block the caller.
type Publisher interface {
	PublishPollUpdate(u domain.PollUpdate)
}

// CreatePollInput is the raw creation request.
type CreatePollInput struct {
	Question     string
	Options      []string
	CreatorEmail string
	ExpiresAt    *time.Time
}

// VoteInput is a single vote attempt. ClientAddr is the caller's network
// address as seen by the transport.
type VoteInput struct {
	PollID     string
	OptionID   int64
	VoterHash  string
	ClientAddr string
}

// PollView is a poll with its live tally.
type PollView struct {
	ID        string               `json:"id"`
	Question  string               `json:"question"`
	ExpiresAt *time.Time           `json:"expiresAt"`
	Options   []domain.OptionTally `json:"options"`
}

// PollService coordinates poll creation, reads, votes, and deletion.
type PollService struct {
	DB        *gorm.DB
	Hasher    AddrHasher
	Publisher Publisher

	// Now returns the current time; nil means time.Now.
	Now func() time.Time

	// IdempotencyTTL defaults to DefaultIdempotencyTTL.
	IdempotencyTTL time.Duration
}

// NewPollService constructs a PollService. Question and option text have no
// length cap here; the storage columns bound them.
func NewPollService(db *gorm.DB, h AddrHasher, pub Publisher) *PollService {
	return &PollService{DB: db, Hasher: h, Publisher: pub}
}

func (s *PollService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/PollService").Start(ctx, name, trace.WithAttributes(attrs...))
}

// Create validates the input and stores the poll with its options in one
// transaction. Every check runs before any storage call.
func (s *PollService) Create(ctx context.Context, in CreatePollInput) (*domain.Poll, error) {
	ctx, span := startSpan(ctx, "Create", attribute.Int("options.raw", len(in.Options)))
	defer span.End()

	question := normalizeText(in.Question)
	if question == "" {
		return nil, invalid("Question is required")
	}

	// The raw count is checked before blank options are dropped.
	if len(in.Options) < MinOptions {
		return nil, invalid("At least 2 options are required")
	}
	if len(in.Options) > MaxOptions {
		return nil, invalid("Maximum 10 options allowed")
	}
	options := make([]string, 0, len(in.Options))
	for _, o := range in.Options {
		o = normalizeText(o)
		if o == "" {
			continue
		}
		options = append(options, o)
	}
	if len(options) < MinOptions {
		return nil, invalid("At least 2 non-empty options are required")
	}

	var email *string
	if e := normalizeEmail(in.CreatorEmail); e != "" {
		email = &e
	}

	var expiresAt *time.Time
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		if !t.After(s.now()) {
			return nil, invalid("Expiry must be in the future")
		}
		expiresAt = &t
	}

	p, _, err := repo.CreatePoll(ctx, s.DB, repo.NewPoll{
		Question:     question,
		Options:      options,
		CreatorEmail: email,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create poll")
		return nil, err
	}
	pollsCreated.Inc()
	span.SetAttributes(attribute.String("poll.id", p.ID))
	return p, nil
}

// Get returns the poll with its current tally.
func (s *PollService) Get(ctx context.Context, id string) (*PollView, error) {
	ctx, span := startSpan(ctx, "Get", attribute.String("poll.id", id))
	defer span.End()

	p, err := s.getPoll(ctx, id)
	if err != nil {
		return nil, err
	}
	tally, err := repo.Tally(ctx, s.DB, p.ID)
	if err != nil {
		return nil, err
	}
	return &PollView{ID: p.ID, Question: p.Question, ExpiresAt: p.ExpiresAt, Options: tally}, nil
}

// Exists reports whether a poll with id is stored.
func (s *PollService) Exists(ctx context.Context, id string) (bool, error) {
	ctx, span := startSpan(ctx, "Exists", attribute.String("poll.id", id))
	defer span.End()

	if _, err := s.getPoll(ctx, id); err != nil {
		if errors.Is(err, ErrPollNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListByCreator returns the dashboard rows for polls tagged with email.
func (s *PollService) ListByCreator(ctx context.Context, email string) ([]domain.PollSummary, error) {
	ctx, span := startSpan(ctx, "ListByCreator")
	defer span.End()

	email = normalizeEmail(email)
	if email == "" {
		return nil, invalid("Email is required")
	}
	return repo.ListPollsByCreator(ctx, s.DB, email, s.now())
}

// Vote records one vote and returns the new tally. Checks run in order:
// option id, voter token, client address, poll existence, expiry, option
// membership; then the insert. Duplicates are detected only by the ledger's
// uniqueness constraint. The publisher is called only after a successful
// insert.
func (s *PollService) Vote(ctx context.Context, in VoteInput) ([]domain.OptionTally, error) {
	ctx, span := startSpan(ctx, "Vote",
		attribute.String("poll.id", in.PollID),
		attribute.Int64("option.id", in.OptionID),
	)
	defer span.End()

	tally, outcome, err := s.vote(ctx, in)
	votesTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("vote.outcome", outcome))
	if err != nil {
		if outcome == outcomeError {
			span.RecordError(err)
			span.SetStatus(codes.Error, "vote")
		}
		return nil, err
	}
	return tally, nil
}

func (s *PollService) vote(ctx context.Context, in VoteInput) ([]domain.OptionTally, string, error) {
	if in.OptionID <= 0 {
		return nil, outcomeInvalid, invalid("optionId must be a valid number")
	}
	token, err := validateToken(in.VoterHash)
	if err != nil {
		return nil, outcomeInvalid, err
	}
	addr := strings.TrimSpace(in.ClientAddr)
	if addr == "" {
		return nil, outcomeInvalid, ErrNoClientAddr
	}

	p, err := s.getPoll(ctx, in.PollID)
	if err != nil {
		if errors.Is(err, ErrPollNotFound) {
			return nil, outcomeNotFound, err
		}
		return nil, outcomeError, err
	}
	if p.Expired(s.now()) {
		return nil, outcomeExpired, ErrPollExpired
	}

	ok, err := repo.OptionInPoll(ctx, s.DB, p.ID, in.OptionID)
	if err != nil {
		return nil, outcomeError, err
	}
	if !ok {
		return nil, outcomeInvalid, ErrOptionNotInPoll
	}

	if _, err := repo.InsertVote(ctx, s.DB, p.ID, in.OptionID, token, s.Hasher.Hash(addr)); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, outcomeDuplicate, ErrDuplicateVote
		}
		return nil, outcomeError, err
	}

	tally, err := repo.Tally(ctx, s.DB, p.ID)
	if err != nil {
		return nil, outcomeError, err
	}
	if s.Publisher != nil {
		s.Publisher.PublishPollUpdate(domain.PollUpdate{ID: p.ID, Options: tally})
	}
	return tally, outcomeAccepted, nil
}

// Delete removes the poll with its options and votes.
func (s *PollService) Delete(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "Delete", attribute.String("poll.id", id))
	defer span.End()

	if err := repo.DeletePoll(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPollNotFound
		}
		return err
	}
	return nil
}

// Stats returns the vote count and latest vote time of a poll, for cache
// validators.
func (s *PollService) Stats(ctx context.Context, id string) (int64, *time.Time, error) {
	return repo.PollStats(ctx, s.DB, id)
}

func (s *PollService) getPoll(ctx context.Context, id string) (*domain.Poll, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrPollNotFound
	}
	p, err := repo.GetPoll(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return p, nil
}
