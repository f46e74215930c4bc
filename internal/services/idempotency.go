package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-live-polls/internal/domain"
	"github.com/tbourn/go-live-polls/internal/repo"
)

// ScopeCreatePoll namespaces Idempotency-Key records for poll creation.
const ScopeCreatePoll = "polls.create"

// DefaultIdempotencyTTL bounds how long a creation can be replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

// HasIdempotentResult reports whether a live record exists for (scope, key).
// It matches middleware.IdempotencyLookup.
func (s *PollService) HasIdempotentResult(ctx context.Context, scope, key string, now time.Time) (bool, error) {
	_, err := repo.GetIdempotency(ctx, s.DB, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CreateIdempotent behaves like Create, except that a non-empty key makes
// retries return the poll stored by the first successful call. replay is
// true when the returned poll was not created by this call. Reusing a key
// with a different request yields ErrIdempotencyConflict.
func (s *PollService) CreateIdempotent(ctx context.Context, key string, in CreatePollInput) (p *domain.Poll, replay bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		p, err = s.Create(ctx, in)
		return p, false, err
	}

	ctx, span := startSpan(ctx, "CreateIdempotent", attribute.String("idempotency.scope", ScopeCreatePoll))
	defer span.End()

	fp := fingerprint(in)
	if p, err := s.replayed(ctx, key, fp); p != nil || err != nil {
		return p, p != nil, err
	}

	p, err = s.Create(ctx, in)
	if err != nil {
		return nil, false, err
	}

	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	_, err = repo.CreateIdempotency(ctx, s.DB, ScopeCreatePoll, key, p.ID, fp, 201, s.now(), ttl)
	switch {
	case err == nil:
		return p, false, nil
	case errors.Is(err, repo.ErrDuplicate):
		// A concurrent request with the same key won; keep its poll.
		if derr := repo.DeletePoll(ctx, s.DB, p.ID); derr != nil && !errors.Is(derr, repo.ErrNotFound) {
			return nil, false, derr
		}
		winner, rerr := s.replayed(ctx, key, fp)
		if rerr != nil {
			return nil, false, rerr
		}
		if winner == nil {
			return nil, false, ErrPollNotFound
		}
		return winner, true, nil
	default:
		return nil, false, err
	}
}

// replayed returns the poll recorded under key, or nil when there is none.
// A record whose poll has since been deleted is dropped and counts as none.
func (s *PollService) replayed(ctx context.Context, key, fp string) (*domain.Poll, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, ScopeCreatePoll, key, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Fingerprint != "" && rec.Fingerprint != fp {
		return nil, ErrIdempotencyConflict
	}
	p, err := s.getPoll(ctx, rec.PollID)
	if errors.Is(err, ErrPollNotFound) {
		return nil, repo.DeleteIdempotency(ctx, s.DB, ScopeCreatePoll, key)
	}
	return p, err
}

// fingerprint digests the normalized creation input, so retries that differ
// only in whitespace or Unicode form still match.
func fingerprint(in CreatePollInput) string {
	canon := struct {
		Q string     `json:"q"`
		O []string   `json:"o"`
		E string     `json:"e"`
		X *time.Time `json:"x"`
	}{
		Q: normalizeText(in.Question),
		O: make([]string, 0, len(in.Options)),
		E: normalizeEmail(in.CreatorEmail),
	}
	for _, o := range in.Options {
		canon.O = append(canon.O, normalizeText(o))
	}
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		canon.X = &t
	}
	b, _ := json.Marshal(canon)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
