package repo

import (
	"context"
	"testing"
)

func TestPollStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p, opts := mustCreatePoll(t, db, NewPoll{Question: "q", Options: []string{"a", "b"}})

	n, latest, err := PollStats(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("PollStats empty: %v", err)
	}
	if n != 0 || latest != nil {
		t.Fatalf("empty poll: got n=%d latest=%v", n, latest)
	}

	v1, err := InsertVote(ctx, db, p.ID, opts[0].ID, "t1", "")
	if err != nil {
		t.Fatalf("vote 1: %v", err)
	}
	v2, err := InsertVote(ctx, db, p.ID, opts[1].ID, "t2", "")
	if err != nil {
		t.Fatalf("vote 2: %v", err)
	}

	n, latest, err = PollStats(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("PollStats: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	want := v2.CreatedAt
	if v1.CreatedAt.After(want) {
		want = v1.CreatedAt
	}
	if latest == nil || !latest.Equal(want) {
		t.Fatalf("latest = %v, want %v", latest, want)
	}

	// Another poll's votes do not leak in.
	other, oo := mustCreatePoll(t, db, NewPoll{Question: "other", Options: []string{"x", "y"}})
	if _, err := InsertVote(ctx, db, other.ID, oo[0].ID, "t1", ""); err != nil {
		t.Fatalf("other vote: %v", err)
	}
	if n, _, _ = PollStats(ctx, db, p.ID); n != 2 {
		t.Fatalf("count after other poll vote = %d, want 2", n)
	}
}
