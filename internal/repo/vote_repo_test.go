package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInsertVote_DuplicateTokenRejected(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p, opts := mustCreatePoll(t, db, NewPoll{Question: "q", Options: []string{"a", "b"}})

	v, err := InsertVote(ctx, db, p.ID, opts[0].ID, "token-1", "abc")
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if v.ID == 0 || v.IPHash == nil || *v.IPHash != "abc" {
		t.Fatalf("unexpected vote %+v", v)
	}

	// Same token, different option: still a duplicate.
	if _, err := InsertVote(ctx, db, p.ID, opts[1].ID, "token-1", "abc"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if n, _ := CountVotes(ctx, db, p.ID); n != 1 {
		t.Fatalf("expected 1 stored vote, got %d", n)
	}
}

func TestInsertVote_SameTokenAcrossPolls(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p1, o1 := mustCreatePoll(t, db, NewPoll{Question: "one", Options: []string{"a", "b"}})
	p2, o2 := mustCreatePoll(t, db, NewPoll{Question: "two", Options: []string{"a", "b"}})

	if _, err := InsertVote(ctx, db, p1.ID, o1[0].ID, "tok", ""); err != nil {
		t.Fatalf("vote p1: %v", err)
	}
	if _, err := InsertVote(ctx, db, p2.ID, o2[0].ID, "tok", ""); err != nil {
		t.Fatalf("vote p2: %v", err)
	}
}

func TestInsertVote_EmptyIPHashStoredAsNull(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p, opts := mustCreatePoll(t, db, NewPoll{Question: "q", Options: []string{"a", "b"}})

	v, err := InsertVote(ctx, db, p.ID, opts[0].ID, "tok", "")
	if err != nil {
		t.Fatalf("InsertVote: %v", err)
	}
	if v.IPHash != nil {
		t.Fatalf("expected nil ip hash, got %q", *v.IPHash)
	}
}

func TestInsertVote_ConcurrentSameToken_ExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p, opts := mustCreatePoll(t, db, NewPoll{Question: "race", Options: []string{"a", "b"}})

	const workers = 16
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		mu    sync.Mutex
		ok    int
		dup   int
		other []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := InsertVote(ctx, db, p.ID, opts[i%2].ID, "same-token", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicate):
				dup++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if ok != 1 || dup != workers-1 {
		t.Fatalf("expected 1 success and %d duplicates, got ok=%d dup=%d", workers-1, ok, dup)
	}
	if n, _ := CountVotes(ctx, db, p.ID); n != 1 {
		t.Fatalf("expected exactly one stored vote, got %d", n)
	}
}

func TestTally_OrderedByPosition_IncludesZeroes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p, opts := mustCreatePoll(t, db, NewPoll{Question: "q", Options: []string{"a", "b", "c"}})

	for i := 0; i < 3; i++ {
		if _, err := InsertVote(ctx, db, p.ID, opts[2].ID, fmt.Sprintf("c-%d", i), ""); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	if _, err := InsertVote(ctx, db, p.ID, opts[0].ID, "a-0", ""); err != nil {
		t.Fatalf("vote: %v", err)
	}

	tally, err := Tally(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if len(tally) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(tally))
	}
	wantText := []string{"a", "b", "c"}
	wantVotes := []int64{1, 0, 3}
	for i, row := range tally {
		if row.ID != opts[i].ID || row.Text != wantText[i] || row.Votes != wantVotes[i] {
			t.Fatalf("row %d = %+v, want text=%s votes=%d", i, row, wantText[i], wantVotes[i])
		}
	}

	empty, err := Tally(ctx, db, "missing")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected non-nil empty tally, got %v err=%v", empty, err)
	}
}

func TestPollStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p, opts := mustCreatePoll(t, db, NewPoll{Question: "q", Options: []string{"a", "b"}})

	n, latest, err := PollStats(ctx, db, p.ID)
	if err != nil || n != 0 || latest != nil {
		t.Fatalf("empty stats: n=%d latest=%v err=%v", n, latest, err)
	}

	before := time.Now().UTC().Add(-time.Second)
	if _, err := InsertVote(ctx, db, p.ID, opts[0].ID, "v1", ""); err != nil {
		t.Fatalf("vote: %v", err)
	}
	n, latest, err = PollStats(ctx, db, p.ID)
	if err != nil || n != 1 || latest == nil {
		t.Fatalf("stats after vote: n=%d latest=%v err=%v", n, latest, err)
	}
	if latest.Before(before) {
		t.Fatalf("latest %v older than %v", latest, before)
	}
}
