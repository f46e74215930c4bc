//go:build integration

package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("polls"),
		tcpostgres.WithUsername("polls"),
		tcpostgres.WithPassword("polls"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := Open(Options{Driver: DriverPostgres, PostgresDSN: dsn})
	if err != nil {
		t.Fatalf("Open postgres: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestPostgres_ConcurrentSameToken_ExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	db := newPostgresDB(t)
	p, opts := mustCreatePoll(t, db, NewPoll{Question: "race", Options: []string{"a", "b"}})

	const workers = 32
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		mu    sync.Mutex
		ok    int
		dup   int
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
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if ok != 1 || dup != workers-1 {
		t.Fatalf("expected 1 success and %d duplicates, got ok=%d dup=%d", workers-1, ok, dup)
	}

	tally, err := Tally(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	var total int64
	for _, row := range tally {
		total += row.Votes
	}
	if total != 1 {
		t.Fatalf("expected tally total 1, got %d", total)
	}
}

func TestPostgres_DeletePollCascades(t *testing.T) {
	ctx := context.Background()
	db := newPostgresDB(t)
	p, opts := mustCreatePoll(t, db, NewPoll{Question: "q", Options: []string{"a", "b"}})
	if _, err := InsertVote(ctx, db, p.ID, opts[0].ID, "v", ""); err != nil {
		t.Fatalf("InsertVote: %v", err)
	}
	if err := DeletePoll(ctx, db, p.ID); err != nil {
		t.Fatalf("DeletePoll: %v", err)
	}
	if n, _ := CountVotes(ctx, db, p.ID); n != 0 {
		t.Fatalf("votes left after delete: %d", n)
	}
}
