package services

import "github.com/prometheus/client_golang/prometheus"

// Vote outcomes used as the "outcome" label of poll_votes_total.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeExpired   = "expired"
	outcomeNotFound  = "not_found"
	outcomeInvalid   = "invalid"
	outcomeError     = "error"
)

var (
	// votesTotal counts vote attempts that reached the service, by outcome.
	votesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_votes_total",
			Help: "Vote attempts by outcome.",
		},
		[]string{"outcome"},
	)

	pollsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "polls_created_total",
			Help: "Total number of polls created.",
		},
	)
)

func init() {
	prometheus.MustRegister(votesTotal, pollsCreated)
}
