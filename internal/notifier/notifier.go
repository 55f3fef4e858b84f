package notifier

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventVoteCast      EventType = "vote_cast"
	EventVoteRetracted EventType = "vote_retracted"
	EventPollUpdated   EventType = "poll_updated"
	EventPollDeleted   EventType = "poll_deleted"
)

// Event is the fire-and-forget payload describing one state delta.
type Event struct {
	Type         EventType `json:"type"`
	PollID       string    `json:"poll_id"`
	VoteID       string    `json:"vote_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	OptionIndex  int       `json:"option_index,omitempty"`
	TotalVotes   int       `json:"total_votes"`
	UniqueVoters int       `json:"unique_voters"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier fans an event out to subscribers. Delivery is best-effort:
// callers log a returned error and move on, never roll back.
type Notifier interface {
	Emit(ctx context.Context, event Event) error
}

// Noop discards every event. Used in tests and when no broker is wired.
type Noop struct{}

func (Noop) Emit(context.Context, Event) error { return nil }

// Multi emits to every wrapped notifier, logging individual failures so a
// dead broker never hides a healthy one.
type Multi []Notifier

func (m Multi) Emit(ctx context.Context, event Event) error {
	for _, n := range m {
		if err := n.Emit(ctx, event); err != nil {
			slog.Error("notifier emit failed", "type", event.Type, "pollID", event.PollID, "error", err)
		}
	}
	return nil
}
