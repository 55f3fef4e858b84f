package voting

import (
	"context"
	"time"

	"voting-service/internal/models"
)

// Tx is the view of one poll's state inside its serialization point. All
// methods run under the poll's lock/transaction and commit or abort as one
// unit. Aggregate mutations must keep the snapshot returned by Poll() in
// sync, so the engine can read updated counters before commit.
type Tx interface {
	// Poll returns the aggregate as currently held under the lock.
	Poll() *models.Poll

	// CountUserVotes counts the user's ledger entries for this poll,
	// excluding excludeVoteID when non-empty.
	CountUserVotes(userID string, excludeVoteID string) (int, error)

	// AddVote applies one accepted cast to the aggregate: increments the
	// option counter, attaches the voter record, increments TotalVotes,
	// and when firstForUser is set adds the user to the voter set and
	// increments UniqueVoters.
	AddVote(optionIndex int, rec models.VoterRecord, firstForUser bool) error

	// RemoveVote reverses one cast: decrements the option counter and
	// TotalVotes (never below zero), removes one matching voter record,
	// and when lastForUser is set removes the user from the voter set and
	// decrements UniqueVoters (never below zero).
	RemoveVote(optionIndex int, userID string, lastForUser bool) error

	// Ledger and history, same atomic unit as the aggregate. DeleteVote
	// fails with ErrVoteNotFound when the entry no longer exists, which
	// aborts the whole unit.
	AppendVote(vote *models.Vote) error
	DeleteVote(voteID string) error
	RecordHistory(userID string, votedAt time.Time) error
	RemoveHistory(userID string) error
}

// Store is the persistence substrate the engine runs against. UpdatePoll
// provides the per-poll atomic read-modify-write required for counter
// consistency; implementations may return ErrStorageConflict when a
// concurrent writer wins, and the engine retries a bounded number of times.
type Store interface {
	GetPoll(ctx context.Context, pollID string) (*models.Poll, error)
	GetVote(ctx context.Context, voteID string) (*models.Vote, error)
	CountUserVotes(ctx context.Context, pollID, userID string) (int, error)

	// UpdatePoll loads the poll under its serialization point, runs fn,
	// and commits everything fn staged, or rolls all of it back when fn
	// returns an error.
	UpdatePoll(ctx context.Context, pollID string, fn func(tx Tx) error) error

	// DeleteOrphanVote removes a ledger entry whose poll no longer
	// exists; no aggregate to adjust.
	DeleteOrphanVote(ctx context.Context, voteID string) error

	// CompletePoll persists the active→completed transition once the end
	// date has passed. Idempotent; a no-op unless the stored status is
	// still active.
	CompletePoll(ctx context.Context, pollID string, now time.Time) error
}
