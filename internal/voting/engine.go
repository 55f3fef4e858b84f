package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"voting-service/internal/models"
	"voting-service/internal/notifier"

	"github.com/google/uuid"
)

const (
	defaultStoreTimeout    = 5 * time.Second
	defaultConflictRetries = 3
)

// Engine is the voting core: it decides whether a vote is admissible,
// applies it to the poll aggregate and the ledger as one atomic unit per
// poll, and propagates the change to subscribers outside that unit.
type Engine struct {
	store           Store
	notifier        notifier.Notifier
	storeTimeout    time.Duration
	conflictRetries int
}

func NewEngine(store Store, n notifier.Notifier) *Engine {
	if n == nil {
		n = notifier.Noop{}
	}
	return &Engine{
		store:           store,
		notifier:        n,
		storeTimeout:    defaultStoreTimeout,
		conflictRetries: defaultConflictRetries,
	}
}

// CastOptions carries the optional parts of a cast: an anonymity override
// and advisory client metadata.
type CastOptions struct {
	Anonymous *bool
	IPAddress string
	UserAgent string
}

// CastVote validates eligibility and, inside the poll's serialization
// point, applies the vote to the aggregate, appends the ledger entry and
// records user history. Notification happens after commit and never fails
// the cast.
func (e *Engine) CastVote(ctx context.Context, pollID, userID string, optionIndex int, opts CastOptions) (*models.VoteReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	var (
		receipt *models.VoteReceipt
		event   notifier.Event
	)

	apply := func(tx Tx) error {
		poll := tx.Poll()
		now := time.Now()

		prior, err := tx.CountUserVotes(userID, "")
		if err != nil {
			return fmt.Errorf("failed to count prior votes: %w", err)
		}
		if decision := CanVote(poll, now, prior); !decision.Allowed {
			return &IneligibleError{Reason: decision.Reason}
		}
		if optionIndex < 0 || optionIndex >= len(poll.Options) {
			return ErrInvalidOption
		}
		option := &poll.Options[optionIndex]

		anonymous := poll.AnonymousVoting
		if opts.Anonymous != nil {
			anonymous = *opts.Anonymous
		}

		firstForUser := !poll.HasVoted(userID)
		record := models.VoterRecord{OptionID: option.ID, UserID: userID, VotedAt: now}
		if err := tx.AddVote(optionIndex, record, firstForUser); err != nil {
			return fmt.Errorf("failed to apply vote to aggregate: %w", err)
		}

		vote := &models.Vote{
			ID:          uuid.New().String(),
			PollID:      poll.ID,
			UserID:      userID,
			OptionIndex: optionIndex,
			OptionText:  option.Text,
			IsAnonymous: anonymous,
			CastAt:      now,
			IPAddress:   opts.IPAddress,
			UserAgent:   opts.UserAgent,
		}
		if err := tx.AppendVote(vote); err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
		if err := tx.RecordHistory(userID, now); err != nil {
			return fmt.Errorf("failed to record vote history: %w", err)
		}

		receipt = &models.VoteReceipt{
			VoteID:      vote.ID,
			PollID:      poll.ID,
			OptionIndex: optionIndex,
			OptionText:  vote.OptionText,
			CastAt:      now,
		}
		event = notifier.Event{
			Type:         notifier.EventVoteCast,
			PollID:       poll.ID,
			VoteID:       vote.ID,
			OptionIndex:  optionIndex,
			TotalVotes:   poll.TotalVotes,
			UniqueVoters: poll.UniqueVoters,
			Timestamp:    now,
		}
		if !anonymous {
			event.UserID = userID
		}
		return nil
	}

	if err := e.updateWithRetry(ctx, pollID, apply); err != nil {
		return nil, err
	}

	e.emit(event)
	return receipt, nil
}

// RetractVote removes a previously accepted vote and reverses its
// aggregate effects. When the referenced poll is gone the orphaned ledger
// entry is still deleted, with no aggregate to adjust.
func (e *Engine) RetractVote(ctx context.Context, voteID string) error {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	vote, err := e.store.GetVote(ctx, voteID)
	if err != nil {
		return err
	}

	if _, err := e.store.GetPoll(ctx, vote.PollID); err != nil {
		if errors.Is(err, ErrPollNotFound) {
			slog.Warn("retracting orphaned vote", "voteID", voteID, "pollID", vote.PollID)
			return e.store.DeleteOrphanVote(ctx, voteID)
		}
		return err
	}

	var event notifier.Event

	apply := func(tx Tx) error {
		poll := tx.Poll()

		remaining, err := tx.CountUserVotes(vote.UserID, vote.ID)
		if err != nil {
			return fmt.Errorf("failed to count remaining votes: %w", err)
		}
		lastForUser := remaining == 0

		if err := tx.RemoveVote(vote.OptionIndex, vote.UserID, lastForUser); err != nil {
			return fmt.Errorf("failed to reverse aggregate: %w", err)
		}
		if lastForUser {
			if err := tx.RemoveHistory(vote.UserID); err != nil {
				return fmt.Errorf("failed to remove vote history: %w", err)
			}
		}
		if err := tx.DeleteVote(vote.ID); err != nil {
			return fmt.Errorf("failed to delete ledger entry: %w", err)
		}

		event = notifier.Event{
			Type:         notifier.EventVoteRetracted,
			PollID:       poll.ID,
			VoteID:       vote.ID,
			OptionIndex:  vote.OptionIndex,
			TotalVotes:   poll.TotalVotes,
			UniqueVoters: poll.UniqueVoters,
			Timestamp:    time.Now(),
		}
		return nil
	}

	if err := e.updateWithRetry(ctx, vote.PollID, apply); err != nil {
		return err
	}

	e.emit(event)
	return nil
}

// GetResults returns the current tally with per-option percentages rounded
// to two decimals, zero when the poll has no votes.
func (e *Engine) GetResults(ctx context.Context, pollID string) (*models.PollResults, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	poll, err := e.loadPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	results := &models.PollResults{
		PollID:          poll.ID,
		TotalVotes:      poll.TotalVotes,
		UniqueVoters:    poll.UniqueVoters,
		Options:         make([]models.OptionResult, 0, len(poll.Options)),
		EffectiveStatus: poll.EffectiveStatus(time.Now()),
	}
	for i := range poll.Options {
		opt := &poll.Options[i]
		results.Options = append(results.Options, models.OptionResult{
			Index:      opt.Index,
			Text:       opt.Text,
			Votes:      opt.Votes,
			Percentage: percentage(opt.Votes, poll.TotalVotes),
		})
	}
	return results, nil
}

// CanUserVote exposes the eligibility policy for pre-flight UI checks.
func (e *Engine) CanUserVote(ctx context.Context, pollID, userID string) (models.EligibilityResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	poll, err := e.loadPoll(ctx, pollID)
	if err != nil {
		return models.EligibilityResponse{}, err
	}
	prior, err := e.store.CountUserVotes(ctx, pollID, userID)
	if err != nil {
		return models.EligibilityResponse{}, fmt.Errorf("failed to count prior votes: %w", err)
	}
	decision := CanVote(poll, time.Now(), prior)
	return models.EligibilityResponse{Allowed: decision.Allowed, Reason: decision.Reason}, nil
}

// loadPoll reads the poll and persists the active→completed transition
// once the window has passed. The write is idempotent and emits no event.
func (e *Engine) loadPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	poll, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if poll.Status == models.PollStatusActive && !now.Before(poll.EndDate) {
		if err := e.store.CompletePoll(ctx, pollID, now); err != nil {
			slog.Warn("failed to persist poll completion", "pollID", pollID, "error", err)
		}
	}
	return poll, nil
}

func (e *Engine) updateWithRetry(ctx context.Context, pollID string, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; attempt <= e.conflictRetries; attempt++ {
		err = e.store.UpdatePoll(ctx, pollID, fn)
		if !errors.Is(err, ErrStorageConflict) {
			return err
		}
		slog.Debug("storage conflict, retrying", "pollID", pollID, "attempt", attempt+1)
	}
	return err
}

// emit delivers a change event on its own bounded context so a slow or
// dead broker cannot fail an already-committed operation.
func (e *Engine) emit(event notifier.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.storeTimeout)
	defer cancel()
	if err := e.notifier.Emit(ctx, event); err != nil {
		slog.Warn("change notification failed", "type", event.Type, "pollID", event.PollID, "error", err)
	}
}

func percentage(votes, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(total)*10000) / 100
}
