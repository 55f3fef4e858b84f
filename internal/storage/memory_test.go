package storage_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"voting-service/internal/models"
	"voting-service/internal/storage"
	"voting-service/internal/voting"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPoll(t *testing.T, store *storage.MemoryStore) *models.Poll {
	t.Helper()
	p := &models.Poll{
		ID:        "p1",
		Title:     "color of the year",
		CreatorID: "creator",
		Options: []models.Option{
			{ID: 1, PollID: "p1", Index: 0, Text: "Red"},
			{ID: 2, PollID: "p1", Index: 1, Text: "Blue"},
		},
		StartDate:       time.Now().Add(-time.Hour),
		EndDate:         time.Now().Add(time.Hour),
		Status:          models.PollStatusActive,
		IsPublic:        true,
		MaxVotesPerUser: 1,
	}
	require.NoError(t, store.Create(context.Background(), p))
	return p
}

func TestGetPollReturnsIsolatedCopy(t *testing.T) {
	store := storage.NewMemoryStore()
	seedPoll(t, store)

	got, err := store.GetPoll(context.Background(), "p1")
	require.NoError(t, err)

	got.Title = "mutated"
	got.Options[0].Votes = 99

	fresh, err := store.GetPoll(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "color of the year", fresh.Title)
	assert.Equal(t, 0, fresh.Options[0].Votes)
}

func TestGetPollNotFound(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.GetPoll(context.Background(), "missing")
	assert.ErrorIs(t, err, voting.ErrPollNotFound)
}

func TestUpdatePollDiscardsOnError(t *testing.T) {
	store := storage.NewMemoryStore()
	seedPoll(t, store)
	boom := errors.New("boom")

	err := store.UpdatePoll(context.Background(), "p1", func(tx voting.Tx) error {
		rec := models.VoterRecord{OptionID: 1, UserID: "u1", VotedAt: time.Now()}
		require.NoError(t, tx.AddVote(0, rec, true))
		require.NoError(t, tx.AppendVote(&models.Vote{ID: "v1", PollID: "p1", UserID: "u1"}))
		require.NoError(t, tx.RecordHistory("u1", time.Now()))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := store.GetPoll(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.TotalVotes)
	assert.Equal(t, 0, p.Options[0].Votes)

	_, err = store.GetVote(context.Background(), "v1")
	assert.ErrorIs(t, err, voting.ErrVoteNotFound)
	assert.Empty(t, store.UserHistory("u1"))
}

func TestUpdatePollCommitsStagedChanges(t *testing.T) {
	store := storage.NewMemoryStore()
	seedPoll(t, store)
	votedAt := time.Now()

	err := store.UpdatePoll(context.Background(), "p1", func(tx voting.Tx) error {
		rec := models.VoterRecord{OptionID: 1, UserID: "u1", VotedAt: votedAt}
		if err := tx.AddVote(0, rec, true); err != nil {
			return err
		}
		if err := tx.AppendVote(&models.Vote{ID: "v1", PollID: "p1", UserID: "u1", OptionIndex: 0}); err != nil {
			return err
		}
		return tx.RecordHistory("u1", votedAt)
	})
	require.NoError(t, err)

	p, err := store.GetPoll(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalVotes)
	assert.Equal(t, 1, p.UniqueVoters)
	assert.Equal(t, 1, p.Options[0].Votes)

	v, err := store.GetVote(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "u1", v.UserID)

	history := store.UserHistory("u1")
	require.Len(t, history, 1)
	assert.Equal(t, "p1", history[0].PollID)
}

func TestCompletePollOnlyPastEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	p := seedPoll(t, store)

	require.NoError(t, store.CompletePoll(context.Background(), "p1", time.Now()))
	got, err := store.GetPoll(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusActive, got.Status, "no transition before the end date")

	require.NoError(t, store.CompletePoll(context.Background(), "p1", p.EndDate.Add(time.Minute)))
	got, err = store.GetPoll(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusCompleted, got.Status)

	// Idempotent on a second call.
	require.NoError(t, store.CompletePoll(context.Background(), "p1", p.EndDate.Add(2*time.Minute)))
	got, err = store.GetPoll(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusCompleted, got.Status)
}

func TestDeleteVoteMissingAbortsUnit(t *testing.T) {
	store := storage.NewMemoryStore()
	seedPoll(t, store)

	for user, vote := range map[string]string{"u1": "v1", "u2": "v2"} {
		err := store.UpdatePoll(context.Background(), "p1", func(tx voting.Tx) error {
			rec := models.VoterRecord{OptionID: 1, UserID: user, VotedAt: time.Now()}
			if err := tx.AddVote(0, rec, true); err != nil {
				return err
			}
			return tx.AppendVote(&models.Vote{ID: vote, PollID: "p1", UserID: user, OptionIndex: 0})
		})
		require.NoError(t, err)
	}

	retractV1 := func(tx voting.Tx) error {
		if err := tx.RemoveVote(0, "u1", true); err != nil {
			return err
		}
		return tx.DeleteVote("v1")
	}
	require.NoError(t, store.UpdatePoll(context.Background(), "p1", retractV1))

	// Replaying the unit fails on the missing ledger entry and must not
	// commit the staged counter reversal.
	err := store.UpdatePoll(context.Background(), "p1", retractV1)
	assert.ErrorIs(t, err, voting.ErrVoteNotFound)

	p, err := store.GetPoll(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalVotes)
	assert.Equal(t, 1, p.UniqueVoters)
	assert.Equal(t, 1, p.Options[0].Votes)
}

func TestGetPollSnapshotConsistency(t *testing.T) {
	store := storage.NewMemoryStore()
	seedPoll(t, store)

	const casts = 64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < casts; i++ {
			userID := fmt.Sprintf("user-%d", i)
			err := store.UpdatePoll(context.Background(), "p1", func(tx voting.Tx) error {
				rec := models.VoterRecord{OptionID: uint(i%2 + 1), UserID: userID, VotedAt: time.Now()}
				if err := tx.AddVote(i%2, rec, true); err != nil {
					return err
				}
				return tx.AppendVote(&models.Vote{ID: userID, PollID: "p1", UserID: userID, OptionIndex: i % 2})
			})
			assert.NoError(t, err)
		}
	}()

	// Readers racing the writer must never observe counters from two
	// different committed states.
	for {
		p, err := store.GetPoll(context.Background(), "p1")
		require.NoError(t, err)
		sum := 0
		for i := range p.Options {
			sum += p.Options[i].Votes
		}
		require.Equal(t, p.TotalVotes, sum)
		require.Equal(t, p.UniqueVoters, len(p.Voters))

		select {
		case <-done:
			final, err := store.GetPoll(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, casts, final.TotalVotes)
			return
		default:
		}
	}
}

func TestDeleteOrphanVote(t *testing.T) {
	store := storage.NewMemoryStore()
	seedPoll(t, store)

	err := store.UpdatePoll(context.Background(), "p1", func(tx voting.Tx) error {
		return tx.AppendVote(&models.Vote{ID: "v1", PollID: "p1", UserID: "u1"})
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteOrphanVote(context.Background(), "v1"))
	_, err = store.GetVote(context.Background(), "v1")
	assert.ErrorIs(t, err, voting.ErrVoteNotFound)

	err = store.DeleteOrphanVote(context.Background(), "v1")
	assert.ErrorIs(t, err, voting.ErrVoteNotFound)
}
