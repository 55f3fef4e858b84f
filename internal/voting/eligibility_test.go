package voting_test

import (
	"testing"
	"time"

	"voting-service/internal/models"
	"voting-service/internal/voting"

	"github.com/stretchr/testify/assert"
)

func activePoll(start, end time.Time, quota int) *models.Poll {
	return &models.Poll{
		ID:              "poll-1",
		Status:          models.PollStatusActive,
		StartDate:       start,
		EndDate:         end,
		MaxVotesPerUser: quota,
		IsPublic:        true,
	}
}

func TestCanVote(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		poll       *models.Poll
		priorVotes int
		allowed    bool
		reason     string
	}{
		{
			name:    "active poll, no prior votes",
			poll:    activePoll(now.Add(-time.Hour), now.Add(time.Hour), 1),
			allowed: true,
		},
		{
			name:   "poll not started yet",
			poll:   activePoll(now.Add(time.Hour), now.Add(2*time.Hour), 1),
			reason: "poll not active",
		},
		{
			name:   "poll already ended",
			poll:   activePoll(now.Add(-2*time.Hour), now.Add(-time.Hour), 1),
			reason: "poll not active",
		},
		{
			name: "inactive poll",
			poll: &models.Poll{
				Status:          models.PollStatusInactive,
				StartDate:       now.Add(-time.Hour),
				EndDate:         now.Add(time.Hour),
				MaxVotesPerUser: 1,
			},
			reason: "poll not active",
		},
		{
			name: "cancelled poll",
			poll: &models.Poll{
				Status:          models.PollStatusCancelled,
				StartDate:       now.Add(-time.Hour),
				EndDate:         now.Add(time.Hour),
				MaxVotesPerUser: 1,
			},
			reason: "poll not active",
		},
		{
			name:       "quota reached",
			poll:       activePoll(now.Add(-time.Hour), now.Add(time.Hour), 1),
			priorVotes: 1,
			reason:     "maximum votes per user reached (1)",
		},
		{
			name:       "multi-vote quota not yet reached",
			poll:       activePoll(now.Add(-time.Hour), now.Add(time.Hour), 3),
			priorVotes: 2,
			allowed:    true,
		},
		{
			name:       "multi-vote quota reached",
			poll:       activePoll(now.Add(-time.Hour), now.Add(time.Hour), 3),
			priorVotes: 3,
			reason:     "maximum votes per user reached (3)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := voting.CanVote(tt.poll, now, tt.priorVotes)
			assert.Equal(t, tt.allowed, decision.Allowed)
			assert.Equal(t, tt.reason, decision.Reason)
		})
	}
}

func TestCanVoteWindowTakesPriorityOverQuota(t *testing.T) {
	now := time.Now()
	poll := activePoll(now.Add(-2*time.Hour), now.Add(-time.Hour), 1)

	// Rules are evaluated in order; the window failure wins even though
	// the quota is also exhausted.
	decision := voting.CanVote(poll, now, 5)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "poll not active", decision.Reason)
}

func TestCanView(t *testing.T) {
	public := &models.Poll{IsPublic: true, CreatorID: "owner"}
	private := &models.Poll{IsPublic: false, CreatorID: "owner"}

	assert.True(t, voting.CanView(public, "stranger", false))
	assert.False(t, voting.CanView(private, "stranger", false))
	assert.True(t, voting.CanView(private, "owner", false))
	assert.True(t, voting.CanView(private, "stranger", true))
}
