package voting

import (
	"fmt"
	"time"

	"voting-service/internal/models"
)

// Decision is the outcome of an eligibility check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// CanVote evaluates the voting rules in order; the first failure wins.
// priorVotes is the number of accepted, non-retracted votes the user
// already holds in this poll. Pure function, safe to call concurrently.
func CanVote(poll *models.Poll, now time.Time, priorVotes int) Decision {
	if poll.EffectiveStatus(now) != models.PollStatusActive {
		return deny("poll not active")
	}
	if priorVotes >= poll.MaxVotesPerUser {
		return deny(fmt.Sprintf("maximum votes per user reached (%d)", poll.MaxVotesPerUser))
	}
	return allow()
}

// CanView reports whether the identity may see a poll at all. Private
// polls are visible to their owner and to admins; the HTTP layer enforces
// this, the check lives here for reuse.
func CanView(poll *models.Poll, userID string, isAdmin bool) bool {
	if poll.IsPublic {
		return true
	}
	return isAdmin || poll.CreatorID == userID
}
