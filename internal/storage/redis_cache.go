package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"voting-service/internal/notifier"

	"github.com/redis/go-redis/v9"
)

const tallyTTL = 24 * time.Hour

// ResultsCache keeps hot-poll tallies in Redis hashes, fed by the analytics
// projector from vote events. It is an eventually consistent read-side
// convenience; the engine's invariant paths never consult it.
type ResultsCache struct {
	client *redis.Client
}

func NewResultsCache(client *redis.Client) *ResultsCache {
	return &ResultsCache{client: client}
}

func tallyKey(pollID string) string {
	return fmt.Sprintf("poll:%s:tally", pollID)
}

// ApplyEvent projects one vote event into the cached tally.
func (c *ResultsCache) ApplyEvent(ctx context.Context, event notifier.Event) error {
	key := tallyKey(event.PollID)

	switch event.Type {
	case notifier.EventPollDeleted:
		return c.client.Del(ctx, key).Err()
	case notifier.EventVoteCast, notifier.EventVoteRetracted:
	default:
		return nil
	}

	delta := int64(1)
	if event.Type == notifier.EventVoteRetracted {
		delta = -1
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"total_votes":   event.TotalVotes,
		"unique_voters": event.UniqueVoters,
		"updated_at":    event.Timestamp.Unix(),
	})
	pipe.HIncrBy(ctx, key, fmt.Sprintf("option:%d", event.OptionIndex), delta)
	pipe.Expire(ctx, key, tallyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("failed to project event into tally cache", "pollID", event.PollID, "error", err)
		return err
	}
	return nil
}

// Tally is the cached view of one poll's counters.
type Tally struct {
	TotalVotes   int
	UniqueVoters int
	OptionVotes  map[int]int
	UpdatedAt    time.Time
}

// GetTally returns the cached tally, or nil when the poll has no cached
// entry yet.
func (c *ResultsCache) GetTally(ctx context.Context, pollID string) (*Tally, error) {
	fields, err := c.client.HGetAll(ctx, tallyKey(pollID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tally: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	t := &Tally{OptionVotes: make(map[int]int)}
	for field, raw := range fields {
		value, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		switch field {
		case "total_votes":
			t.TotalVotes = value
		case "unique_voters":
			t.UniqueVoters = value
		case "updated_at":
			t.UpdatedAt = time.Unix(int64(value), 0)
		default:
			var idx int
			if _, err := fmt.Sscanf(field, "option:%d", &idx); err == nil {
				t.OptionVotes[idx] = value
			}
		}
	}
	return t, nil
}
