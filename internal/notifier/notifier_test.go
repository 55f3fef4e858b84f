package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recording struct {
	events []Event
	err    error
}

func (r *recording) Emit(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestMultiDeliversToAllMembers(t *testing.T) {
	first := &recording{}
	second := &recording{}
	m := Multi{first, second}

	event := Event{Type: EventVoteCast, PollID: "p1", TotalVotes: 1, Timestamp: time.Now()}
	require.NoError(t, m.Emit(context.Background(), event))

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, "p1", first.events[0].PollID)
}

func TestMultiContinuesPastFailures(t *testing.T) {
	failing := &recording{err: errors.New("broker down")}
	healthy := &recording{}
	m := Multi{failing, healthy}

	err := m.Emit(context.Background(), Event{Type: EventVoteRetracted, PollID: "p1"})
	require.NoError(t, err, "a dead member never blocks the rest")
	assert.Len(t, healthy.events, 1)
}

func TestNoopEmit(t *testing.T) {
	assert.NoError(t, Noop{}.Emit(context.Background(), Event{Type: EventPollUpdated}))
}
