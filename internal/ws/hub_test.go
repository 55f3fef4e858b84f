package ws

import (
	"encoding/json"
	"testing"
	"time"

	"voting-service/internal/notifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID string) *Client {
	return &Client{
		send:   make(chan []byte, 8),
		userID: userID,
		polls:  make(map[string]bool),
	}
}

func receiveEvent(t *testing.T, c *Client) notifier.Event {
	t.Helper()
	select {
	case payload := <-c.send:
		var event notifier.Event
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return notifier.Event{}
	}
}

func TestFanOutReachesSubscribers(t *testing.T) {
	hub := NewHub(nil)
	watcher := newTestClient("watcher")
	other := newTestClient("other")

	hub.addClient(watcher)
	hub.addClient(other)
	hub.SubscribePoll(watcher, "p1")
	hub.SubscribePoll(other, "p2")

	hub.fanOut(notifier.Event{Type: notifier.EventVoteCast, PollID: "p1", TotalVotes: 3})

	got := receiveEvent(t, watcher)
	assert.Equal(t, notifier.EventVoteCast, got.Type)
	assert.Equal(t, "p1", got.PollID)
	assert.Equal(t, 3, got.TotalVotes)
	assert.Empty(t, other.send, "clients watching other polls see nothing")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	watcher := newTestClient("watcher")
	hub.addClient(watcher)
	hub.SubscribePoll(watcher, "p1")
	hub.UnsubscribePoll(watcher, "p1")

	hub.fanOut(notifier.Event{Type: notifier.EventVoteCast, PollID: "p1"})
	assert.Empty(t, watcher.send)
	assert.Empty(t, hub.pollClients, "empty poll buckets are pruned")
}

func TestRemoveClientCleansSubscriptions(t *testing.T) {
	hub := NewHub(nil)
	watcher := newTestClient("watcher")
	hub.addClient(watcher)
	hub.SubscribePoll(watcher, "p1")
	hub.SubscribePoll(watcher, "p2")

	hub.removeClient(watcher)

	assert.Empty(t, hub.clients)
	assert.Empty(t, hub.pollClients)
	_, open := <-watcher.send
	assert.False(t, open, "send channel is closed on removal")
}

func TestSlowConsumerIsSkipped(t *testing.T) {
	hub := NewHub(nil)
	slow := &Client{send: make(chan []byte), userID: "slow", polls: make(map[string]bool)}
	hub.addClient(slow)
	hub.SubscribePoll(slow, "p1")

	done := make(chan struct{})
	go func() {
		hub.fanOut(notifier.Event{Type: notifier.EventVoteCast, PollID: "p1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fan-out blocked on a slow consumer")
	}
}

func TestRunRegistersAndBroadcasts(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	watcher := newTestClient("watcher")
	hub.register <- watcher
	hub.SubscribePoll(watcher, "p1")

	hub.Broadcast(notifier.Event{Type: notifier.EventPollUpdated, PollID: "p1"})

	got := receiveEvent(t, watcher)
	assert.Equal(t, notifier.EventPollUpdated, got.Type)
}
