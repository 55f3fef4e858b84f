package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"voting-service/internal/notifier"

	"github.com/redis/go-redis/v9"
)

// Hub fans poll events out to websocket clients. Clients subscribe to the
// polls they watch; events arrive over the Redis channel the notifier
// publishes on, so every instance of the service sees every event.
type Hub struct {
	clients     map[*Client]bool
	pollClients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan notifier.Event

	redisClient *redis.Client
	pubsub      *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[*Client]bool),
		pollClients: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan notifier.Event, 64),
		redisClient: redisClient,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (h *Hub) Run() {
	if h.redisClient != nil {
		h.pubsub = h.redisClient.Subscribe(h.ctx, notifier.PollEventsChannel)
		go h.consumeRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.fanOut(event)
		case <-h.ctx.Done():
			slog.Info("websocket hub shutting down")
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}

// Broadcast queues an event for fan-out; drops it when the hub is backed
// up rather than blocking the caller.
func (h *Hub) Broadcast(event notifier.Event) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("hub broadcast queue full, dropping event", "pollID", event.PollID)
	}
}

func (h *Hub) consumeRedis() {
	for msg := range h.pubsub.Channel() {
		var event notifier.Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			slog.Warn("skipping malformed poll event", "error", err)
			continue
		}
		h.Broadcast(event)
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	slog.Info("websocket client connected", "userID", client.userID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for pollID := range client.polls {
		delete(h.pollClients[pollID], client)
		if len(h.pollClients[pollID]) == 0 {
			delete(h.pollClients, pollID)
		}
	}
	close(client.send)
	slog.Info("websocket client disconnected", "userID", client.userID)
}

// SubscribePoll registers the client's interest in one poll's events.
func (h *Hub) SubscribePoll(client *Client, pollID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pollClients[pollID] == nil {
		h.pollClients[pollID] = make(map[*Client]bool)
	}
	h.pollClients[pollID][client] = true
	client.polls[pollID] = true
}

func (h *Hub) UnsubscribePoll(client *Client, pollID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pollClients[pollID], client)
	delete(client.polls, pollID)
	if len(h.pollClients[pollID]) == 0 {
		delete(h.pollClients, pollID)
	}
}

func (h *Hub) fanOut(event notifier.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event for fan-out", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.pollClients[event.PollID] {
		select {
		case client.send <- payload:
		default:
			// Slow consumer; skip rather than stall the hub.
		}
	}
}
