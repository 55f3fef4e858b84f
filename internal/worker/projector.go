package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"voting-service/internal/notifier"
	"voting-service/internal/storage"

	"github.com/segmentio/kafka-go"
)

// Projector consumes vote events from Kafka and folds them into the Redis
// tally cache. It is a read-side projection: at-least-once delivery and a
// small lag are acceptable, so messages are committed after apply and
// malformed payloads are skipped with a log line.
type Projector struct {
	reader *kafka.Reader
	cache  *storage.ResultsCache
}

func NewProjector(brokers []string, topic, groupID string, cache *storage.ResultsCache) *Projector {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Projector{reader: reader, cache: cache}
}

// Run consumes until ctx is cancelled.
func (p *Projector) Run(ctx context.Context) error {
	slog.Info("tally projector started", "topic", p.reader.Config().Topic)
	for {
		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var event notifier.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Warn("skipping malformed event", "offset", msg.Offset, "error", err)
		} else if err := p.cache.ApplyEvent(ctx, event); err != nil {
			slog.Error("failed to apply event", "pollID", event.PollID, "error", err)
		}

		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			slog.Error("failed to commit offset", "offset", msg.Offset, "error", err)
		}
	}
}

func (p *Projector) Close() error {
	return p.reader.Close()
}
