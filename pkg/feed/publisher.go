// Package feed publishes executed trades to Kafka for downstream consumers.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
)

// Publisher writes trade events as JSON messages keyed by symbol, so one
// symbol's trades stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		log: log,
	}
}

// PublishTrade sends one trade. Errors are returned, not retried; the feed
// is an audit stream, not part of the settlement path.
func (p *Publisher) PublishTrade(ctx context.Context, t orderbook.Trade) error {
	value, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trade %d: %w", t.ID, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.Symbol),
		Value: value,
		Headers: []kafka.Header{
			{Key: "trade-id", Value: []byte(strconv.FormatUint(t.ID, 10))},
		},
	})
}

// Publish is a fire-and-forget wrapper for hook wiring; failures are logged.
func (p *Publisher) Publish(t orderbook.Trade) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.PublishTrade(ctx, t); err != nil {
		p.log.Warnw("trade_publish_failed", "trade_id", t.ID, "err", err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
