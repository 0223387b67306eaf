package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"ms-dispatch/internal/models"
)

type Consumer struct {
	readers []*kafka.Reader
}

// NewConsumer creates a Kafka consumer over the given token topics.
func NewConsumer(brokers []string, topics []string, groupID string) *Consumer {
	readers := make([]*kafka.Reader, 0, len(topics))
	for _, topic := range topics {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		}))
	}
	return &Consumer{readers: readers}
}

// Start begins consuming token events from every topic. Blocks per topic,
// so it spawns one goroutine per reader and returns.
func (c *Consumer) Start(ctx context.Context, handler func(event models.TokenEvent)) {
	for _, reader := range c.readers {
		go func(r *kafka.Reader) {
			for {
				msg, err := r.ReadMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("kafka: error reading message: %v", err)
					continue
				}

				var event models.TokenEvent
				if err := json.Unmarshal(msg.Value, &event); err != nil {
					log.Printf("kafka: failed to unmarshal token event: %v", err)
					continue
				}

				handler(event)
			}
		}(reader)
	}
}

// Close gracefully shuts down every Kafka reader
func (c *Consumer) Close() error {
	var firstErr error
	for _, reader := range c.readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
