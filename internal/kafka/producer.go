package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-dispatch/internal/config"
	"ms-dispatch/internal/models"
)

// Producer streams token lifecycle events, one writer per topic.
type Producer struct {
	writers map[string]*kafka.Writer
}

// NewProducer creates writers for every token topic.
func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}

	return &Producer{
		writers: map[string]*kafka.Writer{
			models.TokenEventCreated: newWriter(topics.TokenCreated),
			models.TokenEventUpdated: newWriter(topics.TokenUpdated),
			models.TokenEventDeleted: newWriter(topics.TokenDeleted),
			models.TokenEventLoaded:  newWriter(topics.TokenLoaded),
		},
	}
}

// PublishTokenEvent streams a token lifecycle event to its topic. Keyed by
// operator so one operator's events stay ordered within a partition.
func (p *Producer) PublishTokenEvent(action string, token models.Token) error {
	writer, ok := p.writers[action]
	if !ok {
		return fmt.Errorf("no topic configured for action %q", action)
	}

	event := models.TokenEvent{
		Action:     action,
		Token:      token,
		OperatorID: token.OperatorID,
		OccurredAt: time.Now(),
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(token.OperatorID),
			Value: msgBytes,
		},
	)
}

// Close shuts down every topic writer.
func (p *Producer) Close() error {
	var firstErr error
	for _, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
