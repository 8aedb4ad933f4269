package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/IBM/sarama"

	"registration-gateway/internal/models"
)

// CatalogConsumer keeps the local event mirror in sync with the events
// service by consuming its catalog topic.
type CatalogConsumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
}

func NewCatalogConsumer(brokers []string, groupID string) (*CatalogConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	topics := []string{"event-catalog"}

	return &CatalogConsumer{
		consumer: consumer,
		topics:   topics,
	}, nil
}

func (c *CatalogConsumer) ConsumeEvents(ctx context.Context, handler func(*models.EventUpsert) error) error {
	consumerHandler := &CatalogConsumerHandler{Handler: handler}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.consumer.Consume(ctx, c.topics, consumerHandler); err != nil {
				log.Printf("Error consuming messages: %v", err)
				return err
			}
		}
	}
}

func (c *CatalogConsumer) Close() error {
	return c.consumer.Close()
}

// CatalogConsumerHandler is exported so tests can drive ConsumeClaim with a
// mocked session and claim.
type CatalogConsumerHandler struct {
	Handler func(*models.EventUpsert) error
}

func (h *CatalogConsumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *CatalogConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *CatalogConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var upsert models.EventUpsert
		if err := json.Unmarshal(message.Value, &upsert); err != nil {
			log.Printf("Failed to unmarshal catalog message: %v", err)
			continue
		}

		if err := h.Handler(&upsert); err != nil {
			log.Printf("Failed to handle catalog event: %v", err)
			continue
		}

		session.MarkMessage(message, "")
	}

	return nil
}
