package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/akoskissak/soa-team-5/internal/saga"
	"github.com/akoskissak/soa-team-5/pkg/kafka"
	"github.com/akoskissak/soa-team-5/pkg/mylogger"
	"go.uber.org/zap"
)

// Consumer feeds debit replies from the ledger into the saga coordinator.
type Consumer struct {
	coordinator *saga.Coordinator
	logger      *zap.Logger
}

func NewConsumer(coordinator *saga.Coordinator, logger *zap.Logger) *Consumer {
	return &Consumer{
		coordinator: coordinator,
		logger:      logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string, groupID string, replyTopic string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		[]string{replyTopic},
		c.processMessage,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var reply domain.DebitReply
	if err := json.Unmarshal(msg.Value, &reply); err != nil {
		// Malformed replies are dropped so the claim can advance.
		mylogger.Error(
			ctx,
			c.logger,
			"Failed to unmarshal debit reply, dropping",
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)

		return nil
	}

	if reply.UserID == "" {
		mylogger.Warn(ctx, c.logger, "Debit reply without userId, dropping")

		return nil
	}

	mylogger.Info(
		ctx,
		c.logger,
		"Processing debit reply",
		zap.String("tourist_id", reply.UserID),
		zap.String("status", reply.Status),
	)

	return c.coordinator.HandleDebitReply(ctx, reply)
}
