package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/akoskissak/soa-team-5/internal/domain"
	outboxDomain "github.com/akoskissak/soa-team-5/pkg/outbox/domain"
	"github.com/akoskissak/soa-team-5/pkg/outbox/worker"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DebitRequestPublisher hands debit requests to the transactional outbox;
// the outbox worker ships them to the broker with at-least-once delivery.
type DebitRequestPublisher struct {
	pool       *pgxpool.Pool
	outboxRepo worker.OutboxRepository
	topic      string
	logger     *zap.Logger
}

func NewDebitRequestPublisher(
	pool *pgxpool.Pool,
	outboxRepo worker.OutboxRepository,
	topic string,
	logger *zap.Logger,
) *DebitRequestPublisher {
	return &DebitRequestPublisher{
		pool:       pool,
		outboxRepo: outboxRepo,
		topic:      topic,
		logger:     logger,
	}
}

func (p *DebitRequestPublisher) PublishDebitRequest(ctx context.Context, req domain.DebitRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal debit request: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			p.logger.Warn("Error rolling back transaction", zap.Error(err))
		}
	}()

	event := &outboxDomain.OutboxEvent{
		AggregateType: "PurchaseSaga",
		AggregateID:   req.UserID,
		EventType:     "DebitRequested",
		Payload:       payload,
		Topic:         p.topic,
	}

	if err := p.outboxRepo.SaveOutboxEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return tx.Commit(ctx)
}
