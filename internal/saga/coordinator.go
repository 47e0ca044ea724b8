package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/akoskissak/soa-team-5/pkg/metrics"
	"github.com/akoskissak/soa-team-5/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DebitPublisher delivers a debit request to the balance ledger.
type DebitPublisher interface {
	PublishDebitRequest(ctx context.Context, req domain.DebitRequest) error
}

// TokenRemover deletes a token batch during compensation.
type TokenRemover interface {
	DeleteBatch(ctx context.Context, tokenIDs []int64) error
}

// Coordinator drives the checkout saga: it registers a pending entry per
// tourist, publishes the debit request and applies the terminal action
// (commit or compensate) exactly once when the reply, timeout or
// cancellation wins the race for the entry.
type Coordinator struct {
	registry  *registry
	publisher DebitPublisher
	tokens    TokenRemover
	logger    *zap.Logger
	metrics   *metrics.SagaMetrics
	timeout   time.Duration
	tracer    trace.Tracer
}

func NewCoordinator(
	publisher DebitPublisher,
	tokens TokenRemover,
	logger *zap.Logger,
	sagaMetrics *metrics.SagaMetrics,
	replyTimeout time.Duration,
) *Coordinator {
	return &Coordinator{
		registry:  newRegistry(),
		publisher: publisher,
		tokens:    tokens,
		logger:    logger,
		metrics:   sagaMetrics,
		timeout:   replyTimeout,
		tracer:    otel.Tracer("saga_coordinator"),
	}
}

// InitiateCheckout publishes a debit request for the given provisional token
// batch and blocks until the correlated reply arrives, the reply timeout
// elapses or ctx is cancelled. On success the finalized batch is returned;
// on a failed or timed-out debit the batch is deleted first.
func (c *Coordinator) InitiateCheckout(ctx context.Context, touristID string, tokens []*domain.PurchaseToken) ([]*domain.PurchaseToken, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.InitiateCheckout")
	defer span.End()

	if touristID == "" {
		return nil, errors.New("tourist id is required")
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyBatch
	}

	var total float64
	for _, token := range tokens {
		total += token.Price
	}

	span.SetAttributes(
		attribute.String("tourist_id", touristID),
		attribute.Int("batch_size", len(tokens)),
		attribute.Float64("amount", total),
	)

	entry := newPendingSaga(touristID, total, tokens)
	if !c.registry.insertIfAbsent(entry) {
		mylogger.Warn(
			ctx,
			c.logger,
			"Checkout rejected, saga already pending",
			zap.String("tourist_id", touristID),
		)

		return nil, ErrCheckoutInProgress
	}
	c.metrics.SagaStarted()

	req := domain.DebitRequest{
		UserID:  touristID,
		Amount:  total,
		Command: domain.CommandSubtract,
	}

	if err := c.publisher.PublishDebitRequest(ctx, req); err != nil {
		span.RecordError(err)

		// The saga never started remotely; unwind the local half.
		if _, ok := c.registry.remove(touristID); ok {
			if delErr := c.compensate(context.WithoutCancel(ctx), entry); delErr != nil {
				c.metrics.SagaFinished("compensation_failed")
				return nil, delErr
			}
			c.metrics.SagaFinished("aborted")
		}

		mylogger.Error(
			ctx,
			c.logger,
			"Failed to publish debit request",
			zap.String("tourist_id", touristID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("publish debit request: %w", err)
	}

	mylogger.Info(
		ctx,
		c.logger,
		"Debit request published, awaiting reply",
		zap.String("tourist_id", touristID),
		zap.Float64("amount", total),
	)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case out := <-entry.done:
		return out.tokens, out.err

	case <-timer.C:
		if _, ok := c.registry.remove(touristID); !ok {
			// A reply won the race; its resolution is already in flight.
			out := <-entry.done
			return out.tokens, out.err
		}

		mylogger.Warn(
			ctx,
			c.logger,
			"Checkout timed out, compensating",
			zap.String("tourist_id", touristID),
			zap.Duration("timeout", c.timeout),
		)

		// The delete must survive a caller disconnect racing the timer.
		if err := c.compensate(context.WithoutCancel(ctx), entry); err != nil {
			c.metrics.SagaFinished("compensation_failed")
			return nil, err
		}
		c.metrics.SagaFinished("expired")

		return nil, ErrCheckoutTimeout

	case <-ctx.Done():
		if _, ok := c.registry.remove(touristID); !ok {
			out := <-entry.done
			return out.tokens, out.err
		}
		c.metrics.SagaFinished("cancelled")

		// Tokens are left in place: the remote debit may still complete,
		// and the late reply for the removed entry is dropped either way.
		mylogger.Warn(
			ctx,
			c.logger,
			"Checkout cancelled by caller",
			zap.String("tourist_id", touristID),
		)

		return nil, fmt.Errorf("checkout cancelled: %w", ctx.Err())
	}
}

// HandleDebitReply is invoked once per inbound reply, concurrently with
// checkout calls. Replies for unknown tourists (already resolved, expired or
// cancelled sagas, duplicates) are dropped.
func (c *Coordinator) HandleDebitReply(ctx context.Context, reply domain.DebitReply) error {
	ctx, span := c.tracer.Start(ctx, "Coordinator.HandleDebitReply")
	defer span.End()

	span.SetAttributes(
		attribute.String("tourist_id", reply.UserID),
		attribute.String("status", reply.Status),
	)

	if reply.Status != domain.DebitStatusCompleted && reply.Status != domain.DebitStatusFailed {
		mylogger.Warn(
			ctx,
			c.logger,
			"Dropping debit reply with unknown status",
			zap.String("tourist_id", reply.UserID),
			zap.String("status", reply.Status),
		)

		return nil
	}

	entry, ok := c.registry.remove(reply.UserID)
	if !ok {
		mylogger.Info(
			ctx,
			c.logger,
			"No pending saga for debit reply, dropping",
			zap.String("tourist_id", reply.UserID),
			zap.String("status", reply.Status),
		)
		c.metrics.ReplyDropped()

		return nil
	}

	if reply.Status == domain.DebitStatusCompleted {
		c.metrics.SagaFinished("committed")

		mylogger.Info(
			ctx,
			c.logger,
			"Debit completed, checkout committed",
			zap.String("tourist_id", reply.UserID),
			zap.Float64("amount", reply.Amount),
		)

		entry.resolve(entry.tokens, nil)
		return nil
	}

	mylogger.Warn(
		ctx,
		c.logger,
		"Debit failed, compensating token batch",
		zap.String("tourist_id", reply.UserID),
		zap.Int64s("token_ids", domain.TokenIDs(entry.tokens)),
	)

	if err := c.compensate(ctx, entry); err != nil {
		c.metrics.SagaFinished("compensation_failed")
		entry.resolve(nil, err)
		return err
	}
	c.metrics.SagaFinished("compensated")

	entry.resolve(nil, ErrDebitFailed)
	return nil
}

// PendingSagas reports the number of in-flight checkouts.
func (c *Coordinator) PendingSagas() int {
	return c.registry.size()
}

func (c *Coordinator) compensate(ctx context.Context, entry *pendingSaga) error {
	tokenIDs := domain.TokenIDs(entry.tokens)

	if err := c.tokens.DeleteBatch(ctx, tokenIDs); err != nil {
		compErr := &CompensationError{
			TouristID: entry.touristID,
			TokenIDs:  tokenIDs,
			Err:       err,
		}

		mylogger.Error(
			ctx,
			c.logger,
			"COMPENSATION FAILED, orphaned provisional tokens",
			zap.String("tourist_id", entry.touristID),
			zap.Int64s("token_ids", tokenIDs),
			zap.Error(err),
		)

		return compErr
	}

	mylogger.Info(
		ctx,
		c.logger,
		"Token batch compensated",
		zap.String("tourist_id", entry.touristID),
		zap.Int64s("token_ids", tokenIDs),
	)

	return nil
}
