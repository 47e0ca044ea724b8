package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/akoskissak/soa-team-5/internal/repository"
	"github.com/akoskissak/soa-team-5/internal/saga"
	"github.com/akoskissak/soa-team-5/pkg/mylogger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrEmptyCart = errors.New("shopping cart is empty")

type CheckoutService interface {
	// Checkout converts the tourist's cart into a provisional token batch
	// and drives the debit saga to a terminal outcome.
	Checkout(ctx context.Context, touristID string) ([]*domain.PurchaseToken, error)

	// History lists the tourist's purchase tokens.
	History(ctx context.Context, touristID string) ([]*domain.PurchaseToken, error)
}

type checkoutService struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	cartRepo    repository.CartRepository
	tokenRepo   repository.TokenRepository
	coordinator *saga.Coordinator
	tracer      trace.Tracer
}

func NewCheckoutService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	cartRepo repository.CartRepository,
	tokenRepo repository.TokenRepository,
	coordinator *saga.Coordinator,
) CheckoutService {
	return &checkoutService{
		pool:        pool,
		logger:      logger,
		cartRepo:    cartRepo,
		tokenRepo:   tokenRepo,
		coordinator: coordinator,
		tracer:      otel.Tracer("checkout_service"),
	}
}

func (s *checkoutService) Checkout(ctx context.Context, touristID string) ([]*domain.PurchaseToken, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.Checkout")
	defer span.End()

	span.SetAttributes(
		attribute.String("tourist_id", touristID),
	)

	cart, err := s.cartRepo.GetByTourist(ctx, touristID)
	if err != nil {
		return nil, err
	}

	if len(cart.Items) == 0 {
		mylogger.Warn(ctx, s.logger, "Checkout on empty cart", zap.String("tourist_id", touristID))

		return nil, ErrEmptyCart
	}

	tokens := make([]*domain.PurchaseToken, 0, len(cart.Items))
	for _, item := range cart.Items {
		tokens = append(tokens, &domain.PurchaseToken{
			Token:     uuid.NewString(),
			TourID:    item.TourID,
			TouristID: touristID,
			TourName:  item.TourName,
			Price:     item.Price,
		})
	}

	if err := s.createBatch(ctx, tokens); err != nil {
		return nil, err
	}

	finalized, err := s.coordinator.InitiateCheckout(ctx, touristID, tokens)
	if err != nil {
		if errors.Is(err, saga.ErrCheckoutInProgress) {
			// A rejected checkout never registered this batch; remove it so
			// the rejection leaves no tokens behind.
			cleanupCtx := context.WithoutCancel(ctx)
			if delErr := s.tokenRepo.DeleteBatch(cleanupCtx, domain.TokenIDs(tokens)); delErr != nil {
				mylogger.Error(
					cleanupCtx,
					s.logger,
					"Failed to delete token batch of rejected checkout",
					zap.String("tourist_id", touristID),
					zap.Int64s("token_ids", domain.TokenIDs(tokens)),
					zap.Error(delErr),
				)
			}
		}

		return nil, err
	}

	// The cart served its purpose; clearing it is best effort and must not
	// fail an already committed checkout.
	if err := s.clearCart(ctx, cart.ID); err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Failed to clear cart after checkout",
			zap.String("tourist_id", touristID),
			zap.Error(err),
		)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Checkout committed",
		zap.String("tourist_id", touristID),
		zap.Int("token_count", len(finalized)),
	)

	return finalized, nil
}

func (s *checkoutService) History(ctx context.Context, touristID string) ([]*domain.PurchaseToken, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.History")
	defer span.End()

	return s.tokenRepo.ListByTourist(ctx, touristID)
}

func (s *checkoutService) createBatch(ctx context.Context, tokens []*domain.PurchaseToken) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))

		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if err := s.tokenRepo.CreateBatch(ctx, tx, tokens); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))

		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *checkoutService) clearCart(ctx context.Context, cartID int64) error {
	cleanupCtx := context.WithoutCancel(ctx)

	tx, err := s.pool.Begin(cleanupCtx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(cleanupCtx, tx)

	if err := s.cartRepo.ClearItems(cleanupCtx, tx, cartID); err != nil {
		return err
	}

	return tx.Commit(cleanupCtx)
}

func (s *checkoutService) rollback(ctx context.Context, tx pgx.Tx) {
	cleanupCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		mylogger.Warn(
			cleanupCtx,
			s.logger,
			"Error rolling back transaction",
			zap.Error(err),
		)
	}
}
