package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/akoskissak/soa-team-5/internal/repository"
	"github.com/akoskissak/soa-team-5/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CartService interface {
	CreateCart(ctx context.Context, touristID string) (*domain.ShoppingCart, error)
	GetCart(ctx context.Context, touristID string) (*domain.ShoppingCart, error)
	AddItem(ctx context.Context, touristID string, item domain.OrderItem) (*domain.ShoppingCart, error)
	RemoveItem(ctx context.Context, touristID string, itemID int64) (*domain.ShoppingCart, error)
}

type cartService struct {
	pool     *pgxpool.Pool
	logger   *zap.Logger
	cartRepo repository.CartRepository
	tracer   trace.Tracer
}

func NewCartService(pool *pgxpool.Pool, logger *zap.Logger, cartRepo repository.CartRepository) CartService {
	return &cartService{
		pool:     pool,
		logger:   logger,
		cartRepo: cartRepo,
		tracer:   otel.Tracer("cart_service"),
	}
}

func (s *cartService) CreateCart(ctx context.Context, touristID string) (*domain.ShoppingCart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.CreateCart")
	defer span.End()

	return s.cartRepo.GetOrCreate(ctx, touristID)
}

func (s *cartService) GetCart(ctx context.Context, touristID string) (*domain.ShoppingCart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.GetCart")
	defer span.End()

	return s.cartRepo.GetByTourist(ctx, touristID)
}

func (s *cartService) AddItem(ctx context.Context, touristID string, item domain.OrderItem) (*domain.ShoppingCart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.AddItem")
	defer span.End()

	cart, err := s.cartRepo.GetByTourist(ctx, touristID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))

		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if err := s.cartRepo.AddItem(ctx, tx, cart.ID, &item); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))

		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.cartRepo.GetByTourist(ctx, touristID)
}

func (s *cartService) RemoveItem(ctx context.Context, touristID string, itemID int64) (*domain.ShoppingCart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.RemoveItem")
	defer span.End()

	cart, err := s.cartRepo.GetByTourist(ctx, touristID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))

		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if err := s.cartRepo.RemoveItem(ctx, tx, cart.ID, itemID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))

		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.cartRepo.GetByTourist(ctx, touristID)
}

func (s *cartService) rollback(ctx context.Context, tx pgx.Tx) {
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
