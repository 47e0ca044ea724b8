package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/akoskissak/soa-team-5/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CartRepository interface {
	GetOrCreate(ctx context.Context, touristID string) (*domain.ShoppingCart, error)
	GetByTourist(ctx context.Context, touristID string) (*domain.ShoppingCart, error)
	AddItem(ctx context.Context, tx pgx.Tx, cartID int64, item *domain.OrderItem) error
	RemoveItem(ctx context.Context, tx pgx.Tx, cartID int64, itemID int64) error
	ClearItems(ctx context.Context, tx pgx.Tx, cartID int64) error
}

type cartRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewCartRepository(pool *pgxpool.Pool, logger *zap.Logger) CartRepository {
	return &cartRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("cart_repository"),
	}
}

func (r *cartRepo) GetOrCreate(ctx context.Context, touristID string) (*domain.ShoppingCart, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetOrCreate")
	defer span.End()

	span.SetAttributes(
		attribute.String("tourist_id", touristID),
	)

	query := `
		INSERT INTO shopping_carts (tourist_id)
		VALUES ($1)
		ON CONFLICT (tourist_id) DO UPDATE SET tourist_id = EXCLUDED.tourist_id
		RETURNING id, tourist_id, total_price
	`

	var cart domain.ShoppingCart
	if err := r.pool.QueryRow(ctx, query, touristID).
		Scan(&cart.ID, &cart.TouristID, &cart.TotalPrice); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to upsert shopping cart",
			zap.String("tourist_id", touristID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to upsert shopping cart: %w", err)
	}

	items, err := r.getItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return &cart, nil
}

func (r *cartRepo) GetByTourist(ctx context.Context, touristID string) (*domain.ShoppingCart, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetByTourist")
	defer span.End()

	span.SetAttributes(
		attribute.String("tourist_id", touristID),
	)

	query := `
		SELECT id, tourist_id, total_price
		FROM shopping_carts
		WHERE tourist_id = $1
	`

	var cart domain.ShoppingCart
	if err := r.pool.QueryRow(ctx, query, touristID).
		Scan(&cart.ID, &cart.TouristID, &cart.TotalPrice); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			mylogger.Warn(ctx, r.logger, "Shopping cart not found", zap.String("tourist_id", touristID))
			return nil, ErrCartNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("failed to query shopping cart: %w", err)
	}

	items, err := r.getItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return &cart, nil
}

func (r *cartRepo) getItems(ctx context.Context, cartID int64) ([]domain.OrderItem, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.getItems")
	defer span.End()

	query := `
		SELECT id, cart_id, tour_id, tour_name, price
		FROM order_items
		WHERE cart_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, cartID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to query order items", zap.Error(err))

		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.TourID, &item.TourName, &item.Price); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning order item: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, err
	}

	return items, nil
}

func (r *cartRepo) AddItem(ctx context.Context, tx pgx.Tx, cartID int64, item *domain.OrderItem) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.AddItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart_id", cartID),
		attribute.String("tour_id", item.TourID),
	)

	queryItem := `
		INSERT INTO order_items (cart_id, tour_id, tour_name, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	if err := tx.QueryRow(ctx, queryItem, cartID, item.TourID, item.TourName, item.Price).
		Scan(&item.ID); err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to insert order item", zap.Error(err))

		return fmt.Errorf("failed to insert order item: %w", err)
	}
	item.CartID = cartID

	queryTotal := `
		UPDATE shopping_carts
		SET total_price = total_price + $1
		WHERE id = $2
	`

	if _, err := tx.Exec(ctx, queryTotal, item.Price, cartID); err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to update cart total: %w", err)
	}

	return nil
}

func (r *cartRepo) RemoveItem(ctx context.Context, tx pgx.Tx, cartID int64, itemID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.RemoveItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart_id", cartID),
		attribute.Int64("item_id", itemID),
	)

	queryDelete := `
		DELETE FROM order_items
		WHERE id = $1 AND cart_id = $2
		RETURNING price
	`

	var price float64
	if err := tx.QueryRow(ctx, queryDelete, itemID, cartID).Scan(&price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			mylogger.Warn(
				ctx,
				r.logger,
				"Order item not found",
				zap.Int64("item_id", itemID),
				zap.Int64("cart_id", cartID),
			)

			return ErrItemNotFound
		}

		span.RecordError(err)

		return fmt.Errorf("failed to delete order item: %w", err)
	}

	queryTotal := `
		UPDATE shopping_carts
		SET total_price = total_price - $1
		WHERE id = $2
	`

	if _, err := tx.Exec(ctx, queryTotal, price, cartID); err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to update cart total: %w", err)
	}

	return nil
}

func (r *cartRepo) ClearItems(ctx context.Context, tx pgx.Tx, cartID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.ClearItems")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart_id", cartID),
	)

	queryDelete := `
		DELETE FROM order_items
		WHERE cart_id = $1
	`

	if _, err := tx.Exec(ctx, queryDelete, cartID); err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to clear order items: %w", err)
	}

	queryTotal := `
		UPDATE shopping_carts
		SET total_price = 0
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, queryTotal, cartID); err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to reset cart total: %w", err)
	}

	return nil
}
