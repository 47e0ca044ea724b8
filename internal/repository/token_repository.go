package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/akoskissak/soa-team-5/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type TokenRepository interface {
	CreateBatch(ctx context.Context, tx pgx.Tx, tokens []*domain.PurchaseToken) error
	DeleteBatch(ctx context.Context, tokenIDs []int64) error
	ListByTourist(ctx context.Context, touristID string) ([]*domain.PurchaseToken, error)
}

type tokenRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewTokenRepository(pool *pgxpool.Pool, logger *zap.Logger) TokenRepository {
	return &tokenRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("token_repository"),
	}
}

func (r *tokenRepo) CreateBatch(ctx context.Context, tx pgx.Tx, tokens []*domain.PurchaseToken) error {
	ctx, span := r.tracer.Start(ctx, "TokenRepository.CreateBatch")
	defer span.End()

	span.SetAttributes(
		attribute.Int("batch_size", len(tokens)),
	)

	query := `
		INSERT INTO purchase_tokens (token, tour_id, tourist_id, tour_name, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	for _, token := range tokens {
		if err := tx.QueryRow(
			ctx,
			query,
			token.Token,
			token.TourID,
			token.TouristID,
			token.TourName,
			token.Price,
		).Scan(&token.ID, &token.CreatedAt); err != nil {
			var pgError *pgconn.PgError
			if errors.As(err, &pgError) && pgError.Code == "23505" {
				mylogger.Warn(
					ctx,
					r.logger,
					"Token already exists for this tourist and tour",
					zap.String("tourist_id", token.TouristID),
					zap.String("tour_id", token.TourID),
				)

				return ErrDuplicateToken
			}

			span.RecordError(err)

			mylogger.Error(ctx, r.logger, "Failed to insert purchase token", zap.Error(err))

			return fmt.Errorf("failed to insert purchase token: %w", err)
		}
	}

	return nil
}

func (r *tokenRepo) DeleteBatch(ctx context.Context, tokenIDs []int64) error {
	ctx, span := r.tracer.Start(ctx, "TokenRepository.DeleteBatch")
	defer span.End()

	span.SetAttributes(
		attribute.Int("batch_size", len(tokenIDs)),
	)

	if len(tokenIDs) == 0 {
		return nil
	}

	query := `
		DELETE FROM purchase_tokens
		WHERE id = ANY($1)
	`

	commandTag, err := r.pool.Exec(ctx, query, tokenIDs)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to delete token batch",
			zap.Int64s("token_ids", tokenIDs),
			zap.Error(err),
		)

		return fmt.Errorf("failed to delete token batch: %w", err)
	}

	// Deletion is idempotent; rows already gone are not an error.
	if int(commandTag.RowsAffected()) < len(tokenIDs) {
		mylogger.Warn(
			ctx,
			r.logger,
			"Some tokens in the batch were already deleted",
			zap.Int64("deleted", commandTag.RowsAffected()),
			zap.Int("requested", len(tokenIDs)),
		)
	}

	return nil
}

func (r *tokenRepo) ListByTourist(ctx context.Context, touristID string) ([]*domain.PurchaseToken, error) {
	ctx, span := r.tracer.Start(ctx, "TokenRepository.ListByTourist")
	defer span.End()

	span.SetAttributes(
		attribute.String("tourist_id", touristID),
	)

	query := `
		SELECT id, token, tour_id, tourist_id, tour_name, price, created_at
		FROM purchase_tokens
		WHERE tourist_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, touristID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to query purchase tokens", zap.Error(err))

		return nil, fmt.Errorf("failed to query purchase tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.PurchaseToken
	for rows.Next() {
		var t domain.PurchaseToken
		if err := rows.Scan(
			&t.ID,
			&t.Token,
			&t.TourID,
			&t.TouristID,
			&t.TourName,
			&t.Price,
			&t.CreatedAt,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning purchase token: %w", err)
		}

		tokens = append(tokens, &t)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, err
	}

	span.SetAttributes(
		attribute.Int("result_count", len(tokens)),
	)

	return tokens, nil
}
