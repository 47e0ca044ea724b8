package repository_test

import (
	"testing"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/akoskissak/soa-team-5/internal/repository"
	"github.com/akoskissak/soa-team-5/pkg/testsuite"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type RepositoryTestSuite struct {
	testsuite.BaseSuite

	cartRepo  repository.CartRepository
	tokenRepo repository.TokenRepository
}

func (s *RepositoryTestSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../../migrations")
}

func (s *RepositoryTestSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *RepositoryTestSuite) SetupTest() {
	s.BaseSuite.TruncateTables("shopping_carts", "order_items", "purchase_tokens")

	logger := zap.NewNop()
	s.cartRepo = repository.NewCartRepository(s.DbPool, logger)
	s.tokenRepo = repository.NewTokenRepository(s.DbPool, logger)
}

func (s *RepositoryTestSuite) inTx(fn func(tx pgx.Tx) error) {
	tx, err := s.DbPool.Begin(s.Ctx)
	s.Require().NoError(err)

	if err := fn(tx); err != nil {
		s.Require().NoError(tx.Rollback(s.Ctx))
		s.Require().NoError(err)
		return
	}

	s.Require().NoError(tx.Commit(s.Ctx))
}

func (s *RepositoryTestSuite) newToken(touristID, tourID string, price float64) *domain.PurchaseToken {
	return &domain.PurchaseToken{
		Token:     uuid.NewString(),
		TourID:    tourID,
		TouristID: touristID,
		TourName:  "Tour " + tourID,
		Price:     price,
	}
}

func (s *RepositoryTestSuite) TestCreateBatchAssignsIDsAndTimestamps() {
	tokens := []*domain.PurchaseToken{
		s.newToken("tourist-1", "tour-a", 10),
		s.newToken("tourist-1", "tour-b", 20),
	}

	s.inTx(func(tx pgx.Tx) error {
		return s.tokenRepo.CreateBatch(s.Ctx, tx, tokens)
	})

	for _, token := range tokens {
		s.NotZero(token.ID)
		s.False(token.CreatedAt.IsZero())
	}
}

func (s *RepositoryTestSuite) TestListByTouristScopesToOwner() {
	mine := []*domain.PurchaseToken{
		s.newToken("tourist-1", "tour-a", 10),
		s.newToken("tourist-1", "tour-b", 20),
	}
	theirs := []*domain.PurchaseToken{
		s.newToken("tourist-2", "tour-a", 10),
	}

	s.inTx(func(tx pgx.Tx) error {
		if err := s.tokenRepo.CreateBatch(s.Ctx, tx, mine); err != nil {
			return err
		}
		return s.tokenRepo.CreateBatch(s.Ctx, tx, theirs)
	})

	got, err := s.tokenRepo.ListByTourist(s.Ctx, "tourist-1")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	for _, token := range got {
		s.Equal("tourist-1", token.TouristID)
	}
}

func (s *RepositoryTestSuite) TestDuplicateTourForSameTouristRejected() {
	first := []*domain.PurchaseToken{s.newToken("tourist-1", "tour-a", 10)}
	s.inTx(func(tx pgx.Tx) error {
		return s.tokenRepo.CreateBatch(s.Ctx, tx, first)
	})

	dup := []*domain.PurchaseToken{s.newToken("tourist-1", "tour-a", 10)}

	tx, err := s.DbPool.Begin(s.Ctx)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback(s.Ctx) }()

	err = s.tokenRepo.CreateBatch(s.Ctx, tx, dup)
	s.Require().ErrorIs(err, repository.ErrDuplicateToken)
}

func (s *RepositoryTestSuite) TestDeleteBatchRemovesOnlyRequestedTokens() {
	tokens := []*domain.PurchaseToken{
		s.newToken("tourist-1", "tour-a", 10),
		s.newToken("tourist-1", "tour-b", 20),
		s.newToken("tourist-1", "tour-c", 30),
	}
	s.inTx(func(tx pgx.Tx) error {
		return s.tokenRepo.CreateBatch(s.Ctx, tx, tokens)
	})

	s.Require().NoError(s.tokenRepo.DeleteBatch(s.Ctx, []int64{tokens[0].ID, tokens[1].ID}))

	got, err := s.tokenRepo.ListByTourist(s.Ctx, "tourist-1")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(tokens[2].ID, got[0].ID)

	// Deleting the same batch again is a no-op.
	s.Require().NoError(s.tokenRepo.DeleteBatch(s.Ctx, []int64{tokens[0].ID, tokens[1].ID}))
}

func (s *RepositoryTestSuite) TestGetOrCreateIsIdempotent() {
	first, err := s.cartRepo.GetOrCreate(s.Ctx, "tourist-1")
	s.Require().NoError(err)

	second, err := s.cartRepo.GetOrCreate(s.Ctx, "tourist-1")
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal("tourist-1", second.TouristID)
}

func (s *RepositoryTestSuite) TestGetByTouristMissingCart() {
	_, err := s.cartRepo.GetByTourist(s.Ctx, "nobody")
	s.Require().ErrorIs(err, repository.ErrCartNotFound)
}

func (s *RepositoryTestSuite) TestAddAndRemoveItemTracksTotal() {
	cart, err := s.cartRepo.GetOrCreate(s.Ctx, "tourist-1")
	s.Require().NoError(err)

	itemA := &domain.OrderItem{TourID: "tour-a", TourName: "Tour A", Price: 10}
	itemB := &domain.OrderItem{TourID: "tour-b", TourName: "Tour B", Price: 25}

	s.inTx(func(tx pgx.Tx) error {
		if err := s.cartRepo.AddItem(s.Ctx, tx, cart.ID, itemA); err != nil {
			return err
		}
		return s.cartRepo.AddItem(s.Ctx, tx, cart.ID, itemB)
	})

	got, err := s.cartRepo.GetByTourist(s.Ctx, "tourist-1")
	s.Require().NoError(err)
	s.Require().Len(got.Items, 2)
	s.InDelta(35, got.TotalPrice, 0.001)

	s.inTx(func(tx pgx.Tx) error {
		return s.cartRepo.RemoveItem(s.Ctx, tx, cart.ID, itemA.ID)
	})

	got, err = s.cartRepo.GetByTourist(s.Ctx, "tourist-1")
	s.Require().NoError(err)
	s.Require().Len(got.Items, 1)
	s.InDelta(25, got.TotalPrice, 0.001)
}

func (s *RepositoryTestSuite) TestRemoveMissingItem() {
	cart, err := s.cartRepo.GetOrCreate(s.Ctx, "tourist-1")
	s.Require().NoError(err)

	tx, err := s.DbPool.Begin(s.Ctx)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback(s.Ctx) }()

	err = s.cartRepo.RemoveItem(s.Ctx, tx, cart.ID, 424242)
	s.Require().ErrorIs(err, repository.ErrItemNotFound)
}

func (s *RepositoryTestSuite) TestClearItemsResetsCart() {
	cart, err := s.cartRepo.GetOrCreate(s.Ctx, "tourist-1")
	s.Require().NoError(err)

	s.inTx(func(tx pgx.Tx) error {
		return s.cartRepo.AddItem(s.Ctx, tx, cart.ID, &domain.OrderItem{
			TourID: "tour-a", TourName: "Tour A", Price: 10,
		})
	})

	s.inTx(func(tx pgx.Tx) error {
		return s.cartRepo.ClearItems(s.Ctx, tx, cart.ID)
	})

	got, err := s.cartRepo.GetByTourist(s.Ctx, "tourist-1")
	s.Require().NoError(err)
	s.Empty(got.Items)
	s.InDelta(0, got.TotalPrice, 0.001)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
