package kafka

import (
	"encoding/json"
	"testing"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/akoskissak/soa-team-5/internal/domain"
	outboxRepository "github.com/akoskissak/soa-team-5/pkg/outbox/repository"
	"github.com/akoskissak/soa-team-5/pkg/testsuite"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type PublisherTestSuite struct {
	testsuite.BaseSuite

	publisher *DebitRequestPublisher
}

func (s *PublisherTestSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../../../migrations")
}

func (s *PublisherTestSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *PublisherTestSuite) SetupTest() {
	s.BaseSuite.TruncateTables("outbox")

	logger := zap.NewNop()
	outboxRepo := outboxRepository.NewOutboxRepository(s.DbPool, logger)
	s.publisher = NewDebitRequestPublisher(s.DbPool, outboxRepo, "purchase_publish", logger)
}

func (s *PublisherTestSuite) TestPublishStoresOutboxEvent() {
	req := domain.DebitRequest{
		UserID:  "tourist-1",
		Amount:  42.5,
		Command: domain.CommandSubtract,
	}

	s.Require().NoError(s.publisher.PublishDebitRequest(s.Ctx, req))

	var (
		aggregateType string
		aggregateID   string
		eventType     string
		payload       []byte
		topic         string
	)
	err := s.DbPool.QueryRow(s.Ctx, `
		SELECT aggregate_type, aggregate_id, event_type, payload, topic
		FROM outbox
	`).Scan(&aggregateType, &aggregateID, &eventType, &payload, &topic)
	s.Require().NoError(err)

	s.Equal("PurchaseSaga", aggregateType)
	s.Equal("tourist-1", aggregateID)
	s.Equal("DebitRequested", eventType)
	s.Equal("purchase_publish", topic)

	// The stored payload is the exact wire message, no envelope.
	var onWire map[string]any
	s.Require().NoError(json.Unmarshal(payload, &onWire))
	s.Equal("tourist-1", onWire["userId"])
	s.Equal("SUBTRACT", onWire["command"])
	s.InDelta(42.5, onWire["amount"].(float64), 0.001)
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherTestSuite))
}
