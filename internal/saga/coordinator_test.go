package saga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/akoskissak/soa-team-5/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	mu        sync.Mutex
	published chan domain.DebitRequest
	failWith  error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(chan domain.DebitRequest, 8)}
}

func (p *fakePublisher) PublishDebitRequest(_ context.Context, req domain.DebitRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failWith != nil {
		return p.failWith
	}

	p.published <- req
	return nil
}

func (p *fakePublisher) awaitPublish(t *testing.T) domain.DebitRequest {
	t.Helper()

	select {
	case req := <-p.published:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no debit request published")
		return domain.DebitRequest{}
	}
}

type fakeTokenStore struct {
	mu       sync.Mutex
	deleted  [][]int64
	failWith error
}

func (s *fakeTokenStore) DeleteBatch(_ context.Context, tokenIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}

	s.deleted = append(s.deleted, tokenIDs)
	return nil
}

func (s *fakeTokenStore) deletions() [][]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]int64, len(s.deleted))
	copy(out, s.deleted)
	return out
}

func testTokens(touristID string, ids ...int64) []*domain.PurchaseToken {
	tokens := make([]*domain.PurchaseToken, 0, len(ids))
	for _, id := range ids {
		tokens = append(tokens, &domain.PurchaseToken{
			ID:        id,
			TouristID: touristID,
			TourID:    "tour-" + touristID,
			Price:     10,
		})
	}
	return tokens
}

type checkoutResult struct {
	tokens []*domain.PurchaseToken
	err    error
}

func startCheckout(ctx context.Context, c *Coordinator, touristID string, tokens []*domain.PurchaseToken) chan checkoutResult {
	results := make(chan checkoutResult, 1)
	go func() {
		got, err := c.InitiateCheckout(ctx, touristID, tokens)
		results <- checkoutResult{tokens: got, err: err}
	}()
	return results
}

func awaitResult(t *testing.T, results chan checkoutResult) checkoutResult {
	t.Helper()

	select {
	case res := <-results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("checkout did not finish")
		return checkoutResult{}
	}
}

func TestCheckoutCommitsOnCompletedReply(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, time.Second)

	tokens := testTokens("tourist-1", 1, 2, 3)
	results := startCheckout(context.Background(), c, "tourist-1", tokens)

	req := pub.awaitPublish(t)
	assert.Equal(t, "tourist-1", req.UserID)
	assert.Equal(t, domain.CommandSubtract, req.Command)
	assert.InDelta(t, 30, req.Amount, 0.001)

	require.NoError(t, c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "tourist-1",
		Status: domain.DebitStatusCompleted,
		Amount: 30,
	}))

	res := awaitResult(t, results)
	require.NoError(t, res.err)
	assert.Equal(t, tokens, res.tokens)
	assert.Empty(t, store.deletions())
	assert.Equal(t, 0, c.PendingSagas())
}

func TestCheckoutCompensatesOnFailedReply(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, time.Second)

	tokens := testTokens("tourist-1", 7, 8)
	results := startCheckout(context.Background(), c, "tourist-1", tokens)
	pub.awaitPublish(t)

	require.NoError(t, c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "tourist-1",
		Status: domain.DebitStatusFailed,
	}))

	res := awaitResult(t, results)
	require.ErrorIs(t, res.err, ErrDebitFailed)
	assert.Nil(t, res.tokens)

	deletions := store.deletions()
	require.Len(t, deletions, 1)
	assert.Equal(t, []int64{7, 8}, deletions[0])
	assert.Equal(t, 0, c.PendingSagas())
}

func TestSecondCheckoutRejectedWhilePending(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, time.Second)

	results := startCheckout(context.Background(), c, "tourist-1", testTokens("tourist-1", 1))
	pub.awaitPublish(t)

	_, err := c.InitiateCheckout(context.Background(), "tourist-1", testTokens("tourist-1", 2))
	require.ErrorIs(t, err, ErrCheckoutInProgress)

	require.NoError(t, c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "tourist-1",
		Status: domain.DebitStatusCompleted,
	}))
	res := awaitResult(t, results)
	require.NoError(t, res.err)
}

func TestDuplicateReplyIsDropped(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, time.Second)

	results := startCheckout(context.Background(), c, "tourist-1", testTokens("tourist-1", 1))
	pub.awaitPublish(t)

	reply := domain.DebitReply{UserID: "tourist-1", Status: domain.DebitStatusCompleted}
	require.NoError(t, c.HandleDebitReply(context.Background(), reply))
	awaitResult(t, results)

	require.NoError(t, c.HandleDebitReply(context.Background(), reply))
	assert.Empty(t, store.deletions())
}

func TestReplyForUnknownTouristIsDropped(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, time.Second)

	require.NoError(t, c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "nobody",
		Status: domain.DebitStatusFailed,
	}))
	assert.Empty(t, store.deletions())
}

func TestReplyWithUnknownStatusIsDropped(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, time.Second)

	results := startCheckout(context.Background(), c, "tourist-1", testTokens("tourist-1", 1))
	pub.awaitPublish(t)

	require.NoError(t, c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "tourist-1",
		Status: "PENDING",
	}))

	// The saga is still pending; a valid reply must resolve it.
	assert.Equal(t, 1, c.PendingSagas())

	require.NoError(t, c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "tourist-1",
		Status: domain.DebitStatusCompleted,
	}))
	res := awaitResult(t, results)
	require.NoError(t, res.err)
}

func TestCheckoutTimesOutAndCompensates(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, 50*time.Millisecond)

	results := startCheckout(context.Background(), c, "tourist-1", testTokens("tourist-1", 4, 5))
	pub.awaitPublish(t)

	res := awaitResult(t, results)
	require.ErrorIs(t, res.err, ErrCheckoutTimeout)

	deletions := store.deletions()
	require.Len(t, deletions, 1)
	assert.Equal(t, []int64{4, 5}, deletions[0])
	assert.Equal(t, 0, c.PendingSagas())

	// A straggling reply after expiry must be dropped without deleting again.
	require.NoError(t, c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "tourist-1",
		Status: domain.DebitStatusFailed,
	}))
	assert.Len(t, store.deletions(), 1)
}

func TestCancelledCheckoutLeavesTokensInPlace(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	results := startCheckout(ctx, c, "tourist-1", testTokens("tourist-1", 1))
	pub.awaitPublish(t)

	cancel()

	res := awaitResult(t, results)
	require.ErrorIs(t, res.err, context.Canceled)
	assert.Empty(t, store.deletions())
	assert.Equal(t, 0, c.PendingSagas())
}

func TestPublishFailureUnwindsBatch(t *testing.T) {
	pub := newFakePublisher()
	pub.failWith = errors.New("broker unavailable")
	store := &fakeTokenStore{}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, time.Second)

	_, err := c.InitiateCheckout(context.Background(), "tourist-1", testTokens("tourist-1", 9))
	require.Error(t, err)
	require.ErrorContains(t, err, "broker unavailable")

	deletions := store.deletions()
	require.Len(t, deletions, 1)
	assert.Equal(t, []int64{9}, deletions[0])
	assert.Equal(t, 0, c.PendingSagas())
}

func TestCompensationFailureSurfaces(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{failWith: errors.New("db down")}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, time.Second)

	results := startCheckout(context.Background(), c, "tourist-1", testTokens("tourist-1", 3))
	pub.awaitPublish(t)

	err := c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "tourist-1",
		Status: domain.DebitStatusFailed,
	})
	require.Error(t, err)

	var compErr *CompensationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "tourist-1", compErr.TouristID)
	assert.Equal(t, []int64{3}, compErr.TokenIDs)

	res := awaitResult(t, results)
	require.ErrorAs(t, res.err, &compErr)
}

func TestConcurrentCheckoutsForDistinctTourists(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, time.Second)

	resultsA := startCheckout(context.Background(), c, "tourist-a", testTokens("tourist-a", 1))
	resultsB := startCheckout(context.Background(), c, "tourist-b", testTokens("tourist-b", 2))

	pub.awaitPublish(t)
	pub.awaitPublish(t)

	require.NoError(t, c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "tourist-a",
		Status: domain.DebitStatusCompleted,
	}))
	require.NoError(t, c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "tourist-b",
		Status: domain.DebitStatusFailed,
	}))

	resA := awaitResult(t, resultsA)
	require.NoError(t, resA.err)
	require.Len(t, resA.tokens, 1)
	assert.Equal(t, int64(1), resA.tokens[0].ID)

	resB := awaitResult(t, resultsB)
	require.ErrorIs(t, resB.err, ErrDebitFailed)

	deletions := store.deletions()
	require.Len(t, deletions, 1)
	assert.Equal(t, []int64{2}, deletions[0])
}

func outcomeCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != "purchase_saga_outcomes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestFailedCompensationCountedSeparately(t *testing.T) {
	pub := newFakePublisher()
	store := &fakeTokenStore{failWith: errors.New("db down")}
	reg := prometheus.NewRegistry()
	c := NewCoordinator(pub, store, zap.NewNop(), metrics.NewSagaMetricsWith(reg), time.Second)

	results := startCheckout(context.Background(), c, "tourist-1", testTokens("tourist-1", 3))
	pub.awaitPublish(t)

	err := c.HandleDebitReply(context.Background(), domain.DebitReply{
		UserID: "tourist-1",
		Status: domain.DebitStatusFailed,
	})
	require.Error(t, err)
	awaitResult(t, results)

	assert.Equal(t, float64(1), outcomeCount(t, reg, "compensation_failed"))
	assert.Equal(t, float64(0), outcomeCount(t, reg, "compensated"))
}

// cancellingStore cancels the checkout's context the moment compensation
// starts and fails the delete if that cancellation reached it.
type cancellingStore struct {
	cancel  context.CancelFunc
	mu      sync.Mutex
	deleted [][]int64
}

func (s *cancellingStore) DeleteBatch(ctx context.Context, tokenIDs []int64) error {
	s.cancel()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, tokenIDs)
	return nil
}

func TestTimeoutCompensationSurvivesCallerDisconnect(t *testing.T) {
	pub := newFakePublisher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancellingStore{cancel: cancel}
	c := NewCoordinator(pub, store, zap.NewNop(), nil, 50*time.Millisecond)

	results := startCheckout(ctx, c, "tourist-1", testTokens("tourist-1", 6))
	pub.awaitPublish(t)

	res := awaitResult(t, results)
	require.ErrorIs(t, res.err, ErrCheckoutTimeout)

	var compErr *CompensationError
	require.False(t, errors.As(res.err, &compErr))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.deleted, 1)
	assert.Equal(t, []int64{6}, store.deleted[0])
}

func TestCheckoutRejectsEmptyBatch(t *testing.T) {
	pub := newFakePublisher()
	c := NewCoordinator(pub, &fakeTokenStore{}, zap.NewNop(), nil, time.Second)

	_, err := c.InitiateCheckout(context.Background(), "tourist-1", nil)
	require.ErrorIs(t, err, ErrEmptyBatch)
}
