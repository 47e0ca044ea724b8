package saga

import (
	"sync"
	"time"

	"github.com/akoskissak/soa-team-5/internal/domain"
)

type outcome struct {
	tokens []*domain.PurchaseToken
	err    error
}

// pendingSaga is the in-memory correlation record for one in-flight
// checkout. done is buffered so the resolver never blocks; whoever removes
// the entry from the registry owns the single send.
type pendingSaga struct {
	touristID string
	amount    float64
	tokens    []*domain.PurchaseToken
	done      chan outcome
	createdAt time.Time
}

func newPendingSaga(touristID string, amount float64, tokens []*domain.PurchaseToken) *pendingSaga {
	return &pendingSaga{
		touristID: touristID,
		amount:    amount,
		tokens:    tokens,
		done:      make(chan outcome, 1),
		createdAt: time.Now(),
	}
}

func (p *pendingSaga) resolve(tokens []*domain.PurchaseToken, err error) {
	p.done <- outcome{tokens: tokens, err: err}
}

// registry holds at most one pending saga per tourist. It exposes only
// insert-if-absent and remove-and-return; removal is the atomic gate that
// decides which of reply, timeout and cancellation wins.
type registry struct {
	mu      sync.Mutex
	pending map[string]*pendingSaga
}

func newRegistry() *registry {
	return &registry{pending: make(map[string]*pendingSaga)}
}

func (r *registry) insertIfAbsent(entry *pendingSaga) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[entry.touristID]; exists {
		return false
	}

	r.pending[entry.touristID] = entry
	return true
}

func (r *registry) remove(touristID string) (*pendingSaga, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.pending[touristID]
	if ok {
		delete(r.pending, touristID)
	}

	return entry, ok
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}
