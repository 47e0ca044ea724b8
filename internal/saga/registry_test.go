package saga

import (
	"fmt"
	"sync"
	"testing"

	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(touristID string) *pendingSaga {
	return newPendingSaga(touristID, 100, []*domain.PurchaseToken{
		{ID: 1, TouristID: touristID, TourID: "tour-1", Price: 100},
	})
}

func TestRegistryInsertIfAbsent(t *testing.T) {
	r := newRegistry()

	require.True(t, r.insertIfAbsent(testEntry("tourist-1")))
	assert.False(t, r.insertIfAbsent(testEntry("tourist-1")))
	assert.True(t, r.insertIfAbsent(testEntry("tourist-2")))
	assert.Equal(t, 2, r.size())
}

func TestRegistryRemoveReturnsEntryOnce(t *testing.T) {
	r := newRegistry()
	entry := testEntry("tourist-1")
	require.True(t, r.insertIfAbsent(entry))

	got, ok := r.remove("tourist-1")
	require.True(t, ok)
	assert.Same(t, entry, got)

	_, ok = r.remove("tourist-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.size())
}

func TestRegistryRemoveUnknown(t *testing.T) {
	r := newRegistry()

	_, ok := r.remove("nobody")
	assert.False(t, ok)
}

func TestRegistryConcurrentRemoveSingleWinner(t *testing.T) {
	r := newRegistry()
	require.True(t, r.insertIfAbsent(testEntry("tourist-1")))

	const contenders = 32

	var wg sync.WaitGroup
	wins := make(chan struct{}, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.remove("tourist-1"); ok {
				wins <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(wins)

	var total int
	for range wins {
		total++
	}
	assert.Equal(t, 1, total)
}

func TestRegistryConcurrentInsertDistinctTourists(t *testing.T) {
	r := newRegistry()

	const tourists = 16

	var wg sync.WaitGroup
	for i := 0; i < tourists; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.insertIfAbsent(testEntry(fmt.Sprintf("tourist-%d", n)))
		}(i)
	}

	wg.Wait()
	assert.Equal(t, tourists, r.size())
}
