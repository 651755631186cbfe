package quotes

import (
	"math/rand"
	"sync"
)

// Selector picks one quote per request.
type Selector interface {
	Pick() string
}

// RandomSelector picks uniformly from a Store. Repeats across calls are expected.
type RandomSelector struct {
	store *Store
	intn  func(n int) int
}

// NewRandomSelector returns a selector backed by the package-level math/rand
// source, which is safe for concurrent use.
func NewRandomSelector(store *Store) *RandomSelector {
	return &RandomSelector{store: store, intn: rand.Intn}
}

// NewSeededSelector returns a selector with its own deterministic source.
func NewSeededSelector(store *Store, seed int64) *RandomSelector {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(seed))
	return &RandomSelector{
		store: store,
		intn: func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return rng.Intn(n)
		},
	}
}

// Index returns a uniformly chosen index in [0, store.Len()).
func (s *RandomSelector) Index() int {
	return s.intn(s.store.Len())
}

// Pick returns a uniformly chosen quote.
func (s *RandomSelector) Pick() string {
	return s.store.At(s.Index())
}
