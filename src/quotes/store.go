// Package quotes holds the loaded quote collection and picks quotes from it.
//
// A Store is built once at startup and never mutated afterwards, so any number of
// responders may read it concurrently without locking.
package quotes

import (
	qerrors "github.com/lensvol/qotd/src/errors"
)

// Store is an immutable, ordered collection of quotes.
type Store struct {
	quotes []string
}

// NewStore copies quotes into a new Store. An empty collection is rejected with
// ErrEmptyStore: the server never starts without something to serve.
func NewStore(quotes []string) (*Store, error) {
	if len(quotes) == 0 {
		return nil, qerrors.ErrEmptyStore
	}
	owned := make([]string, len(quotes))
	copy(owned, quotes)
	return &Store{quotes: owned}, nil
}

// Len returns the number of quotes.
func (s *Store) Len() int {
	return len(s.quotes)
}

// At returns the i-th quote in load order.
func (s *Store) At(i int) string {
	return s.quotes[i]
}

// All returns a copy of the quotes in load order.
func (s *Store) All() []string {
	out := make([]string, len(s.quotes))
	copy(out, s.quotes)
	return out
}
