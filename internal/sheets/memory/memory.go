// Package memory keeps the ledger mirror in process, for the memory backend
// and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"conti/internal/core"
	"conti/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows [][]any
	fail error
}

var _ sheets.LedgerWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendTransaction stores the row and returns a synthetic reference.
func (s *Store) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.rows = append(s.rows, sheets.Row(tx))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// FailWith makes every following append return err; nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Rows returns a copy of the appended rows.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows)
}
