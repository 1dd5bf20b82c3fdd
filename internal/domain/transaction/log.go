// Package transaction owns the history of completed sales and the
// filtering and aggregation used by the history view.
package transaction

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// ErrEmptyLog is returned when deleting from an empty log.
var ErrEmptyLog = errors.New("transaction log is empty")

// Log is the in-memory transaction history, newest first. Deletions persist
// immediately and cannot be undone.
type Log struct {
	repo Repository

	mu    sync.RWMutex
	items []Transaction
}

// NewLog loads the stored history.
func NewLog(ctx context.Context, repo Repository) (*Log, error) {
	items, err := repo.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load transactions")
	}
	return &Log{repo: repo, items: items}, nil
}

// List returns a copy of the history, newest first.
func (l *Log) List() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Transaction(nil), l.items...)
}

// Len returns the number of recorded transactions.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Record prepends t and hands the resulting history to commit with the log
// write-locked. The history is installed only when commit succeeds.
func (l *Log) Record(t Transaction, commit func(items []Transaction) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]Transaction, 0, len(l.items)+1)
	next = append(next, t)
	next = append(next, l.items...)
	if err := commit(next); err != nil {
		return err
	}
	l.items = next
	return nil
}

// DeleteLatest removes the most recent transaction (index 0) and returns it.
func (l *Log) DeleteLatest(ctx context.Context) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.items) == 0 {
		return Transaction{}, ErrEmptyLog
	}
	removed := l.items[0]
	next := append([]Transaction(nil), l.items[1:]...)
	if err := l.repo.Save(ctx, next); err != nil {
		return Transaction{}, errors.Wrap(err, "save transactions")
	}
	l.items = next
	return removed, nil
}

// DeleteBatch removes every transaction whose id is in ids and returns how
// many were removed. Unknown ids are ignored.
func (l *Log) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]Transaction, 0, len(l.items))
	for _, t := range l.items {
		if _, ok := drop[t.ID]; !ok {
			next = append(next, t)
		}
	}
	removed := len(l.items) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := l.repo.Save(ctx, next); err != nil {
		return 0, errors.Wrap(err, "save transactions")
	}
	l.items = next
	return removed, nil
}

// Clear removes the whole history.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.repo.Save(ctx, []Transaction{}); err != nil {
		return errors.Wrap(err, "save transactions")
	}
	l.items = nil
	return nil
}
