// =============================================================================
// X9 Cash Letter Encoder - Sequence Allocator
// =============================================================================
//
// Issues durable, strictly increasing integers per key. Item sequence
// numbers, cash letter IDs and file ID modifiers all come from here and must
// never repeat, even across process restarts or concurrent exports.
//
// GUARANTEES:
//   - Next persists the new value before returning it
//   - Concurrent callers on one key receive distinct values
//   - A store failure returns *AllocationError and never skips a value
//
// =============================================================================

package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store persists the last issued value per key.
type Store interface {
	// Increment atomically adds one to key (starting from zero) and
	// returns the new value.
	Increment(ctx context.Context, key string) (int64, error)

	// Get returns the last issued value, or zero for an unknown key.
	Get(ctx context.Context, key string) (int64, error)

	// Set overwrites the last issued value.
	Set(ctx context.Context, key string, value int64) error
}

// AllocationError reports a store failure for a key.
type AllocationError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *AllocationError) Error() string {
	return fmt.Sprintf("failed to allocate sequence value for %s: %v", e.Key, e.Err)
}

// Unwrap returns the store error.
func (e *AllocationError) Unwrap() error {
	return e.Err
}

// Allocator hands out sequence values from a Store.
type Allocator struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAllocator returns an Allocator over store. A nil logger discards.
func NewAllocator(store Store, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Allocator{store: store, logger: logger, locks: make(map[string]*sync.Mutex)}
}

// Next returns the next value for key. The first value for a key is 1.
func (a *Allocator) Next(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &AllocationError{Key: key, Err: err}
	}

	lock := a.lock(key)
	lock.Lock()
	defer lock.Unlock()

	value, err := a.store.Increment(ctx, key)
	if err != nil {
		return 0, &AllocationError{Key: key, Err: err}
	}

	a.logger.Debug("sequence.allocated", "key", key, "value", value)
	return value, nil
}

// Current returns the last issued value for key without allocating.
func (a *Allocator) Current(ctx context.Context, key string) (int64, error) {
	value, err := a.store.Get(ctx, key)
	if err != nil {
		return 0, &AllocationError{Key: key, Err: err}
	}
	return value, nil
}

// Reset overwrites the last issued value for key. Operators use it when a
// receiving bank asks for a counter to be realigned.
func (a *Allocator) Reset(ctx context.Context, key string, value int64) error {
	if value < 0 {
		return &AllocationError{Key: key, Err: fmt.Errorf("negative value %d", value)}
	}

	lock := a.lock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := a.store.Set(ctx, key, value); err != nil {
		return &AllocationError{Key: key, Err: err}
	}

	a.logger.Info("sequence.reset", "key", key, "value", value)
	return nil
}

func (a *Allocator) lock(key string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.locks[key]
	if !ok {
		l = &sync.Mutex{}
		a.locks[key] = l
	}
	return l
}

// =============================================================================
// KEYS
// =============================================================================

// ItemSequenceKey is the counter behind item sequence numbers.
func ItemSequenceKey(dialect string) string {
	return dialect + ".LastItemSequenceNumber"
}

// CashLetterKey is the counter behind cash letter IDs.
func CashLetterKey(dialect string) string {
	return dialect + ".NextCashHeaderId"
}

// FileModifierKey is the per-day counter behind file ID modifiers.
func FileModifierKey(dialect string, day time.Time) string {
	return dialect + ".LastFileModifier." + day.Format("20060102")
}

const modifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// FileIDModifier maps the n-th file of a day (1-based) to its modifier:
// A through Z, then 0 through 9, then around again.
func FileIDModifier(n int64) string {
	if n < 1 {
		n = 1
	}
	i := (n - 1) % int64(len(modifierAlphabet))
	return modifierAlphabet[i : i+1]
}
