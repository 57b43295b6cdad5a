package epoch

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Clock reports the canonical, monotonically non-decreasing epoch counter.
type Clock interface {
	CurrentEpoch() (uint64, error)
}

var errNilStore = errors.New("epoch: state not configured")

var currentEpochKey = []byte("epoch/current")

// Store captures the state manager capabilities used by ManualClock.
type Store interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// ManualClock keeps the epoch counter in state and only moves it forward when
// told to.
type ManualClock struct {
	store Store
}

// NewManualClock binds a manual clock to the supplied state.
func NewManualClock(store Store) *ManualClock {
	return &ManualClock{store: store}
}

// CurrentEpoch returns the stored epoch, zero when it was never advanced.
func (c *ManualClock) CurrentEpoch() (uint64, error) {
	if c == nil || c.store == nil {
		return 0, errNilStore
	}
	var current uint64
	if _, err := c.store.KVGet(currentEpochKey, &current); err != nil {
		return 0, fmt.Errorf("epoch: load current: %w", err)
	}
	return current, nil
}

// Advance moves the counter forward by n epochs and returns the new value.
func (c *ManualClock) Advance(n uint64) (uint64, error) {
	current, err := c.CurrentEpoch()
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint64-current {
		return 0, fmt.Errorf("epoch: advance by %d overflows", n)
	}
	next := current + n
	if err := c.store.KVPut(currentEpochKey, next); err != nil {
		return 0, fmt.Errorf("epoch: store current: %w", err)
	}
	return next, nil
}

// Set stores an absolute epoch value. Moving backwards is permitted so that
// operators can reproduce clock faults; the pool rejects accrual against a
// regressed clock.
func (c *ManualClock) Set(epoch uint64) error {
	if c == nil || c.store == nil {
		return errNilStore
	}
	if err := c.store.KVPut(currentEpochKey, epoch); err != nil {
		return fmt.Errorf("epoch: store current: %w", err)
	}
	return nil
}

// TimeClock derives the epoch from elapsed wall-clock time.
type TimeClock struct {
	genesis time.Time
	length  time.Duration
	now     func() time.Time
}

// NewTimeClock constructs a clock where epoch n begins at genesis + n*length.
func NewTimeClock(genesis time.Time, length time.Duration) (*TimeClock, error) {
	if length <= 0 {
		return nil, fmt.Errorf("epoch: length must be greater than zero")
	}
	return &TimeClock{genesis: genesis, length: length, now: time.Now}, nil
}

// SetNow overrides the time source for deterministic testing.
func (c *TimeClock) SetNow(now func() time.Time) {
	if c == nil || now == nil {
		return
	}
	c.now = now
}

// CurrentEpoch returns the number of whole epochs elapsed since genesis.
func (c *TimeClock) CurrentEpoch() (uint64, error) {
	elapsed := c.now().Sub(c.genesis)
	if elapsed < 0 {
		return 0, nil
	}
	return uint64(elapsed / c.length), nil
}

// New builds the clock selected by cfg. Manual clocks persist through store.
func New(cfg Config, store Store) (Clock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	if cfg.Source == SourceTime {
		return NewTimeClock(cfg.Genesis, cfg.Length)
	}
	return NewManualClock(store), nil
}
