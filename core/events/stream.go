package events

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"fusdpool/core/types"
)

const defaultStreamHistory = 1024

// StreamUpdate is one emitted event tagged with its position in the stream.
type StreamUpdate struct {
	Sequence uint64
	Cursor   string
	Event    types.Event
}

// Stream is an Emitter that keeps a bounded history and fans events out to
// subscribers. Slow subscribers miss updates rather than block the emitter.
type Stream struct {
	mu      sync.Mutex
	limit   int
	seq     uint64
	nextID  uint64
	history []StreamUpdate
	subs    map[uint64]chan StreamUpdate
}

// NewStream returns a stream retaining up to limit updates for replay. A
// non-positive limit selects the default.
func NewStream(limit int) *Stream {
	if limit <= 0 {
		limit = defaultStreamHistory
	}
	return &Stream{limit: limit, subs: make(map[uint64]chan StreamUpdate)}
}

func cloneEvent(evt types.Event) types.Event {
	out := types.Event{Type: evt.Type, Attributes: make(map[string]string, len(evt.Attributes))}
	for k, v := range evt.Attributes {
		out.Attributes[k] = v
	}
	return out
}

func toTyped(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if typed, ok := evt.(interface{ Event() *types.Event }); ok {
		return typed.Event()
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Emit implements Emitter.
func (s *Stream) Emit(evt Event) {
	typed := toTyped(evt)
	if s == nil || typed == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	update := StreamUpdate{Sequence: s.seq, Cursor: strconv.FormatUint(s.seq, 10), Event: cloneEvent(*typed)}
	s.history = append(s.history, update)
	if len(s.history) > s.limit {
		trimmed := make([]StreamUpdate, s.limit)
		copy(trimmed, s.history[len(s.history)-s.limit:])
		s.history = trimmed
	}
	for _, ch := range s.subs {
		select {
		case ch <- StreamUpdate{Sequence: update.Sequence, Cursor: update.Cursor, Event: cloneEvent(update.Event)}:
		default:
		}
	}
}

// Subscribe registers a subscriber. The returned backlog holds retained
// updates after cursor; an empty or malformed cursor replays everything
// retained. The channel is closed on cancel or when ctx ends.
func (s *Stream) Subscribe(ctx context.Context, cursor string) (<-chan StreamUpdate, func(), []StreamUpdate) {
	updates := make(chan StreamUpdate, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]StreamUpdate, 0, len(s.history))
	for _, entry := range s.history {
		if entry.Sequence > since {
			backlog = append(backlog, StreamUpdate{Sequence: entry.Sequence, Cursor: entry.Cursor, Event: cloneEvent(entry.Event)})
		}
	}
	s.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}
	return updates, cancel, backlog
}

// Subscribers reports the number of live subscriptions.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Fanout emits every event to each emitter in order.
type Fanout []Emitter

// Emit implements Emitter.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
