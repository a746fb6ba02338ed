package store

import (
	"sync"

	"diagflow/pkg/errors"
	"diagflow/pkg/metrics"
	"diagflow/pkg/models"
)

const DefaultCapacity = 1024

// Store keeps the most recent messages in insertion order. When full, adding
// a message evicts the oldest one.
type Store struct {
	mu       sync.Mutex
	capacity int
	// ring buffer, allocated on first Add
	buf   []*models.Message
	head  int
	count int
}

func New() *Store {
	return &Store{capacity: DefaultCapacity}
}

func NewWithCapacity(capacity int) (*Store, error) {
	s := New()
	if err := s.SetCapacity(capacity); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// SetCapacity changes the bound. Values below 1 are rejected and the previous
// capacity is kept. Shrinking drops the oldest messages that no longer fit.
func (s *Store) SetCapacity(capacity int) error {
	if capacity <= 0 {
		return errors.ErrInvalidArgument.
			WithMessage("store capacity must be at least 1").
			WithDetail("capacity", capacity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf != nil {
		msgs := s.snapshotLocked()
		evicted := 0
		if len(msgs) > capacity {
			evicted = len(msgs) - capacity
			msgs = msgs[evicted:]
		}
		s.buf = make([]*models.Message, capacity)
		copy(s.buf, msgs)
		s.head = 0
		s.count = len(msgs)
		if evicted > 0 {
			metrics.StoreEvictionsTotal.Add(float64(evicted))
		}
	}
	s.capacity = capacity
	metrics.SetStoreSize(s.count)
	return nil
}

func (s *Store) Add(msg *models.Message) {
	if msg == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf == nil {
		s.buf = make([]*models.Message, s.capacity)
	}

	if s.count == s.capacity {
		s.buf[s.head] = nil
		s.head = (s.head + 1) % s.capacity
		s.count--
		metrics.StoreEvictionsTotal.Inc()
	}

	s.buf[(s.head+s.count)%s.capacity] = msg
	s.count++
	metrics.StoredMessagesTotal.Inc()
	metrics.SetStoreSize(s.count)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.buf {
		s.buf[i] = nil
	}
	s.head = 0
	s.count = 0
	metrics.SetStoreSize(0)
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// At returns the i-th message, oldest first, or nil when out of range.
func (s *Store) At(i int) *models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= s.count {
		return nil
	}
	return s.buf[(s.head+i)%s.capacity]
}

// Messages returns a snapshot, oldest first.
func (s *Store) Messages() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Replace swaps the contents for msgs, keeping only the newest ones that fit.
func (s *Store) Replace(msgs []*models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(msgs) > s.capacity {
		msgs = msgs[len(msgs)-s.capacity:]
	}
	s.buf = make([]*models.Message, s.capacity)
	n := 0
	for _, m := range msgs {
		if m == nil {
			continue
		}
		s.buf[n] = m
		n++
	}
	s.head = 0
	s.count = n
	metrics.SetStoreSize(s.count)
}

func (s *Store) snapshotLocked() []*models.Message {
	out := make([]*models.Message, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	return out
}
