package session

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/noteskeeper/internal/errs"
)

// MemStore keeps sessions in process memory.
// A janitor goroutine evicts expired entries until Close is called.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]*Session
	now  func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewMemStore starts a store whose janitor runs every interval.
// A non-positive interval disables the janitor; expired entries are then only hidden by Get.
func NewMemStore(interval time.Duration) *MemStore {
	return newMemStore(interval, time.Now)
}

func newMemStore(interval time.Duration, now func() time.Time) *MemStore {
	m := &MemStore{
		data: make(map[string]*Session),
		now:  now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go m.janitor(interval)
	return m
}

// Get returns a copy of the stored session.
func (m *MemStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.data[id]
	m.mu.RUnlock()
	if !ok || s.Expired(m.now()) {
		return nil, errs.ErrNotFound
	}
	return s.clone(), nil
}

// Save stores a copy of s.
func (m *MemStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	m.data[s.ID] = s.clone()
	m.mu.Unlock()
	return nil
}

// Delete removes the session; deleting an unknown id is not an error.
func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close stops the janitor and waits for it to exit.
func (m *MemStore) Close() {
	m.once.Do(func() { close(m.stop) })
	<-m.done
}

func (m *MemStore) janitor(interval time.Duration) {
	defer close(m.done)
	if interval <= 0 {
		<-m.stop
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.evict()
		}
	}
}

func (m *MemStore) evict() {
	now := m.now()
	m.mu.Lock()
	for id, s := range m.data {
		if s.Expired(now) {
			delete(m.data, id)
		}
	}
	m.mu.Unlock()
}
