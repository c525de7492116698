// Package capture holds screen captures in memory for a short TTL so
// the HTTP surface can serve them without ever writing image bytes to
// disk. Acquisition is platform-specific and happens elsewhere; this is
// only the handoff buffer.
package capture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

// DefaultTTL is how long a capture stays retrievable.
const DefaultTTL = 120 * time.Second

type entry struct {
	png     []byte
	expires time.Time
}

// Store is a mutex-guarded in-memory capture buffer with a background
// janitor. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry

	ttl      time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewStore creates a capture store with the given TTL; zero means
// DefaultTTL. logger may be nil.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries:  make(map[string]entry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
		logger:   logger,
		now:      time.Now,
	}
}

// Put stores a PNG and returns its id.
func (s *Store) Put(png []byte) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = entry{png: png, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return id
}

// Get returns the capture bytes. Expired or unknown ids return a
// not-found error.
func (s *Store) Get(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || s.now().After(e.expires) {
		delete(s.entries, id)
		return nil, fault.NotFound("capture", id)
	}
	return e.png, nil
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor starts the background sweep of expired entries. It stops
// when Stop is called.
func (s *Store) StartJanitor() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("expired captures swept", "removed", removed, "remaining", len(s.entries))
	}
}

// Stop halts the janitor and waits for it to exit. Safe to call more
// than once.
func (s *Store) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}
