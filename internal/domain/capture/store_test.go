package capture

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPutGet(t *testing.T) {
	s := NewStore(time.Minute, testLogger())
	id := s.Put([]byte{0x89, 'P', 'N', 'G'})

	png, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(png) != 4 {
		t.Errorf("got %d bytes, want 4", len(png))
	}

	if _, err := s.Get("nope"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("unknown id error = %v, want not found", err)
	}
}

func TestExpiry(t *testing.T) {
	s := NewStore(time.Minute, testLogger())
	now := time.Now()
	s.now = func() time.Time { return now }

	id := s.Put([]byte("png"))

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(id); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("expired capture error = %v, want not found", err)
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be dropped on Get, Len = %d", s.Len())
	}
}

func TestSweep(t *testing.T) {
	s := NewStore(time.Minute, testLogger())
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Put([]byte("a"))
	s.Put([]byte("b"))
	now = now.Add(2 * time.Minute)
	s.sweep()

	if s.Len() != 0 {
		t.Errorf("Len after sweep = %d, want 0", s.Len())
	}
}

func TestJanitorStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewStore(time.Minute, testLogger())
	s.StartJanitor()
	s.Stop()
	s.Stop() // idempotent
}
