package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	chatmodel "github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/credentials"
	chat "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/inference"
)

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService(chat.Config{})
	ctx := context.Background()
	defer svc.Shutdown(ctx)

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID())
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID() != session.ID() {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID(), session.ID())
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService(chat.Config{})
	ctx := context.Background()
	defer svc.Shutdown(ctx)

	if _, err := svc.GetSession(ctx, "missing"); err != chat.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Submit(ctx, "missing", "hi"); err != chat.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound from Submit, got %v", err)
	}
}

func TestServiceSubmitAndTranscript(t *testing.T) {
	svc := chat.NewService(chat.Config{})
	ctx := context.Background()
	defer svc.Shutdown(ctx)

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	turn, err := svc.Submit(ctx, session.ID(), "How deep should I plant soybeans?")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	select {
	case <-turn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not settle")
	}

	transcript, err := svc.LoadTranscript(ctx, session.ID())
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(transcript))
	}

	snapshot, err := svc.Snapshot(ctx, session.ID())
	if err != nil {
		t.Fatalf("Snapshot err: %v", err)
	}
	if snapshot.State != chatmodel.StateIdle {
		t.Fatalf("expected idle state, got %s", snapshot.State)
	}
}

func TestServiceCloseSession(t *testing.T) {
	svc := chat.NewService(chat.Config{})
	ctx := context.Background()
	defer svc.Shutdown(ctx)

	session, _ := svc.CreateSession(ctx)
	if svc.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", svc.Count())
	}

	if err := svc.CloseSession(ctx, session.ID()); err != nil {
		t.Fatalf("CloseSession err: %v", err)
	}
	if svc.Count() != 0 {
		t.Fatalf("expected 0 sessions, got %d", svc.Count())
	}
	if err := svc.CloseSession(ctx, session.ID()); err != chat.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound on second close, got %v", err)
	}
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// blockingGenerator holds every lookup until release is closed.
type blockingGenerator struct {
	release chan struct{}
}

func (g blockingGenerator) Start(ctx context.Context, _, _, _ string) *inference.Task {
	return inference.Go(func() (string, error) {
		select {
		case <-g.release:
			return "Rotate with legumes.", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
}

func TestServiceEvictsAbandonedSessions(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	gen := blockingGenerator{release: make(chan struct{})}
	svc := chat.NewService(chat.Config{
		Credentials: credentials.NewMemoryStore(credentials.Credentials{APIKey: "hf_key"}),
		Generator:   gen,
		Clock:       clock.Now,
		SessionTTL:  10 * time.Minute,
		// the janitor stays out of the way; EvictIdle is driven by hand
		SweepInterval: time.Hour,
	})
	ctx := context.Background()
	defer svc.Shutdown(ctx)

	abandoned, _ := svc.CreateSession(ctx)
	watched, _ := svc.CreateSession(ctx)
	busy, _ := svc.CreateSession(ctx)

	_, unsubscribe := watched.Subscribe()
	turn, err := busy.Submit("What should follow corn?")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	clock.Advance(9 * time.Minute)
	if n := svc.EvictIdle(); n != 0 {
		t.Fatalf("expected nothing evicted before the ttl, got %d", n)
	}

	clock.Advance(2 * time.Minute)
	if n := svc.EvictIdle(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := svc.GetSession(ctx, abandoned.ID()); err != chat.ErrSessionNotFound {
		t.Fatalf("expected abandoned session to be gone, got %v", err)
	}
	if _, err := abandoned.Submit("hello?"); err != chat.ErrSessionClosed {
		t.Fatalf("expected evicted session to be closed, got %v", err)
	}

	// The view leaving starts the countdown for the watched session.
	unsubscribe()
	close(gen.release)
	select {
	case <-turn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not settle")
	}

	clock.Advance(5 * time.Minute)
	if n := svc.EvictIdle(); n != 0 {
		t.Fatalf("expected recently left sessions to stay, got %d evictions", n)
	}

	clock.Advance(6 * time.Minute)
	if n := svc.EvictIdle(); n != 2 {
		t.Fatalf("expected watched and busy sessions evicted, got %d", n)
	}
	if svc.Count() != 0 {
		t.Fatalf("expected 0 sessions, got %d", svc.Count())
	}
}

func TestServiceJanitorEvictsInBackground(t *testing.T) {
	svc := chat.NewService(chat.Config{
		SessionTTL:    20 * time.Millisecond,
		SweepInterval: 5 * time.Millisecond,
	})
	ctx := context.Background()
	defer svc.Shutdown(ctx)

	if _, err := svc.CreateSession(ctx); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for svc.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("abandoned session was never evicted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServiceWithoutTTLKeepsSessions(t *testing.T) {
	svc := chat.NewService(chat.Config{})
	ctx := context.Background()
	defer svc.Shutdown(ctx)

	if _, err := svc.CreateSession(ctx); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if n := svc.EvictIdle(); n != 0 {
		t.Fatalf("expected no eviction without a ttl, got %d", n)
	}
}
