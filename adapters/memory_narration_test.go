package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
)

func newTestNarration(text string, ttl time.Duration) *entities.Narration {
	narration := entities.NewNarration(entities.VoiceFinn, ttl)
	narration.AddSegment(text, &entities.SynthesisResult{Audio: []byte(text), AudioLength: 1.5})
	narration.SetAudio([]byte(text), "audio/mpeg")
	return narration
}

func TestMemoryNarrationRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryNarrationRepository(zaptest.NewLogger(t))

	narration := newTestNarration("hello", time.Hour)
	if err := repo.Create(ctx, narration); err != nil {
		t.Fatalf("Failed to create narration: %v", err)
	}

	if narration.ID == "" {
		t.Fatal("Expected an ID to be generated")
	}

	retrieved, err := repo.GetByID(ctx, narration.ID)
	if err != nil {
		t.Fatalf("Failed to get narration: %v", err)
	}

	if string(retrieved.Audio) != "hello" {
		t.Errorf("Expected audio 'hello', got '%s'", retrieved.Audio)
	}
	if retrieved.DurationSeconds != 1.5 {
		t.Errorf("Expected duration 1.5, got %f", retrieved.DurationSeconds)
	}

	// Returned values are copies
	retrieved.Audio[0] = 'j'
	retrieved.Segments[0].Text = "changed"
	again, _ := repo.GetByID(ctx, narration.ID)
	if string(again.Audio) != "hello" || again.Segments[0].Text != "hello" {
		t.Error("Expected stored narration to be unaffected by caller modifications")
	}
}

func TestMemoryNarrationRepository_Create_Invalid(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryNarrationRepository(zaptest.NewLogger(t))

	if err := repo.Create(ctx, nil); err == nil {
		t.Error("Expected error for nil narration")
	}

	empty := entities.NewNarration(entities.VoiceFinn, time.Hour)
	if err := repo.Create(ctx, empty); err == nil {
		t.Error("Expected error for narration without segments")
	}

	narration := newTestNarration("hello", time.Hour)
	if err := repo.Create(ctx, narration); err != nil {
		t.Fatalf("Failed to create narration: %v", err)
	}
	duplicate := newTestNarration("again", time.Hour)
	duplicate.ID = narration.ID
	if err := repo.Create(ctx, duplicate); err == nil {
		t.Error("Expected error for duplicate ID")
	}
}

func TestMemoryNarrationRepository_GetByID_NotFound(t *testing.T) {
	repo := NewMemoryNarrationRepository(zaptest.NewLogger(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, repositories.ErrNarrationNotFound) {
		t.Errorf("Expected ErrNarrationNotFound, got %v", err)
	}

	if _, err := repo.GetByID(context.Background(), ""); err == nil {
		t.Error("Expected error for empty ID")
	}
}

func TestMemoryNarrationRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryNarrationRepository(zaptest.NewLogger(t))

	base := time.Now()
	for i, text := range []string{"first", "second", "third"} {
		narration := newTestNarration(text, time.Hour)
		narration.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, narration); err != nil {
			t.Fatalf("Failed to create narration: %v", err)
		}
	}

	narrations, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list narrations: %v", err)
	}

	if len(narrations) != 2 {
		t.Fatalf("Expected 2 narrations, got %d", len(narrations))
	}
	if narrations[0].Segments[0].Text != "third" || narrations[1].Segments[0].Text != "second" {
		t.Errorf("Expected newest first, got %s, %s", narrations[0].Segments[0].Text, narrations[1].Segments[0].Text)
	}
	for _, narration := range narrations {
		if narration.Audio != nil {
			t.Error("Expected listed narrations to omit audio")
		}
	}

	all, _ := repo.List(ctx, 0)
	if len(all) != 3 {
		t.Errorf("Expected 3 narrations without limit, got %d", len(all))
	}
}

func TestMemoryNarrationRepository_ExpireNarrations(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryNarrationRepository(zaptest.NewLogger(t))

	fresh := newTestNarration("fresh", time.Hour)
	stale := newTestNarration("stale", time.Minute)
	_ = repo.Create(ctx, fresh)
	_ = repo.Create(ctx, stale)

	count, err := repo.ExpireNarrations(ctx, time.Now().Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Failed to expire narrations: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 expired narration, got %d", count)
	}

	expired, _ := repo.GetByID(ctx, stale.ID)
	if expired.Status != entities.NarrationStatusExpired {
		t.Errorf("Expected status expired, got %s", expired.Status)
	}
	if len(expired.Audio) != 0 {
		t.Error("Expected expired narration to drop its audio")
	}

	kept, _ := repo.GetByID(ctx, fresh.ID)
	if kept.Status != entities.NarrationStatusReady {
		t.Errorf("Expected status ready, got %s", kept.Status)
	}

	// Already expired narrations are not counted again
	count, _ = repo.ExpireNarrations(ctx, time.Now().Add(10*time.Minute))
	if count != 0 {
		t.Errorf("Expected 0 newly expired narrations, got %d", count)
	}
}
