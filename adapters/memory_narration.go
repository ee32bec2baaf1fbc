package adapters

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
)

// MemoryNarrationRepository is an in-memory implementation of NarrationRepository.
// Narrations are lost on restart.
type MemoryNarrationRepository struct {
	mu         sync.RWMutex
	narrations map[string]*entities.Narration // id -> narration mapping
	logger     *zap.Logger
}

// Ensure MemoryNarrationRepository implements the NarrationRepository interface
var _ repositories.NarrationRepository = (*MemoryNarrationRepository)(nil)

// NewMemoryNarrationRepository creates a new in-memory narration repository
func NewMemoryNarrationRepository(logger *zap.Logger) *MemoryNarrationRepository {
	return &MemoryNarrationRepository{
		narrations: make(map[string]*entities.Narration),
		logger:     logger,
	}
}

// Create implements NarrationRepository interface
func (m *MemoryNarrationRepository) Create(ctx context.Context, narration *entities.Narration) error {
	if narration == nil {
		return errors.New("narration cannot be nil")
	}

	if err := narration.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Generate ID if not provided
	if narration.ID == "" {
		narration.ID = uuid.New().String()
	}

	if _, exists := m.narrations[narration.ID]; exists {
		return errors.New("narration with this ID already exists")
	}

	m.narrations[narration.ID] = copyNarration(narration, true)

	m.logger.Debug("Narration stored",
		zap.String("narrationId", narration.ID),
		zap.Int("segments", len(narration.Segments)),
		zap.Int("sizeBytes", narration.SizeBytes))

	return nil
}

// GetByID implements NarrationRepository interface
func (m *MemoryNarrationRepository) GetByID(ctx context.Context, id string) (*entities.Narration, error) {
	if id == "" {
		return nil, errors.New("narration ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	narration, exists := m.narrations[id]
	if !exists {
		return nil, repositories.ErrNarrationNotFound
	}

	// Return a copy to prevent external modifications
	return copyNarration(narration, true), nil
}

// List implements NarrationRepository interface
func (m *MemoryNarrationRepository) List(ctx context.Context, limit int) ([]*entities.Narration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entities.Narration, 0, len(m.narrations))
	for _, narration := range m.narrations {
		result = append(result, copyNarration(narration, false))
	}

	// Most recent first
	slices.SortFunc(result, func(a, b *entities.Narration) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// ExpireNarrations implements NarrationRepository interface
func (m *MemoryNarrationRepository) ExpireNarrations(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, narration := range m.narrations {
		if narration.Status == entities.NarrationStatusReady && narration.IsExpired(now) {
			narration.Expire()
			count++
		}
	}

	if count > 0 {
		m.logger.Info("Expired narrations", zap.Int("count", count))
	}

	return count, nil
}

func copyNarration(narration *entities.Narration, withAudio bool) *entities.Narration {
	narrationCopy := *narration
	narrationCopy.Segments = slices.Clone(narration.Segments)
	if withAudio {
		narrationCopy.Audio = slices.Clone(narration.Audio)
	} else {
		narrationCopy.Audio = nil
	}
	return &narrationCopy
}
