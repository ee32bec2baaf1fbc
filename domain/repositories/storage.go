package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/satriahrh/narrator/server/domain/entities"
)

// ErrNarrationNotFound is returned when no narration matches the requested ID
var ErrNarrationNotFound = errors.New("narration not found")

// NarrationRepository defines data access methods for narrations
type NarrationRepository interface {
	Create(ctx context.Context, narration *entities.Narration) error
	GetByID(ctx context.Context, id string) (*entities.Narration, error)
	// List returns up to limit narrations, newest first. Audio is not loaded.
	List(ctx context.Context, limit int) ([]*entities.Narration, error)
	// ExpireNarrations marks ready narrations past their expiry as expired and drops their audio
	ExpireNarrations(ctx context.Context, now time.Time) (int, error)
}
