// internal/session/repository.go
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/models"
)

// Repository persists GameSession records. Implementations must hand out copies: a session
// returned by Get or List is owned by the caller.
type Repository interface {
	Insert(ctx context.Context, s *models.GameSession) error
	// Get returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	// Update stores s only if the stored version still equals expectedVersion,
	// otherwise it returns ErrConflict.
	Update(ctx context.Context, s *models.GameSession, expectedVersion int) error
	// List returns matching sessions, newest first.
	List(ctx context.Context, f Filter) ([]*models.GameSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Status        models.Status
	Participant   string
	CreatedBefore time.Time
	// Limit caps the result, newest first. Zero means no cap.
	Limit int
}

// Match reports whether s passes the filter.
func (f Filter) Match(s *models.GameSession) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Participant != "" && s.Seat(f.Participant) < 0 {
		return false
	}
	if !f.CreatedBefore.IsZero() && !s.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

// MemoryRepository keeps sessions in process memory. It is the default backend.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.GameSession
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[uuid.UUID]*models.GameSession),
	}
}

func (r *MemoryRepository) Insert(_ context.Context, s *models.GameSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return ErrAlreadyExists
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*models.GameSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) Update(_ context.Context, s *models.GameSession, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expectedVersion {
		return ErrConflict
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]*models.GameSession, error) {
	r.mu.Lock()
	out := make([]*models.GameSession, 0)
	for _, s := range r.sessions {
		if f.Match(s) {
			out = append(out, s.Clone())
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}
