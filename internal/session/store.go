// internal/session/store.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/catalog"
	"github.com/jason-s-yu/playtogether/internal/game"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/sirupsen/logrus"
)

// Notifier pushes committed changes to whoever watches a session.
type Notifier interface {
	Publish(ctx context.Context, ev models.SessionEvent) error
}

// HistorySink receives one record per accepted move.
type HistorySink interface {
	Record(ctx context.Context, rec models.MoveRecord) error
}

// Options configures a Store. Catalog is required; everything else has a default.
type Options struct {
	Catalog  *catalog.Catalog
	Repo     Repository
	Notifier Notifier
	History  HistorySink
	Logger   *logrus.Logger

	// WaitingTTL is how long a session may wait for a partner before Sweep removes it.
	// Zero disables expiry.
	WaitingTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Store is the authoritative owner of game sessions. Every mutation of one session is
// serialized through that session's lock, so two concurrent moves never both validate
// against the same prior state.
type Store struct {
	catalog    *catalog.Catalog
	repo       Repository
	notifier   Notifier
	history    HistorySink
	logger     *logrus.Logger
	waitingTTL time.Duration
	now        func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock

	// OnCompleted, if set, runs after a session reaches completed.
	OnCompleted func(s *models.GameSession)
}

// NewStore wires a Store from opts.
func NewStore(opts Options) *Store {
	s := &Store{
		catalog:    opts.Catalog,
		repo:       opts.Repo,
		notifier:   opts.Notifier,
		history:    opts.History,
		logger:     opts.Logger,
		waitingTTL: opts.WaitingTTL,
		now:        opts.Now,
		locks:      make(map[uuid.UUID]*sessionLock),
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.repo == nil {
		s.repo = NewMemoryRepository()
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Catalog returns the game catalog the store validates against.
func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog
}

// sessionLock serializes mutations of one session. refs counts holders and waiters and
// is guarded by Store.mu; the entry leaves the map when it drops to zero.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the session's lock and returns its release func.
func (s *Store) lock(id uuid.UUID) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Create opens a new session of gameID with creator in the first seat.
func (s *Store) Create(ctx context.Context, gameID, creator string) (*models.GameSession, error) {
	if creator == "" {
		return nil, ErrInvalidParticipant
	}
	def, err := s.catalog.Get(gameID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGame, gameID)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := s.timestamp()
	sess := &models.GameSession{
		ID:           id,
		GameID:       def.ID,
		Participants: []string{creator},
		State:        def.NewState(),
		Status:       models.StatusWaiting,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, sess); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"session": id, "game": def.ID, "creator": creator}).Info("session created")

	s.publish(ctx, models.EventSessionCreated, sess, creator)
	return sess, nil
}

// Get returns a snapshot of the session.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	return s.repo.Get(ctx, id)
}

// List returns sessions matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*models.GameSession, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q", f.Status)
	}
	if f.Limit < 0 {
		return nil, fmt.Errorf("negative limit %d", f.Limit)
	}
	return s.repo.List(ctx, f)
}

// Join seats joiner in the second seat and starts the game.
func (s *Store) Join(ctx context.Context, id uuid.UUID, joiner string) (*models.GameSession, error) {
	if joiner == "" {
		return nil, ErrInvalidParticipant
	}
	defer s.lock(id)()

	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(sess.Participants) >= models.MaxParticipants || sess.Status != models.StatusWaiting {
		return nil, ErrAlreadyFull
	}
	if sess.Seat(joiner) == game.SeatFirst {
		return nil, ErrSelfJoin
	}

	expected := sess.Version
	sess.Participants = append(sess.Participants, joiner)
	sess.Status = models.StatusInProgress
	sess.Version++
	sess.UpdatedAt = s.timestamp()
	if err := s.repo.Update(ctx, sess, expected); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"session": id, "joiner": joiner}).Info("session joined")

	s.publish(ctx, models.EventSessionJoined, sess, joiner)
	return sess, nil
}

// ApplyMove validates mv for actor and commits the resulting state. A rejected move leaves
// the session untouched and is reported with the reducer's error.
func (s *Store) ApplyMove(ctx context.Context, id uuid.UUID, actor string, mv game.Move) (*models.GameSession, error) {
	defer s.lock(id)()

	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	seat := sess.Seat(actor)
	if seat < 0 {
		return nil, ErrNotParticipant
	}
	switch sess.Status {
	case models.StatusWaiting:
		return nil, ErrWaitingForPartner
	case models.StatusCompleted:
		return nil, game.ErrGameOver
	}
	def, err := s.catalog.Get(sess.GameID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGame, sess.GameID)
	}

	out, err := def.Reducer.Apply(sess.State, seat, mv)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"session": id, "actor": actor}).Debugf("move rejected: %v", err)
		return nil, err
	}

	expected := sess.Version
	next := models.StatusInProgress
	sess.State = out.State
	if out.Completed {
		next = models.StatusCompleted
		sess.Winner = sess.WinnerFor(out.Winner)
	}
	if !sess.Status.CanAdvanceTo(next) {
		return nil, fmt.Errorf("illegal status transition %s -> %s", sess.Status, next)
	}
	sess.Status = next
	sess.Version++
	sess.UpdatedAt = s.timestamp()
	if err := s.repo.Update(ctx, sess, expected); err != nil {
		return nil, err
	}

	s.record(ctx, sess, actor, mv)
	s.publish(ctx, models.EventSessionMove, sess, actor)
	if sess.Status == models.StatusCompleted {
		s.logger.WithFields(logrus.Fields{"session": id, "winner": sess.Winner}).Info("session completed")
		if s.OnCompleted != nil {
			s.OnCompleted(sess.Clone())
		}
	}
	return sess, nil
}

// Sweep deletes sessions that have been waiting for a partner longer than the TTL and
// returns how many it removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	if s.waitingTTL <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.waitingTTL)
	stale, err := s.repo.List(ctx, Filter{Status: models.StatusWaiting, CreatedBefore: cutoff})
	if err != nil {
		return 0, fmt.Errorf("list waiting sessions: %w", err)
	}

	removed := 0
	for _, candidate := range stale {
		ok, err := s.expire(ctx, candidate.ID, cutoff)
		if err != nil {
			s.logger.WithError(err).Warnf("failed to expire session %s", candidate.ID)
			continue
		}
		if ok {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Infof("expired %d waiting sessions", removed)
	}
	return removed, nil
}

// expire re-reads the session under its lock so a join racing the sweep wins.
func (s *Store) expire(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	defer s.lock(id)()

	sess, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if sess.Status != models.StatusWaiting || !sess.CreatedAt.Before(cutoff) {
		return false, nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return false, err
	}
	s.publish(ctx, models.EventSessionExpired, sess, "")
	return true, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.waitingTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.WithError(err).Warn("session sweep failed")
			}
		}
	}
}

// publish hands a snapshot to the notifier. Delivery failures are logged, never returned:
// the change is already committed.
func (s *Store) publish(ctx context.Context, typ models.EventType, sess *models.GameSession, actor string) {
	if s.notifier == nil {
		return
	}
	ev := models.SessionEvent{Type: typ, Session: sess.Clone(), Actor: actor}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.logger.WithError(err).Warnf("failed to publish %s for session %s", typ, sess.ID)
	}
}

func (s *Store) record(ctx context.Context, sess *models.GameSession, actor string, mv game.Move) {
	if s.history == nil {
		return
	}
	rec := models.MoveRecord{
		SessionID:   sess.ID,
		GameID:      sess.GameID,
		Version:     sess.Version,
		Participant: actor,
		Move:        mv,
		Status:      sess.Status,
		Winner:      sess.Winner,
		Timestamp:   sess.UpdatedAt.UnixMilli(),
	}
	if err := s.history.Record(ctx, rec); err != nil {
		s.logger.WithError(err).Warnf("failed to record move for session %s", sess.ID)
	}
}
