// internal/historian/historian.go
package historian

import (
	"context"
	"errors"
	"time"

	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/sirupsen/logrus"
)

// Source yields queued move records. Pop returns (nil, nil) when nothing arrived in time.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.MoveRecord, error)
}

// Sink persists a batch of move records. Re-inserting a record must be harmless.
type Sink interface {
	InsertMoves(ctx context.Context, recs []models.MoveRecord) error
}

// Options tunes batching.
type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	// PopTimeout bounds each blocking read so flushes and shutdown are not starved.
	PopTimeout time.Duration
	// ErrorBackoff is the pause after a failed read so an unreachable queue is not hammered.
	ErrorBackoff time.Duration
	Logger       *logrus.Logger
}

// Service drains the move queue into durable storage in batches.
type Service struct {
	source     Source
	sink       Sink
	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration
	backoff    time.Duration
	logger     *logrus.Logger

	batch     []models.MoveRecord
	lastFlush time.Time
}

// New constructs a Service. Zero options fall back to 20 records, 500ms, 3s and 1s.
func New(source Source, sink Sink, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Service{
		source:     source,
		sink:       sink,
		batchSize:  opts.BatchSize,
		flushDelay: opts.FlushDelay,
		popTimeout: opts.PopTimeout,
		backoff:    opts.ErrorBackoff,
		logger:     opts.Logger,
		batch:      make([]models.MoveRecord, 0, opts.BatchSize),
	}
}

// Run reads until ctx is cancelled, then flushes what is left and returns.
func (s *Service) Run(ctx context.Context) error {
	s.lastFlush = time.Now()
	s.logger.Info("historian started")
	for {
		if ctx.Err() != nil {
			// final flush gets its own deadline since ctx is already done
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(flushCtx)
			cancel()
			s.logger.Info("historian shutting down")
			return nil
		}

		rec, err := s.source.Pop(ctx, s.popTimeout)
		switch {
		case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			continue
		case err != nil:
			s.logger.WithError(err).Errorf("failed to read move queue; retrying in %s", s.backoff)
			select {
			case <-ctx.Done():
			case <-time.After(s.backoff):
			}
		case rec != nil:
			s.batch = append(s.batch, *rec)
		}

		if len(s.batch) >= s.batchSize || (len(s.batch) > 0 && time.Since(s.lastFlush) >= s.flushDelay) {
			s.flush(ctx)
		}
	}
}

// flush writes the pending batch. On failure the batch is kept and retried on the next flush.
func (s *Service) flush(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	if err := s.sink.InsertMoves(ctx, s.batch); err != nil {
		s.logger.WithError(err).Errorf("failed to flush %d moves", len(s.batch))
		return
	}
	s.logger.Debugf("flushed %d moves", len(s.batch))
	s.batch = s.batch[:0]
	s.lastFlush = time.Now()
}
