// internal/database/postgres.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/jason-s-yu/playtogether/internal/session"
)

const pgUniqueViolation = "23505"

// PostgresRepository stores sessions in PostgreSQL with the game state as JSONB.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	decoder models.StateDecoder
}

// NewPostgresRepository wraps pool. Call Migrate before first use.
func NewPostgresRepository(pool *pgxpool.Pool, dec models.StateDecoder) *PostgresRepository {
	return &PostgresRepository{pool: pool, decoder: dec}
}

// Migrate creates the tables if they are missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, s *models.GameSession) error {
	state, err := json.Marshal(s.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	q := `
		INSERT INTO game_sessions (id, game_id, participants, state, status, winner, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, q,
		s.ID, s.GameID, s.Participants, state, string(s.Status), s.Winner, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return session.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const pgSessionColumns = `id, game_id, participants, state, status, winner, version, created_at, updated_at`

func (r *PostgresRepository) scan(row pgx.Row) (*models.GameSession, error) {
	var (
		s      models.GameSession
		state  []byte
		status string
	)
	err := row.Scan(&s.ID, &s.GameID, &s.Participants, &state, &status, &s.Winner, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = models.Status(status)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	s.State, err = r.decoder.DecodeState(s.GameID, state)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	q := `SELECT ` + pgSessionColumns + ` FROM game_sessions WHERE id = $1`
	s, err := r.scan(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// Update is a compare-and-swap on the version column.
func (r *PostgresRepository) Update(ctx context.Context, s *models.GameSession, expectedVersion int) error {
	state, err := json.Marshal(s.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE game_sessions
			SET participants = $3, state = $4, status = $5, winner = $6, version = $7, updated_at = $8
			WHERE id = $1 AND version = $2
		`
		tag, err := tx.Exec(ctx, q, s.ID, expectedVersion, s.Participants, state, string(s.Status), s.Winner, s.Version, s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update session %s: %w", s.ID, err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM game_sessions WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check session %s: %w", s.ID, err)
		}
		if !exists {
			return session.ErrNotFound
		}
		return session.ErrConflict
	})
}

func (r *PostgresRepository) List(ctx context.Context, f session.Filter) ([]*models.GameSession, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Participant != "" {
		args = append(args, f.Participant)
		where = append(where, fmt.Sprintf("$%d = ANY(participants)", len(args)))
	}
	if !f.CreatedBefore.IsZero() {
		args = append(args, f.CreatedBefore)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	q := `SELECT ` + pgSessionColumns + ` FROM game_sessions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.GameSession, 0)
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM game_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// InsertMoves writes a batch of move records in one transaction. Records already stored
// are skipped, so a redelivered batch is harmless.
func (r *PostgresRepository) InsertMoves(ctx context.Context, recs []models.MoveRecord) error {
	if len(recs) == 0 {
		return nil
	}
	q := `
		INSERT INTO session_moves (session_id, version, game_id, participant, move, status, winner, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, version) DO NOTHING
	`
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			mv, err := json.Marshal(rec.Move)
			if err != nil {
				return fmt.Errorf("marshal move: %w", err)
			}
			_, err = tx.Exec(ctx, q,
				rec.SessionID, rec.Version, rec.GameID, rec.Participant, mv,
				string(rec.Status), rec.Winner, time.UnixMilli(rec.Timestamp).UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert move %s/%d: %w", rec.SessionID, rec.Version, err)
			}
		}
		return nil
	})
}
