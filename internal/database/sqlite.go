// internal/database/sqlite.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/jason-s-yu/playtogether/internal/session"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteRepository stores sessions in a single SQLite file. It suits a one-instance
// deployment that should survive restarts without running PostgreSQL.
type SQLiteRepository struct {
	db      *sql.DB
	decoder models.StateDecoder
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, dec models.StateDecoder) (*SQLiteRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &SQLiteRepository{db: db, decoder: dec}, nil
}

// Close closes the database handle.
func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func (r *SQLiteRepository) Insert(ctx context.Context, s *models.GameSession) error {
	participants, state, err := encodeSessionColumns(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO game_sessions (id, game_id, participants, state, status, winner, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.GameID, participants, state, string(s.Status), s.Winner, s.Version,
		toMillis(s.CreatedAt), toMillis(s.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return session.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func encodeSessionColumns(s *models.GameSession) (string, string, error) {
	participants, err := json.Marshal(s.Participants)
	if err != nil {
		return "", "", fmt.Errorf("marshal participants: %w", err)
	}
	state, err := json.Marshal(s.State)
	if err != nil {
		return "", "", fmt.Errorf("marshal state: %w", err)
	}
	return string(participants), string(state), nil
}

const sqliteSessionColumns = `id, game_id, participants, state, status, winner, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scan(row rowScanner) (*models.GameSession, error) {
	var (
		s                    models.GameSession
		id, participants     string
		state, status        string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &s.GameID, &participants, &state, &status, &s.Winner, &s.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse session id %q: %w", id, err)
	}
	s.ID = parsed
	if err := json.Unmarshal([]byte(participants), &s.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	s.State, err = r.decoder.DecodeState(s.GameID, []byte(state))
	if err != nil {
		return nil, err
	}
	s.Status = models.Status(status)
	s.CreatedAt = fromMillis(createdAt)
	s.UpdatedAt = fromMillis(updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteSessionColumns+` FROM game_sessions WHERE id = ?`, id.String())
	s, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, s *models.GameSession, expectedVersion int) error {
	participants, state, err := encodeSessionColumns(s)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE game_sessions
		 SET participants = ?, state = ?, status = ?, winner = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		participants, state, string(s.Status), s.Winner, s.Version, toMillis(s.UpdatedAt),
		s.ID.String(), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM game_sessions WHERE id = ?`, s.ID.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return session.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check session %s: %w", s.ID, err)
	}
	return session.ErrConflict
}

func (r *SQLiteRepository) List(ctx context.Context, f session.Filter) ([]*models.GameSession, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.CreatedBefore.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, toMillis(f.CreatedBefore))
	}
	q := `SELECT ` + sqliteSessionColumns + ` FROM game_sessions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
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
		// participants live in a JSON column, so that filter runs here
		if f.Participant != "" && s.Seat(f.Participant) < 0 {
			continue
		}
		out = append(out, s)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM game_sessions WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// InsertMoves writes a batch of move records in one transaction, skipping duplicates.
func (r *SQLiteRepository) InsertMoves(ctx context.Context, recs []models.MoveRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		mv, err := json.Marshal(rec.Move)
		if err != nil {
			return fmt.Errorf("marshal move: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO session_moves (session_id, version, game_id, participant, move, status, winner, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.SessionID.String(), rec.Version, rec.GameID, rec.Participant, string(mv),
			string(rec.Status), rec.Winner, rec.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert move %s/%d: %w", rec.SessionID, rec.Version, err)
		}
	}
	return tx.Commit()
}

// CountMoves returns how many history records exist for a session.
func (r *SQLiteRepository) CountMoves(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_moves WHERE session_id = ?`, sessionID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count moves: %w", err)
	}
	return n, nil
}
