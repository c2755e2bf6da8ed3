// Package store persists sessions and drawings in SQLite. Drawing results
// are stored as a JSON column; status transitions are enforced in SQL so
// concurrent pipeline goroutines cannot move a drawing backwards.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/drawmind/htp-server/pkg/htp"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrDrawingNotFound = errors.New("drawing not found")
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(ctx context.Context, sess *htp.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, gender, birth, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Gender, sess.Birth, sess.PasswordHash, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession loads one session together with all its drawings.
func (s *Store) GetSession(ctx context.Context, id string) (*htp.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, gender, birth, password_hash, overall_summary, diagnosis_summary, created_at
		FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, type, filename, path, erase_count, reset_count,
		       duration, pen_usage, status, result, created_at, updated_at
		FROM drawings WHERE session_id = ? ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load drawings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, _, err := scanDrawing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan drawing: %w", err)
		}
		sess.Drawings = append(sess.Drawings, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drawings: %w", err)
	}
	return sess, nil
}

// FindSessionsByName returns all sessions registered under a name, newest
// first. Password verification against the bcrypt hashes happens in the
// handler, not here.
func (s *Store) FindSessionsByName(ctx context.Context, name string) ([]htp.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, gender, birth, password_hash, overall_summary, diagnosis_summary, created_at
		FROM sessions WHERE name = ? ORDER BY created_at DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", err)
	}
	defer rows.Close()

	var out []htp.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return out, nil
}

// AddDrawing inserts a new drawing owned by a session.
func (s *Store) AddDrawing(ctx context.Context, sessionID string, d *htp.Drawing) error {
	penUsage := ""
	if len(d.PenUsage) > 0 {
		b, err := json.Marshal(d.PenUsage)
		if err != nil {
			return fmt.Errorf("failed to encode pen usage: %w", err)
		}
		penUsage = string(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drawings (id, session_id, type, filename, path, erase_count,
		                      reset_count, duration, pen_usage, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, sessionID, string(d.Type), d.Filename, d.Path, d.EraseCount,
		d.ResetCount, d.Duration, penUsage, string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add drawing: %w", err)
	}
	return nil
}

// GetDrawing loads one drawing, verifying session ownership.
func (s *Store) GetDrawing(ctx context.Context, sessionID, drawingID string) (*htp.Drawing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, type, filename, path, erase_count, reset_count,
		       duration, pen_usage, status, result, created_at, updated_at
		FROM drawings WHERE id = ? AND session_id = ?`, drawingID, sessionID)

	d, _, err := scanDrawing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDrawingNotFound
		}
		return nil, fmt.Errorf("failed to load drawing: %w", err)
	}
	return d, nil
}

// UpdateDrawingStatus moves a drawing to a new status. Terminal states are
// sticky: once done or error, further transitions are rejected in SQL.
func (s *Store) UpdateDrawingStatus(ctx context.Context, drawingID string, status htp.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drawings SET status = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('done', 'error')`,
		string(status), time.Now().UTC(), drawingID,
	)
	if err != nil {
		return fmt.Errorf("failed to update drawing status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update drawing status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("drawing %s: %w or already terminal", drawingID, ErrDrawingNotFound)
	}
	return nil
}

// SetDrawingResult stores the final pipeline output and moves the drawing
// to its terminal status in one statement.
func (s *Store) SetDrawingResult(ctx context.Context, drawingID string, status htp.Status, result *htp.DrawingResult) error {
	encoded := ""
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode drawing result: %w", err)
		}
		encoded = string(b)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE drawings SET status = ?, result = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('done', 'error')`,
		string(status), encoded, time.Now().UTC(), drawingID,
	)
	if err != nil {
		return fmt.Errorf("failed to store drawing result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to store drawing result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("drawing %s: %w or already terminal", drawingID, ErrDrawingNotFound)
	}
	return nil
}

// SetColorProfile merges a color profile into the drawing's stored result
// without disturbing detection or analysis already present.
func (s *Store) SetColorProfile(ctx context.Context, sessionID, drawingID string, profile *htp.ColorProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `
		SELECT result FROM drawings WHERE id = ? AND session_id = ?`,
		drawingID, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDrawingNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load drawing result: %w", err)
	}

	var result htp.DrawingResult
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return fmt.Errorf("failed to decode drawing result: %w", err)
		}
	}
	result.Colors = profile

	b, err := json.Marshal(&result)
	if err != nil {
		return fmt.Errorf("failed to encode drawing result: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE drawings SET result = ?, updated_at = ? WHERE id = ?`,
		string(b), time.Now().UTC(), drawingID); err != nil {
		return fmt.Errorf("failed to store color profile: %w", err)
	}
	return tx.Commit()
}

// SetAggregate stores the session-wide synthesis. The conditional write
// makes the operation at-most-once: it reports whether this call won the
// race to fill the summary.
func (s *Store) SetAggregate(ctx context.Context, sessionID string, agg *htp.AggregateSummary) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET overall_summary = ?, diagnosis_summary = ?
		WHERE id = ? AND overall_summary = ''`,
		agg.OverallSummary, agg.DiagnosisSummary, sessionID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to store aggregate summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to store aggregate summary: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*htp.Session, error) {
	var sess htp.Session
	err := row.Scan(&sess.ID, &sess.Name, &sess.Gender, &sess.Birth,
		&sess.PasswordHash, &sess.OverallSummary, &sess.DiagnosisSummary, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func scanDrawing(row scanner) (*htp.Drawing, string, error) {
	var (
		d         htp.Drawing
		sessionID string
		typ       string
		penUsage  string
		status    string
		result    string
	)
	err := row.Scan(&d.ID, &sessionID, &typ, &d.Filename, &d.Path,
		&d.EraseCount, &d.ResetCount, &d.Duration, &penUsage, &status,
		&result, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, "", err
	}
	d.Type = htp.DrawingType(typ)
	d.Status = htp.Status(status)
	if penUsage != "" {
		if err := json.Unmarshal([]byte(penUsage), &d.PenUsage); err != nil {
			return nil, "", fmt.Errorf("invalid pen usage payload: %w", err)
		}
	}
	if result != "" {
		d.Result = &htp.DrawingResult{}
		if err := json.Unmarshal([]byte(result), d.Result); err != nil {
			return nil, "", fmt.Errorf("invalid result payload: %w", err)
		}
	}
	return &d, sessionID, nil
}
