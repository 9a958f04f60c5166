package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/tldetector/internal/coordinator"
	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/perception"
)

// ErrSessionNotFound is returned when a session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Session is one detector run.
type Session struct {
	ID         string     `json:"session_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Source     string     `json:"source"`
	Site       string     `json:"site"`
	TuningJSON string     `json:"tuning_json"`
}

// StartSession creates a session row with a fresh ID. tuning is stored as
// JSON for later comparison between runs.
func (db *DB) StartSession(ctx context.Context, source, site string, tuning any, at time.Time) (*Session, error) {
	tuningJSON := []byte("{}")
	if tuning != nil {
		var err error
		if tuningJSON, err = json.Marshal(tuning); err != nil {
			return nil, fmt.Errorf("failed to encode tuning: %w", err)
		}
	}

	s := &Session{
		ID:         uuid.NewString(),
		StartedAt:  at,
		Source:     source,
		Site:       site,
		TuningJSON: string(tuningJSON),
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, started_unix_nanos, source, site, tuning_json) VALUES (?, ?, ?, ?, ?)`,
		s.ID, at.UnixNano(), s.Source, s.Site, s.TuningJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return s, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(ctx context.Context, id string, at time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE sessions SET ended_unix_nanos = ? WHERE session_id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// GetSession loads one session.
func (db *DB) GetSession(ctx context.Context, id string) (*Session, error) {
	row := db.QueryRowContext(ctx,
		`SELECT session_id, started_unix_nanos, ended_unix_nanos, source, site, tuning_json FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// ListSessions returns the most recent sessions first.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT session_id, started_unix_nanos, ended_unix_nanos, source, site, tuning_json
		 FROM sessions ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&s.ID, &started, &ended, &s.Source, &s.Site, &s.TuningJSON); err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		s.EndedAt = &t
	}
	return &s, nil
}

// RecordDecision stores one published decision.
func (db *DB) RecordDecision(ctx context.Context, sessionID string, d coordinator.Decision) error {
	var px, py sql.NullInt64
	if d.Pixel != nil {
		px = sql.NullInt64{Int64: int64(d.Pixel.X), Valid: true}
		py = sql.NullInt64{Int64: int64(d.Pixel.Y), Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO decisions (
			session_id, seq, frame_unix_nanos, waypoint, raw_waypoint, raw_color,
			camera_color, confirmed_color, light_id, pixel_x, pixel_y, throttled, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, d.Seq, d.At.UnixNano(), d.Waypoint, d.RawWaypoint, int(d.RawColor),
		int(d.CameraColor), int(d.Confirmed), d.LightID, px, py, d.Throttled, d.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision %d: %w", d.Seq, err)
	}
	return nil
}

// Decisions returns a session's decisions in frame order. A non-positive
// limit returns all of them.
func (db *DB) Decisions(ctx context.Context, sessionID string, limit int) ([]coordinator.Decision, error) {
	query := `SELECT seq, frame_unix_nanos, waypoint, raw_waypoint, raw_color, camera_color,
			confirmed_color, light_id, pixel_x, pixel_y, throttled, reason
		FROM decisions WHERE session_id = ? ORDER BY seq ASC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []coordinator.Decision
	for rows.Next() {
		var (
			d                       coordinator.Decision
			at                      int64
			rawColor, camColor, cfm int
			px, py                  sql.NullInt64
		)
		if err := rows.Scan(&d.Seq, &at, &d.Waypoint, &d.RawWaypoint, &rawColor, &camColor,
			&cfm, &d.LightID, &px, &py, &d.Throttled, &d.Reason); err != nil {
			return nil, err
		}
		d.At = time.Unix(0, at).UTC()
		d.RawColor = perception.Color(rawColor)
		d.CameraColor = perception.Color(camColor)
		d.Confirmed = perception.Color(cfm)
		if px.Valid && py.Valid {
			d.Pixel = &geometry.Pixel{X: int(px.Int64), Y: int(py.Int64)}
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// DecisionLog is a coordinator.Publisher that stores every decision under
// one session.
type DecisionLog struct {
	db        *DB
	sessionID string
}

// NewDecisionLog returns a publisher writing to sessionID.
func NewDecisionLog(db *DB, sessionID string) *DecisionLog {
	return &DecisionLog{db: db, sessionID: sessionID}
}

// SessionID returns the session decisions are recorded under.
func (l *DecisionLog) SessionID() string { return l.sessionID }

// Publish implements coordinator.Publisher.
func (l *DecisionLog) Publish(ctx context.Context, d coordinator.Decision) error {
	return l.db.RecordDecision(ctx, l.sessionID, d)
}
