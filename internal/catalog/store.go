// Package catalog records index layouts in a SQLite database so a session
// can be listed and inspected later without reopening its photon files.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/emcview/internal/frameindex"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Geometry is one distinct detector geometry of a session.
type Geometry struct {
	Index      int
	Path       string
	NumPix     int
	ActivePix  int
	Calibrated bool
}

// Session is a recorded index layout.
type Session struct {
	ID            string
	ConfigPath    string
	CreatedAt     time.Time
	TotalFrames   int
	ValidFrames   int
	BlacklistPath string
	Geometries    []Geometry
	Sources       []frameindex.Span
}

// ExcludedFrames returns the number of blacklisted frames.
func (s Session) ExcludedFrames() int { return s.TotalFrames - s.ValidFrames }

// FromView captures the layout of view.
func FromView(configPath, blacklistPath string, view *frameindex.View) Session {
	idx := view.Index()
	s := Session{
		ConfigPath:    configPath,
		TotalFrames:   idx.TotalFrames(),
		ValidFrames:   view.TotalFrames(),
		BlacklistPath: blacklistPath,
		Sources:       idx.Spans(),
	}
	for i, g := range idx.Geometries() {
		_, _, calibrated := g.Calibration()
		s.Geometries = append(s.Geometries, Geometry{
			Index:      i,
			Path:       g.Path(),
			NumPix:     g.NumPix(),
			ActivePix:  g.ActiveCount(),
			Calibrated: calibrated,
		})
	}
	return s
}

// Store is a session catalog backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the catalog at path and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession stores sess and returns its id. A new UUID is assigned when
// sess.ID is empty, and CreatedAt defaults to now.
func (s *Store) SaveSession(sess Session) (string, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (session_id, config_path, created_unix_ns, total_frames, valid_frames, excluded_frames, blacklist_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ConfigPath, sess.CreatedAt.UnixNano(), sess.TotalFrames, sess.ValidFrames, sess.ExcludedFrames(), sess.BlacklistPath,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	for _, g := range sess.Geometries {
		_, err := tx.Exec(`
			INSERT INTO session_geometries (session_id, geometry_index, path, num_pix, active_pix, calibrated)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, g.Index, g.Path, g.NumPix, g.ActivePix, g.Calibrated,
		)
		if err != nil {
			return "", fmt.Errorf("insert geometry %d: %w", g.Index, err)
		}
	}
	for _, sp := range sess.Sources {
		_, err := tx.Exec(`
			INSERT INTO session_sources (session_id, source_index, path, first_frame, frame_count, geometry_index)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, sp.Source, sp.Path, sp.First, sp.Count, sp.GeometryIndex,
		)
		if err != nil {
			return "", fmt.Errorf("insert source %d: %w", sp.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit session: %w", err)
	}
	return sess.ID, nil
}

// Session loads a session with its geometries and sources.
func (s *Store) Session(id string) (*Session, error) {
	sess := &Session{ID: id}
	var created int64
	err := s.db.QueryRow(`
		SELECT config_path, created_unix_ns, total_frames, valid_frames, blacklist_path
		FROM sessions WHERE session_id = ?`, id,
	).Scan(&sess.ConfigPath, &created, &sess.TotalFrames, &sess.ValidFrames, &sess.BlacklistPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	sess.CreatedAt = time.Unix(0, created)

	geomRows, err := s.db.Query(`
		SELECT geometry_index, path, num_pix, active_pix, calibrated
		FROM session_geometries WHERE session_id = ? ORDER BY geometry_index`, id)
	if err != nil {
		return nil, fmt.Errorf("query geometries: %w", err)
	}
	defer geomRows.Close()
	for geomRows.Next() {
		var g Geometry
		if err := geomRows.Scan(&g.Index, &g.Path, &g.NumPix, &g.ActivePix, &g.Calibrated); err != nil {
			return nil, fmt.Errorf("scan geometry: %w", err)
		}
		sess.Geometries = append(sess.Geometries, g)
	}
	if err := geomRows.Err(); err != nil {
		return nil, err
	}

	srcRows, err := s.db.Query(`
		SELECT source_index, path, first_frame, frame_count, geometry_index
		FROM session_sources WHERE session_id = ? ORDER BY source_index`, id)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer srcRows.Close()
	for srcRows.Next() {
		var sp frameindex.Span
		if err := srcRows.Scan(&sp.Source, &sp.Path, &sp.First, &sp.Count, &sp.GeometryIndex); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if sp.GeometryIndex >= 0 && sp.GeometryIndex < len(sess.Geometries) {
			sp.GeometryPath = sess.Geometries[sp.GeometryIndex].Path
		}
		sess.Sources = append(sess.Sources, sp)
	}
	return sess, srcRows.Err()
}

// ListSessions returns every session, newest first. Geometries and sources
// are not loaded; use Session for the full layout.
func (s *Store) ListSessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT session_id, config_path, created_unix_ns, total_frames, valid_frames, blacklist_path
		FROM sessions ORDER BY created_unix_ns DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var created int64
		if err := rows.Scan(&sess.ID, &sess.ConfigPath, &created, &sess.TotalFrames, &sess.ValidFrames, &sess.BlacklistPath); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt = time.Unix(0, created)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its layout rows.
func (s *Store) DeleteSession(id string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
