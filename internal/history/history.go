// Package history keeps a local catalog of finished downloads in SQLite, so
// repeat runs can report what was already fetched and users can list past
// downloads without scanning the output directory.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one finished download.
type Record struct {
	ID            int64
	SourceURL     string
	Title         string
	Artist        string
	Album         string
	Path          string
	Kind          string // audio or video
	TrackNumber   int
	PlaylistTitle string
	Tagged        bool
	TagError      string
	CreatedAt     time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    source_url      TEXT NOT NULL DEFAULT '',
    title           TEXT NOT NULL DEFAULT '',
    artist          TEXT NOT NULL DEFAULT '',
    album           TEXT NOT NULL DEFAULT '',
    path            TEXT NOT NULL UNIQUE,
    kind            TEXT NOT NULL DEFAULT 'audio',
    track_number    INTEGER NOT NULL DEFAULT 0,
    playlist_title  TEXT NOT NULL DEFAULT '',
    tagged          INTEGER NOT NULL DEFAULT 0,
    tag_error       TEXT NOT NULL DEFAULT '',
    created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_downloads_source_url ON downloads(source_url);
CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
`

// Store wraps the SQLite connection. Methods are safe for use from the
// queue worker while the CLI reads concurrently.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database at %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add records a finished download. The path is the conflict key: re-downloading
// to the same file updates the existing row instead of duplicating it.
func (s *Store) Add(r Record) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("history store not open")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tagged := 0
	if r.Tagged {
		tagged = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO downloads (
			source_url, title, artist, album, path, kind,
			track_number, playlist_title, tagged, tag_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			source_url=excluded.source_url, title=excluded.title,
			artist=excluded.artist, album=excluded.album, kind=excluded.kind,
			track_number=excluded.track_number,
			playlist_title=excluded.playlist_title,
			tagged=excluded.tagged, tag_error=excluded.tag_error,
			created_at=datetime('now')
	`,
		r.SourceURL, r.Title, r.Artist, r.Album, r.Path, r.Kind,
		r.TrackNumber, r.PlaylistTitle, tagged, r.TagError,
	)
	if err != nil {
		return 0, fmt.Errorf("recording download: %w", err)
	}

	var id int64
	if err := s.db.QueryRow("SELECT id FROM downloads WHERE path = ?", r.Path).Scan(&id); err != nil {
		return 0, fmt.Errorf("querying recorded download id: %w", err)
	}
	return id, nil
}

// Recent returns the newest records, most recent first.
func (s *Store) Recent(limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history store not open")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, source_url, title, artist, album, path, kind,
			track_number, playlist_title, tagged, tag_error, created_at
		FROM downloads
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var tagged int
		if err := rows.Scan(
			&r.ID, &r.SourceURL, &r.Title, &r.Artist, &r.Album, &r.Path, &r.Kind,
			&r.TrackNumber, &r.PlaylistTitle, &tagged, &r.TagError, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		r.Tagged = tagged != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// Seen reports whether a queue URL already has a recorded download.
func (s *Store) Seen(sourceURL string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("history store not open")
	}
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM downloads WHERE source_url = ?", sourceURL).Scan(&count); err != nil {
		return false, fmt.Errorf("counting history rows: %w", err)
	}
	return count > 0, nil
}

// Count returns the number of recorded downloads.
func (s *Store) Count() (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("history store not open")
	}
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM downloads").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting history rows: %w", err)
	}
	return count, nil
}
