package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tidbyt.dev/trainsignal/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

// Journal backed by sqlite. Times are stored as unix nanoseconds to
// keep ordering and filtering exact.
type SQLiteStorage struct {
	SQLiteConfig

	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = filepath.Join(directory, "announcements.db")
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is its own database.
	if !onDisk {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS announcement (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    record_id TEXT NOT NULL,
    station_code TEXT NOT NULL,
    destination_code TEXT NOT NULL,
    route_name TEXT NOT NULL,
    train_number TEXT NOT NULL,
    event_time INTEGER NOT NULL,
    announced_at INTEGER NOT NULL,
    error TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS announcement_announced_at ON announcement (announced_at);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating announcement table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		db: db,
	}, nil
}

func (s *SQLiteStorage) WriteAnnouncement(a *Announcement) error {
	_, err := s.db.Exec(`
INSERT INTO announcement (
    kind,
    record_id,
    station_code,
    destination_code,
    route_name,
    train_number,
    event_time,
    announced_at,
    error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Kind.String(),
		a.RecordID,
		a.StationCode,
		a.DestinationCode,
		a.RouteName,
		a.TrainNumber,
		unixNano(a.EventTime),
		unixNano(a.AnnouncedAt),
		a.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting announcement: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListAnnouncements(filter ListAnnouncementsFilter) ([]*Announcement, error) {
	query := `
SELECT
    kind,
    record_id,
    station_code,
    destination_code,
    route_name,
    train_number,
    event_time,
    announced_at,
    error
FROM announcement`

	conditions := []string{}
	params := []interface{}{}
	if filter.StationCode != "" {
		conditions = append(conditions, "station_code = ?")
		params = append(params, filter.StationCode)
	}
	if len(filter.Kinds) > 0 {
		placeholders := []string{}
		for _, kind := range filter.Kinds {
			placeholders = append(placeholders, "?")
			params = append(params, kind.String())
		}
		conditions = append(conditions, fmt.Sprintf("kind IN (%s)", strings.Join(placeholders, ", ")))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "announced_at >= ?")
		params = append(params, filter.Since.UnixNano())
	}
	if len(conditions) > 0 {
		query += "\nWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\nORDER BY announced_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf("\nLIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying announcements: %w", err)
	}
	defer rows.Close()

	result := []*Announcement{}
	for rows.Next() {
		a := &Announcement{}
		var kind string
		var eventTime, announcedAt int64
		err := rows.Scan(
			&kind,
			&a.RecordID,
			&a.StationCode,
			&a.DestinationCode,
			&a.RouteName,
			&a.TrainNumber,
			&eventTime,
			&announcedAt,
			&a.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning announcement: %w", err)
		}
		a.Kind, err = model.ParseEventKind(kind)
		if err != nil {
			return nil, err
		}
		a.EventTime = fromUnixNano(eventTime)
		a.AnnouncedAt = fromUnixNano(announcedAt)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating announcements: %w", err)
	}

	return result, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
