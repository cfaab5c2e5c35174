package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"tidbyt.dev/trainsignal/model"
)

type PSQLStorage struct {
	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`DROP TABLE IF EXISTS announcement;`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS announcement (
    id BIGSERIAL PRIMARY KEY,
    kind TEXT NOT NULL,
    record_id TEXT NOT NULL,
    station_code TEXT NOT NULL,
    destination_code TEXT NOT NULL,
    route_name TEXT NOT NULL,
    train_number TEXT NOT NULL,
    event_time TIMESTAMPTZ,
    announced_at TIMESTAMPTZ NOT NULL,
    error TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS announcement_announced_at ON announcement (announced_at);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating announcement table: %w", err)
	}

	return &PSQLStorage{db: db}, nil
}

func (s *PSQLStorage) WriteAnnouncement(a *Announcement) error {
	var eventTime interface{}
	if !a.EventTime.IsZero() {
		eventTime = a.EventTime.UTC()
	}

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
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.Kind.String(),
		a.RecordID,
		a.StationCode,
		a.DestinationCode,
		a.RouteName,
		a.TrainNumber,
		eventTime,
		a.AnnouncedAt.UTC(),
		a.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting announcement: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListAnnouncements(filter ListAnnouncementsFilter) ([]*Announcement, error) {
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
		params = append(params, filter.StationCode)
		conditions = append(conditions, fmt.Sprintf("station_code = $%d", len(params)))
	}
	if len(filter.Kinds) > 0 {
		kinds := []string{}
		for _, kind := range filter.Kinds {
			kinds = append(kinds, kind.String())
		}
		params = append(params, pq.Array(kinds))
		conditions = append(conditions, fmt.Sprintf("kind = ANY($%d)", len(params)))
	}
	if !filter.Since.IsZero() {
		params = append(params, filter.Since.UTC())
		conditions = append(conditions, fmt.Sprintf("announced_at >= $%d", len(params)))
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
		var eventTime pq.NullTime
		var announcedAt time.Time
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
		if eventTime.Valid {
			a.EventTime = eventTime.Time.UTC()
		}
		a.AnnouncedAt = announcedAt.UTC()
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating announcements: %w", err)
	}

	return result, nil
}

func (s *PSQLStorage) Close() error {
	return s.db.Close()
}
