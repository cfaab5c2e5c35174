package storage

import (
	"fmt"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Opens a journal. For sqlite, dsn is the directory holding the
// database file, or blank for an in-memory database. For postgres,
// it's the connection string.
func Open(backend string, dsn string) (Storage, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStorage(), nil
	case BackendSQLite:
		if dsn == "" {
			return NewSQLiteStorage()
		}
		return NewSQLiteStorage(SQLiteConfig{OnDisk: true, Directory: dsn})
	case BackendPostgres:
		return NewPSQLStorage(dsn, false)
	}
	return nil, fmt.Errorf("unknown journal backend: %q", backend)
}
