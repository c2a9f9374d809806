package audit

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteSink persists audit events to an embedded SQLite database, giving
// the core state machine's log_event hook a durable home
// without the live state machine ever reading from it. Grounded in the
// teacher's internal/database.RunMigrations goose-driven bootstrap, adapted
// to modernc.org/sqlite's pure-Go "sqlite" driver and an embedded migration
// set instead of a filesystem directory.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteSink opens (creating if absent) the database at path and runs
// pending migrations.
func OpenSQLiteSink(path string, logger *slog.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: opening %s: %w", path, err)
	}

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: running migrations: %w", err)
	}

	return &SQLiteSink{db: db, logger: logger}, nil
}

// Record implements Sink. The insert runs synchronously on the caller's
// goroutine; a write failure is logged, not returned, since Record is called
// from inside the core state machine's lock.
func (s *SQLiteSink) Record(ev Event) {
	_, err := s.db.Exec(
		`INSERT INTO audit_events (time, site, service, incident, type) VALUES (?, ?, ?, ?, ?)`,
		ev.Time, ev.Site, ev.Service, ev.Incident, ev.Type,
	)
	if err != nil {
		s.logger.Error("audit: failed to record event", "error", err, "site", ev.Site, "type", ev.Type)
	}
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
