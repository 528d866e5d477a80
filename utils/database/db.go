package database

import (
	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a punishment, task or rule does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateRule is returned when a rule with the same amount and window already exists.
	ErrDuplicateRule = errors.New("an escalation with this amount and window already exists")
)

const schema = `
CREATE TABLE IF NOT EXISTS punishments (
    id INTEGER PRIMARY KEY,
    guild_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    moderator_id TEXT NOT NULL,
    type TEXT NOT NULL,
    date INTEGER NOT NULL,
    expires INTEGER,
    reason TEXT NOT NULL,
    automod INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_punishments_member ON punishments (guild_id, user_id, type);
CREATE INDEX IF NOT EXISTS idx_punishments_expires ON punishments (type, expires);

CREATE TABLE IF NOT EXISTS tasks (
    user_id TEXT NOT NULL,
    guild_id TEXT NOT NULL,
    type TEXT NOT NULL,
    expires INTEGER NOT NULL,
    PRIMARY KEY (user_id, guild_id, type)
);
CREATE INDEX IF NOT EXISTS idx_tasks_expires ON tasks (expires);

CREATE TABLE IF NOT EXISTS escalations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    guild_id TEXT NOT NULL,
    source TEXT NOT NULL,
    amount INTEGER NOT NULL,
    within_ms INTEGER NOT NULL DEFAULT 0,
    punishment TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    UNIQUE (guild_id, source, amount, within_ms)
);`

// Open connects to the SQLite database at path and ensures the schema exists.
// Pass ":memory:" for a private in-memory database.
func Open(path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if path == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates any missing tables and indexes. It is safe to run repeatedly.
func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}
	return nil
}

// Store groups the three stores that share one database handle.
type Store struct {
	DB          *sqlx.DB
	Punishments *PunishmentStore
	Tasks       *TaskStore
	Rules       *RuleStore
}

// New builds the stores on top of db. nodeID selects the snowflake node used for punishment ids.
func New(db *sqlx.DB, nodeID int64) (*Store, error) {
	ids, err := NewIDGenerator(nodeID)
	if err != nil {
		return nil, err
	}
	return &Store{
		DB:          db,
		Punishments: NewPunishmentStore(db, ids),
		Tasks:       NewTaskStore(db),
		Rules:       NewRuleStore(db),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
