// Package history keeps a log of classified messages in SQLite or PostgreSQL.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	retry "github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/YuminosukeSato/spamensemble/ensemble"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// ModelUsed is recorded for every ensemble verdict.
const ModelUsed = "ensemble_4_models"

// Defaults for Store.
const (
	DefaultContentLimit = 500
	DefaultListLimit    = 100
)

// Engine is the database flavour behind a Store.
type Engine string

const (
	Sqlite   Engine = "sqlite"
	Postgres Engine = "postgres"
)

// Entry is one logged detection.
type Entry struct {
	ID          int64     `db:"id" json:"id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Email       string    `db:"email" json:"email"`
	Content     string    `db:"content" json:"content"`
	Prediction  string    `db:"prediction" json:"prediction"`
	Probability float64   `db:"probability" json:"probability"`
	ModelUsed   string    `db:"model_used" json:"model_used"`
}

// NewEntry builds the log entry for a verdict. Probability is the ensemble
// confidence scaled to [0, 1].
func NewEntry(email, content string, res *ensemble.Result) Entry {
	return Entry{
		Email:       email,
		Content:     content,
		Prediction:  res.FinalPrediction,
		Probability: res.Confidence / 100,
		ModelUsed:   ModelUsed,
	}
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS detection_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME NOT NULL,
	email TEXT NOT NULL,
	content TEXT NOT NULL,
	prediction TEXT NOT NULL,
	probability REAL NOT NULL,
	model_used TEXT NOT NULL
)`

const postgresSchema = `CREATE TABLE IF NOT EXISTS detection_log (
	id BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	email TEXT NOT NULL,
	content TEXT NOT NULL,
	prediction TEXT NOT NULL,
	probability DOUBLE PRECISION NOT NULL,
	model_used TEXT NOT NULL
)`

// Store writes and lists detection entries.
type Store struct {
	db           *sqlx.DB
	engine       Engine
	contentLimit int
	now          func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithContentLimit sets how many runes of content are kept.
func WithContentLimit(n int) Option {
	return func(s *Store) { s.contentLimit = n }
}

// EngineFor picks the engine from a DSN: postgres:// and postgresql:// URLs
// are PostgreSQL, anything else is a SQLite file.
func EngineFor(dsn string) Engine {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return Sqlite
}

// Open connects to dsn and creates the table if needed.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	engine := EngineFor(dsn)
	db, err := connect(ctx, engine, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s history", engine)
	}
	schema := postgresSchema
	if engine == Sqlite {
		// one writer at a time avoids SQLITE_BUSY under concurrent requests
		db.SetMaxOpenConns(1)
		schema = sqliteSchema
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create detection_log table")
	}

	s := &Store{db: db, engine: engine, contentLimit: DefaultContentLimit, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// connect opens the database. A PostgreSQL server that is still starting is
// retried a few times; a SQLite file either opens or not.
func connect(ctx context.Context, engine Engine, dsn string) (*sqlx.DB, error) {
	if engine == Sqlite {
		return sqlx.ConnectContext(ctx, string(engine), dsn)
	}
	var db *sqlx.DB
	backoff := retry.WithMaxRetries(4, retry.NewExponential(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		if db, err = sqlx.ConnectContext(ctx, string(engine), dsn); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return db, err
}

// Engine returns the database flavour.
func (s *Store) Engine() Engine { return s.engine }

// Write stores e, truncating its content, and returns the new id.
// A zero CreatedAt is set to the current time.
func (s *Store) Write(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.Content = truncate(e.Content, s.contentLimit)

	query := s.db.Rebind(`INSERT INTO detection_log (created_at, email, content, prediction, probability, model_used)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := s.db.QueryRowxContext(ctx, query, e.CreatedAt, e.Email, e.Content, e.Prediction, e.Probability, e.ModelUsed).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert detection entry")
	}
	return id, nil
}

// List returns up to limit entries, newest first. A limit <= 0 means DefaultListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := s.db.Rebind(`SELECT id, created_at, email, content, prediction, probability, model_used
		FROM detection_log ORDER BY created_at DESC, id DESC LIMIT ?`)
	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, errors.Wrap(err, "list detection entries")
	}
	for i := range entries {
		entries[i].CreatedAt = entries[i].CreatedAt.UTC()
	}
	return entries, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
