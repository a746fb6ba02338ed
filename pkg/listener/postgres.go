package listener

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/lib/pq"

	"diagflow/pkg/errors"
	"diagflow/pkg/migrations"
	"diagflow/pkg/models"
	"diagflow/pkg/persist"
)

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// DSN, when set, is used instead of the individual fields.
	DSN string `mapstructure:"dsn"`
}

func (c PostgresConfig) dataSource() string {
	if c.DSN != "" {
		return c.DSN
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

const insertMessageSQL = `
INSERT INTO diag_messages (
    id, kind, text, reported_at, scope_name, scope_depth,
    namespace, type_name, method, file, line,
    thread_id, thread_name, payload_kind, record
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO NOTHING`

// PostgresListener inserts one row per message. The schema is migrated on
// open.
type PostgresListener struct {
	Base
	cfg  PostgresConfig
	opts remoteOptions

	mu    sync.Mutex
	db    *sql.DB
	owned bool
}

func NewPostgresListener(id int, cfg PostgresConfig, opts ...RemoteOption) *PostgresListener {
	return &PostgresListener{
		Base: Base{id: id, name: "postgres"},
		cfg:  cfg,
		opts: newRemoteOptions(opts),
	}
}

// NewPostgresListenerWithDB uses a pool owned by the caller; Close leaves it
// open.
func NewPostgresListenerWithDB(id int, db *sql.DB, opts ...RemoteOption) *PostgresListener {
	l := NewPostgresListener(id, PostgresConfig{}, opts...)
	l.db = db
	return l
}

func (l *PostgresListener) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IsOpen() {
		return nil
	}

	if l.db == nil {
		db, err := sql.Open("postgres", l.cfg.dataSource())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		l.db = db
		l.owned = true
	}

	db := l.db
	if err := l.opts.connect(ctx, Label(l), db.PingContext); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrations.MigratePostgres(db); err != nil {
		return err
	}

	l.setOpen(true)
	l.opts.logger.InfowCtx(ctx, "PostgreSQL listener opened")
	return nil
}

func (l *PostgresListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setOpen(false)
	if l.db == nil || !l.owned {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	l.owned = false
	return err
}

func (l *PostgresListener) Dispatch(ctx context.Context, msg *models.Message) error {
	l.mu.Lock()
	db := l.db
	l.mu.Unlock()

	if db == nil || !l.IsOpen() {
		return errors.ErrUnavailable.WithMessage("postgres listener is not open")
	}

	record, err := json.Marshal(persist.NewRecord(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	var scopeName sql.NullString
	var scopeDepth sql.NullInt32
	if msg.Scope != nil {
		scopeName = sql.NullString{String: msg.Scope.Name, Valid: true}
		scopeDepth = sql.NullInt32{Int32: int32(msg.Scope.Depth), Valid: true}
	}
	threadName := sql.NullString{String: msg.ThreadName, Valid: msg.ThreadName != ""}

	_, err = db.ExecContext(ctx, insertMessageSQL,
		msg.ID, string(msg.Kind), msg.Text, msg.Timestamp, scopeName, scopeDepth,
		msg.Origin.Namespace, msg.Origin.Type, msg.Origin.Method, msg.Origin.File, msg.Origin.Line,
		msg.ThreadID, threadName, string(msg.PayloadKind), string(record),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	l.next()
	return nil
}

func (l *PostgresListener) Check(ctx context.Context) error {
	l.mu.Lock()
	db := l.db
	l.mu.Unlock()

	if db == nil {
		return errors.ErrUnavailable.WithMessage("postgres listener is not open")
	}
	return db.PingContext(ctx)
}
