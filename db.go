package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/khavishbhundoo/mysql-pdo-class/pkg/config"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know.
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

// DB is a single database session: one lazily opened connection, at most one
// prepared statement and at most one open transaction.
//
// A DB is not safe for concurrent use. Create one per logical session and
// call CloseConnection when done.
type DB struct {
	cfg    config.Config
	opener Opener
	logger zerolog.Logger
	id     string

	conn       *sqlx.DB
	tx         *sqlx.Tx
	stmt       *Stmt
	lastResult sql.Result
}

// NewDB creates a session for cfg. Empty fields take their defaults; the
// connection is opened on first use.
func NewDB(cfg config.Config, opt ...Option) (*DB, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	opts := getOpts(opt...)
	id := uuid.NewString()
	return &DB{
		cfg:    cfg,
		opener: opts.opener,
		logger: opts.logger.With().Str("session", id).Str("driver", cfg.Driver).Logger(),
		id:     id,
	}, nil
}

// ID identifies the session in log output.
func (d *DB) ID() string { return d.id }

// Config returns a copy of the session configuration.
func (d *DB) Config() config.Config { return d.cfg.Clone() }

// Connected reports whether the session holds a live connection.
func (d *DB) Connected() bool { return d.conn != nil }

// Connect opens the connection if the session is not connected yet.
func (d *DB) Connect(ctx context.Context) error {
	if d.conn != nil {
		return nil
	}
	raw, err := d.opener(ctx, d.cfg)
	if err != nil {
		d.logger.Error().Err(err).Str("addr", d.cfg.Addr()).Msg("Connection failed")
		return &ConnectError{Driver: d.cfg.Driver, Addr: d.cfg.Addr(), Err: err}
	}
	d.conn = sqlx.NewDb(raw, d.cfg.Driver)
	d.logger.Debug().Str("addr", d.cfg.Addr()).Str("database", d.cfg.Database).Msg("Database connection established")
	return nil
}

// SetOptions replaces the driver options and reconnects with them, closing
// the current connection first if there is one.
func (d *DB) SetOptions(ctx context.Context, options map[string]string) error {
	if d.conn != nil {
		if err := d.CloseConnection(); err != nil {
			return fmt.Errorf("close before reconfigure: %w", err)
		}
	}
	next := d.cfg.Clone()
	next.Options = make(map[string]string, len(options))
	for k, v := range options {
		next.Options[k] = v
	}
	d.cfg = next
	d.logger.Debug().Int("options", len(next.Options)).Msg("Driver options replaced")
	return d.Connect(ctx)
}

// Query prepares query on the session, replacing the current statement.
// While a transaction is open the statement is prepared inside it.
func (d *DB) Query(ctx context.Context, query string) (*Stmt, error) {
	if err := d.Connect(ctx); err != nil {
		return nil, err
	}
	if d.stmt != nil {
		if err := d.stmt.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to close previous statement")
		}
		d.stmt = nil
	}

	text := d.conn.Rebind(query)
	var (
		ns  *sqlx.NamedStmt
		err error
	)
	if d.tx != nil {
		ns, err = d.tx.PrepareNamedContext(ctx, text)
	} else {
		ns, err = d.conn.PrepareNamedContext(ctx, text)
	}
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}

	d.stmt = newStmt(d, query, text, ns, d.tx)
	d.logger.Trace().Str("query", query).Msg("Statement prepared")
	return d.stmt, nil
}

// Statement returns the current prepared statement, or nil.
func (d *DB) Statement() *Stmt { return d.stmt }

func (d *DB) current() (*Stmt, error) {
	if d.stmt == nil {
		return nil, ErrNoStatement
	}
	return d.stmt, nil
}

// Bind binds value to param on the current statement. See Stmt.Bind.
func (d *DB) Bind(param any, value any, typ ...ParamType) error {
	s, err := d.current()
	if err != nil {
		return err
	}
	return s.Bind(param, value, typ...)
}

// Execute runs the current statement. See Stmt.Execute.
func (d *DB) Execute(ctx context.Context) error {
	s, err := d.current()
	if err != nil {
		return err
	}
	return s.Execute(ctx)
}

// ResultSet executes the current statement and returns all remaining rows.
func (d *DB) ResultSet(ctx context.Context) ([]Record, error) {
	s, err := d.current()
	if err != nil {
		return nil, err
	}
	return s.ResultSet(ctx)
}

// Single executes the current statement and returns the next row, or nil
// when no row remains.
func (d *DB) Single(ctx context.Context) (Record, error) {
	s, err := d.current()
	if err != nil {
		return nil, err
	}
	return s.Single(ctx)
}

// RowCount returns the number of rows affected by the current statement.
func (d *DB) RowCount() (int64, error) {
	s, err := d.current()
	if err != nil {
		return 0, err
	}
	return s.RowCount(), nil
}

// LastInsertID returns the id generated by the most recent insert executed
// on this session, or 0 when nothing was inserted yet.
func (d *DB) LastInsertID(ctx context.Context) (int64, error) {
	if err := d.Connect(ctx); err != nil {
		return 0, err
	}
	if d.lastResult == nil {
		return 0, nil
	}
	id, err := d.lastResult.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// DebugDumpParams describes the current statement and its bound parameters.
func (d *DB) DebugDumpParams() (string, error) {
	s, err := d.current()
	if err != nil {
		return "", err
	}
	return s.DebugDumpParams(), nil
}

// CloseConnection closes the statement and the connection. An open
// transaction is rolled back, as the server would on a dropped link.
func (d *DB) CloseConnection() error {
	if d.conn == nil {
		return nil
	}
	var result *multierror.Error
	if d.stmt != nil {
		if err := d.stmt.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close statement: %w", err))
		}
	}
	if d.tx != nil {
		d.logger.Warn().Msg("Closing connection with an open transaction")
		if err := d.tx.Rollback(); err != nil && err != sql.ErrTxDone {
			result = multierror.Append(result, fmt.Errorf("rollback: %w", err))
		}
	}
	if err := d.conn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close connection: %w", err))
	}
	d.conn, d.tx, d.stmt, d.lastResult = nil, nil, nil, nil
	d.logger.Debug().Msg("Database connection closed")
	return result.ErrorOrNil()
}
