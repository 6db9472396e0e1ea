package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/khavishbhundoo/mysql-pdo-class/internal/typeconv"
)

// ParamType is the type a parameter is bound as.
type ParamType = typeconv.ParamType

const (
	ParamNull = typeconv.ParamNull
	ParamInt  = typeconv.ParamInt
	ParamStr  = typeconv.ParamStr
	ParamLOB  = typeconv.ParamLOB
	ParamBool = typeconv.ParamBool
)

type param struct {
	name  string
	pos   int
	value any
	typ   ParamType
}

// Stmt is a prepared statement owned by a DB session.
type Stmt struct {
	db    *DB
	query string
	// text is query rebound to the driver's placeholder style.
	text  string
	named *sqlx.NamedStmt
	// tx is the transaction the statement was prepared in, if any.
	tx *sqlx.Tx

	byName map[string]param
	byPos  map[int]param

	executed bool
	closed   bool

	columns  []string
	rows     []Record
	cursor   int
	rowCount int64
}

func newStmt(db *DB, query, text string, ns *sqlx.NamedStmt, tx *sqlx.Tx) *Stmt {
	return &Stmt{
		db:     db,
		query:  query,
		text:   text,
		named:  ns,
		tx:     tx,
		byName: map[string]param{},
		byPos:  map[int]param{},
	}
}

// Query returns the statement text as given to DB.Query.
func (s *Stmt) Query() string { return s.query }

// Columns returns the result columns of the last execution.
func (s *Stmt) Columns() []string { return s.columns }

// Executed reports whether the statement ran outside a transaction and will
// not run again.
func (s *Stmt) Executed() bool { return s.executed }

// Bind binds value to param, a placeholder name (":id" or "id") or a 1-based
// position. Without typ the type is inferred from value and the value is
// passed to the driver unchanged; with typ the value is coerced to it.
func (s *Stmt) Bind(p any, value any, typ ...ParamType) error {
	b := param{value: value}
	if len(typ) > 0 {
		coerced, err := typeconv.Coerce(value, typ[0])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}
		b.value = coerced
		b.typ = typ[0]
	} else {
		b.typ = typeconv.Infer(value)
	}

	switch key := p.(type) {
	case string:
		name := strings.TrimPrefix(key, ":")
		if name == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidParam)
		}
		if len(s.byPos) > 0 {
			return ErrMixedPlaceholders
		}
		b.name = name
		s.byName[name] = b
	case int:
		if key < 1 {
			return fmt.Errorf("%w: position %d", ErrInvalidParam, key)
		}
		if len(s.byName) > 0 {
			return ErrMixedPlaceholders
		}
		b.pos = key
		s.byPos[key] = b
	default:
		return fmt.Errorf("%w: placeholder of type %T", ErrInvalidParam, p)
	}
	return nil
}

// Execute runs the statement. Once it has run outside a transaction further
// calls do nothing; inside a transaction every call runs it again.
func (s *Stmt) Execute(ctx context.Context) error {
	if s.executed {
		return nil
	}

	named, positional, err := s.args()
	if err != nil {
		return err
	}
	ns, err := s.bound(ctx)
	if err != nil {
		return err
	}

	if returnsRows(s.query) {
		var rows *sqlx.Rows
		if named != nil {
			rows, err = ns.QueryxContext(ctx, named)
		} else {
			rows, err = ns.Stmt.QueryxContext(ctx, positional...)
		}
		if err != nil {
			return fmt.Errorf("execute: %w", err)
		}
		columns, records, err := scanRecords(rows)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		s.columns, s.rows, s.cursor = columns, records, 0
		s.rowCount = int64(len(records))
	} else {
		var res sql.Result
		if named != nil {
			res, err = ns.ExecContext(ctx, named)
		} else {
			res, err = ns.Stmt.ExecContext(ctx, positional...)
		}
		if err != nil {
			return fmt.Errorf("execute: %w", err)
		}
		s.columns, s.rows, s.cursor = nil, nil, 0
		s.rowCount = 0
		if n, err := res.RowsAffected(); err == nil {
			s.rowCount = n
		}
		s.db.lastResult = res
	}

	inTx := s.db.tx != nil
	if !inTx {
		s.executed = true
	}
	s.db.logger.Debug().
		Str("query", s.query).
		Int64("rows", s.rowCount).
		Bool("in_transaction", inTx).
		Msg("Statement executed")
	return nil
}

// ResultSet executes the statement and returns every remaining row in
// result order. It never returns nil rows without an error.
func (s *Stmt) ResultSet(ctx context.Context) ([]Record, error) {
	if err := s.Execute(ctx); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(s.rows)-s.cursor)
	out = append(out, s.rows[s.cursor:]...)
	s.cursor = len(s.rows)
	return out, nil
}

// Single executes the statement and returns the next row, or nil when there
// is none.
func (s *Stmt) Single(ctx context.Context) (Record, error) {
	if err := s.Execute(ctx); err != nil {
		return nil, err
	}
	if s.cursor >= len(s.rows) {
		return nil, nil
	}
	r := s.rows[s.cursor]
	s.cursor++
	return r, nil
}

// RowCount is the number of rows affected by the last execution, or the
// number of rows it returned for statements that produce a result set.
func (s *Stmt) RowCount() int64 { return s.rowCount }

// Close releases the prepared statement.
func (s *Stmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.named.Close()
}

// bound returns the statement as usable on the session's current link. A
// statement whose transaction has ended is prepared again on the current
// link, and one prepared outside the open transaction is rebound to it.
func (s *Stmt) bound(ctx context.Context) (*sqlx.NamedStmt, error) {
	tx := s.db.tx
	if s.tx != nil && s.tx != tx {
		if err := s.reprepare(ctx); err != nil {
			return nil, err
		}
	}
	if tx == nil || tx == s.tx {
		return s.named, nil
	}
	return tx.NamedStmtContext(ctx, s.named), nil
}

// reprepare replaces a statement closed together with its transaction. The
// pool holds one connection, so an open transaction must prepare it.
func (s *Stmt) reprepare(ctx context.Context) error {
	if s.closed || s.db.conn == nil {
		return ErrNoStatement
	}
	if err := s.named.Close(); err != nil {
		s.db.logger.Warn().Err(err).Msg("Failed to close transaction statement")
	}
	var (
		ns  *sqlx.NamedStmt
		err error
	)
	tx := s.db.tx
	if tx != nil {
		ns, err = tx.PrepareNamedContext(ctx, s.text)
	} else {
		ns, err = s.db.conn.PrepareNamedContext(ctx, s.text)
	}
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	s.named, s.tx = ns, tx
	s.db.logger.Trace().Str("query", s.query).Msg("Statement prepared again after transaction end")
	return nil
}

// args returns the bound values either as a name map (when the statement
// uses named placeholders) or in position order.
func (s *Stmt) args() (map[string]any, []any, error) {
	if len(s.named.Params) > 0 {
		if len(s.byPos) > 0 {
			return nil, nil, ErrMixedPlaceholders
		}
		m := make(map[string]any, len(s.byName))
		for name, b := range s.byName {
			m[name] = b.value
		}
		return m, nil, nil
	}

	if len(s.byName) > 0 {
		return nil, nil, fmt.Errorf("%w: statement has no named placeholders", ErrInvalidParam)
	}
	positions := make([]int, 0, len(s.byPos))
	for pos := range s.byPos {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	out := make([]any, len(positions))
	for i, pos := range positions {
		if pos != i+1 {
			return nil, nil, fmt.Errorf("%w: no value bound for position %d", ErrInvalidParam, i+1)
		}
		out[i] = s.byPos[pos].value
	}
	return nil, out, nil
}
