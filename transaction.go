package db

import (
	"context"
	"fmt"
	"strings"
)

const nonTransactionalEngine = "myisam"

func (d *DB) checkEngine() error {
	if strings.EqualFold(d.cfg.Engine, nonTransactionalEngine) {
		d.logger.Error().Str("engine", d.cfg.Engine).Msg("Transactions are not supported by the storage engine")
		return ErrNonTransactionalEngine
	}
	return nil
}

// InTransaction reports whether a transaction is open on the session.
func (d *DB) InTransaction() bool { return d.tx != nil }

// BeginTransaction starts a transaction. The driver rolls it back if ctx is
// cancelled before CommitTransaction.
func (d *DB) BeginTransaction(ctx context.Context) error {
	if err := d.checkEngine(); err != nil {
		return err
	}
	if err := d.Connect(ctx); err != nil {
		return err
	}
	if d.tx != nil {
		return ErrTransactionOpen
	}
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	d.tx = tx
	d.logger.Debug().Msg("Transaction started")
	return nil
}

// RollBack rolls back the open transaction. Without one it does nothing.
func (d *DB) RollBack() error {
	if err := d.checkEngine(); err != nil {
		return err
	}
	if d.conn == nil || d.tx == nil {
		return nil
	}
	tx := d.tx
	d.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	d.logger.Debug().Msg("Transaction rolled back")
	return nil
}

// CommitTransaction commits the open transaction. Without one it does
// nothing.
func (d *DB) CommitTransaction() error {
	if err := d.checkEngine(); err != nil {
		return err
	}
	if d.conn == nil || d.tx == nil {
		return nil
	}
	tx := d.tx
	d.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	d.logger.Debug().Msg("Transaction committed")
	return nil
}
