package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	db "github.com/khavishbhundoo/mysql-pdo-class"
	"github.com/khavishbhundoo/mysql-pdo-class/pkg/config"
)

func openSession(flags *globalFlags) (*db.DB, error) {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return nil, err
	}
	return db.NewDB(*cfg, db.WithLogger(log.Logger))
}

// NewPingCmd builds the `ping` command.
func NewPingCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that a session can connect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(flags)
			if err != nil {
				return err
			}
			defer session.CloseConnection()

			if err := session.Connect(cmd.Context()); err != nil {
				return err
			}
			cfg := session.Config()
			fmt.Fprintf(cmd.OutOrStdout(), "connected to %s %s\n", cfg.Driver, cfg.Addr())
			return nil
		},
	}
}

// NewQueryCmd builds the `query` command, which prints result rows as JSON
// lines.
func NewQueryCmd(flags *globalFlags) *cobra.Command {
	var binds []string
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a statement and print its rows as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(flags)
			if err != nil {
				return err
			}
			defer session.CloseConnection()

			ctx := cmd.Context()
			if err := prepare(ctx, session, args[0], binds); err != nil {
				return err
			}
			rows, err := session.ResultSet(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, row := range rows {
				if err := enc.Encode(row); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&binds, "bind", "b", nil, "Bind a parameter as name=value or position=value (repeatable)")
	return cmd
}

// NewExecCmd builds the `exec` command, optionally wrapping the statement
// in a transaction.
func NewExecCmd(flags *globalFlags) *cobra.Command {
	var (
		binds []string
		tx    bool
	)
	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run a statement and print the affected rows and last insert id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(flags)
			if err != nil {
				return err
			}
			defer session.CloseConnection()

			ctx := cmd.Context()
			if tx {
				if err := session.BeginTransaction(ctx); err != nil {
					return err
				}
			}
			if err := prepare(ctx, session, args[0], binds); err != nil {
				rollBack(session)
				return err
			}
			if err := session.Execute(ctx); err != nil {
				rollBack(session)
				return err
			}
			if tx {
				if err := session.CommitTransaction(); err != nil {
					return err
				}
			}

			affected, err := session.RowCount()
			if err != nil {
				return err
			}
			id, err := session.LastInsertID(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rows affected: %d\nlast insert id: %d\n", affected, id)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&binds, "bind", "b", nil, "Bind a parameter as name=value or position=value (repeatable)")
	cmd.Flags().BoolVar(&tx, "tx", false, "Run the statement inside a transaction")
	return cmd
}

// rollBack undoes a failed --tx statement. Outside a transaction there is
// nothing to undo.
func rollBack(session *db.DB) {
	if !session.InTransaction() {
		return
	}
	if err := session.RollBack(); err != nil {
		log.Warn().Err(err).Msg("Rollback failed")
	}
}

func prepare(ctx context.Context, session *db.DB, query string, binds []string) error {
	if _, err := session.Query(ctx, query); err != nil {
		return err
	}
	for _, raw := range binds {
		key, value, err := parseBind(raw)
		if err != nil {
			return err
		}
		if err := session.Bind(key, value); err != nil {
			return fmt.Errorf("bind %q: %w", raw, err)
		}
	}
	return nil
}

// parseBind splits name=value. A numeric name is a position. Values that
// look like integers, booleans or null are bound as such so the session
// infers their type.
func parseBind(raw string) (any, any, error) {
	k, v, ok := strings.Cut(raw, "=")
	if !ok || k == "" {
		return nil, nil, fmt.Errorf("malformed bind %q, want name=value", raw)
	}

	var key any = k
	if pos, err := strconv.Atoi(k); err == nil {
		key = pos
	}

	switch {
	case strings.EqualFold(v, "null"):
		return key, nil, nil
	case v == "true", v == "false":
		return key, v == "true", nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return key, n, nil
	}
	return key, v, nil
}
