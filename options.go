package db

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/khavishbhundoo/mysql-pdo-class/pkg/config"
	"github.com/khavishbhundoo/mysql-pdo-class/pkg/runtime"
)

// Opener establishes the driver-level connection for a configuration.
type Opener func(ctx context.Context, cfg config.Config) (*sql.DB, error)

// Option configures a DB.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	opener Opener
}

func getOpts(opt ...Option) options {
	opts := options{
		logger: log.Logger,
		opener: runtime.Connect,
	}
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// WithLogger sets the logger; the global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithOpener replaces how the connection is opened. Tests use it to hand
// in a mocked *sql.DB.
func WithOpener(fn Opener) Option {
	return func(o *options) {
		if fn != nil {
			o.opener = fn
		}
	}
}
