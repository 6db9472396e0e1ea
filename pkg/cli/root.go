package cli

import (
	"github.com/spf13/cobra"

	"github.com/khavishbhundoo/mysql-pdo-class/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersion records build information shown by the version command.
func SetVersion(v, c string) {
	version, commit = v, c
}

type globalFlags struct {
	envFile   string
	logFile   string
	verbosity int
}

// NewVersionCmd builds the `version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("mysqlpdo %s (commit: %s)\n", version, commit)
		},
	}
}

// NewRootCmd builds the top-level `mysqlpdo` command.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "mysqlpdo",
		Short: "Run statements through a database session",
		Long: `mysqlpdo opens a single database session configured from DB_* environment
variables (or an env file) and runs prepared statements through it.

  DB_DRIVER   mysql (default), postgres or sqlite
  DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASS, DB_CHARSET, DB_ENGINE
  DB_OPTIONS  driver options as key=value;key=value`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Apply(flags.verbosity, flags.logFile)
		},
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Env file with DB_* settings (default: .env if present)")
	root.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Also write logs to this rotating file")
	root.PersistentFlags().CountVarP(&flags.verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")

	root.AddCommand(NewPingCmd(flags))
	root.AddCommand(NewQueryCmd(flags))
	root.AddCommand(NewExecCmd(flags))
	root.AddCommand(NewVersionCmd())
	return root
}
