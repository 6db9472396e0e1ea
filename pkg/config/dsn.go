package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Supported driver names. They match the names the drivers register with
// database/sql.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Driver option keys applied by default.
const (
	// OptionInterpolateParams set to "false" keeps placeholders server-side
	// instead of having the driver inline them into the query text.
	OptionInterpolateParams = "interpolateParams"
	OptionSSLMode           = "sslmode"
)

const (
	DefaultEngine          = "InnoDB"
	defaultMySQLCharset    = "utf8mb4"
	defaultPostgresCharset = "UTF8"
)

// ErrUnknownDriver is returned for a driver name this module cannot open.
var ErrUnknownDriver = errors.New("unknown database driver")

// Config holds everything needed to open a session.
type Config struct {
	Driver   string
	Host     string
	Database string
	Charset  string
	User     string
	Password string
	Port     int
	// Engine is the storage engine tables are expected to use. Transactions
	// are refused for MyISAM.
	Engine string
	// Options are low-level driver options, passed through as DSN parameters.
	Options map[string]string
}

// DefaultOptions returns the driver options applied when none are configured.
func DefaultOptions(driver string) map[string]string {
	switch driver {
	case DriverMySQL:
		return map[string]string{OptionInterpolateParams: "false"}
	case DriverPostgres:
		return map[string]string{OptionSSLMode: "disable"}
	default:
		return map[string]string{}
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	if c.Options != nil {
		out.Options = make(map[string]string, len(c.Options))
		for k, v := range c.Options {
			out.Options[k] = v
		}
	}
	return out
}

// WithDefaults returns a copy of c with empty fields filled in.
func (c Config) WithDefaults() Config {
	out := c.Clone()
	if out.Driver == "" {
		out.Driver = DriverMySQL
	}
	if out.Charset == "" {
		switch out.Driver {
		case DriverMySQL:
			out.Charset = defaultMySQLCharset
		case DriverPostgres:
			out.Charset = defaultPostgresCharset
		}
	}
	if out.Engine == "" {
		out.Engine = DefaultEngine
	}
	if out.Options == nil {
		out.Options = DefaultOptions(out.Driver)
	}
	return out
}

// Validate reports configuration errors that would make opening impossible.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMySQL, DriverPostgres:
		if c.Host == "" {
			return fmt.Errorf("%s: host is empty", c.Driver)
		}
	case DriverSQLite:
		if c.Database == "" {
			return fmt.Errorf("%s: database path is empty", c.Driver)
		}
	default:
		return fmt.Errorf("%q: %w", c.Driver, ErrUnknownDriver)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Addr is the host[:port] the session connects to, or the file path for sqlite.
func (c Config) Addr() string {
	if c.Driver == DriverSQLite {
		return c.Database
	}
	if c.Port == 0 {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DSN builds the driver specific data source name.
func (c Config) DSN() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	switch c.Driver {
	case DriverMySQL:
		return c.mysqlDSN()
	case DriverPostgres:
		return c.postgresDSN(), nil
	default:
		return c.sqliteDSN(), nil
	}
}

func (c Config) mysqlDSN() (string, error) {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Addr()
	mc.DBName = c.Database
	if c.Charset != "" {
		mc.Params = map[string]string{"charset": c.Charset}
	}
	dsn := mc.FormatDSN()
	if len(c.Options) > 0 {
		values := url.Values{}
		for k, v := range c.Options {
			values.Set(k, v)
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + values.Encode()
	}
	// Round-trip so unknown or malformed options fail here, not on connect.
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	return dsn, nil
}

func (c Config) postgresDSN() string {
	pairs := [][2]string{
		{"host", c.Host},
		{"dbname", c.Database},
		{"user", c.User},
		{"password", c.Password},
	}
	if c.Port != 0 {
		pairs = append(pairs, [2]string{"port", strconv.Itoa(c.Port)})
	}
	if c.Charset != "" {
		pairs = append(pairs, [2]string{"client_encoding", c.Charset})
	}
	for _, k := range sortedKeys(c.Options) {
		pairs = append(pairs, [2]string{k, c.Options[k]})
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		parts = append(parts, p[0]+"="+quotePostgres(p[1]))
	}
	return strings.Join(parts, " ")
}

func (c Config) sqliteDSN() string {
	if len(c.Options) == 0 {
		return c.Database
	}
	values := url.Values{}
	for k, v := range c.Options {
		values.Add(k, v)
	}
	return c.Database + "?" + values.Encode()
}

// quotePostgres quotes a keyword/value connection string value when needed.
func quotePostgres(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseOptions parses "key=value;key2=value2" into a map.
func ParseOptions(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("malformed option %q", part)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

// Load reads the session configuration from the environment. A .env file is
// loaded first when present; envFile names a specific file that must exist.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Driver:   os.Getenv("DB_DRIVER"),
		Host:     os.Getenv("DB_HOST"),
		Database: os.Getenv("DB_NAME"),
		Charset:  os.Getenv("DB_CHARSET"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASS"),
		Engine:   os.Getenv("DB_ENGINE"),
	}
	if p := os.Getenv("DB_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT %q: %w", p, err)
		}
		cfg.Port = port
	}
	if o := os.Getenv("DB_OPTIONS"); o != "" {
		opts, err := ParseOptions(o)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_OPTIONS: %w", err)
		}
		cfg.Options = opts
	}
	return cfg, nil
}
