package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	cfg := Config{Host: "db"}.WithDefaults()

	assert.Equal(t, DriverMySQL, cfg.Driver)
	assert.Equal(t, "utf8mb4", cfg.Charset)
	assert.Equal(t, DefaultEngine, cfg.Engine)
	assert.Equal(t, map[string]string{OptionInterpolateParams: "false"}, cfg.Options)

	pg := Config{Driver: DriverPostgres, Host: "db"}.WithDefaults()
	assert.Equal(t, "UTF8", pg.Charset)
	assert.Equal(t, "disable", pg.Options[OptionSSLMode])
}

func TestClone_CopiesOptions(t *testing.T) {
	orig := Config{Options: map[string]string{"a": "1"}}
	cp := orig.Clone()
	cp.Options["a"] = "2"
	assert.Equal(t, "1", orig.Options["a"])
}

func TestDSN_MySQL(t *testing.T) {
	cfg := Config{
		Host:     "db.local",
		Port:     3307,
		Database: "shop",
		User:     "app",
		Password: "s3cret",
	}.WithDefaults()
	cfg.Options["readTimeout"] = "5s"

	dsn, err := cfg.DSN()
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "s3cret", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.local:3307", parsed.Addr)
	assert.Equal(t, "shop", parsed.DBName)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
	assert.False(t, parsed.InterpolateParams)
	assert.Equal(t, "5s", parsed.ReadTimeout.String())
}

func TestDSN_MySQLDefaultPort(t *testing.T) {
	dsn, err := Config{Host: "db.local", Database: "shop"}.WithDefaults().DSN()
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.local:3306", parsed.Addr)
}

func TestDSN_MySQLBadOption(t *testing.T) {
	cfg := Config{Host: "db", Options: map[string]string{"readTimeout": "soon"}}.WithDefaults()
	_, err := cfg.DSN()
	require.Error(t, err)
}

func TestDSN_Postgres(t *testing.T) {
	cfg := Config{
		Driver:   DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		Database: "shop",
		User:     "app",
		Password: "it's secret",
	}.WithDefaults()

	dsn, err := cfg.DSN()
	require.NoError(t, err)
	assert.Equal(t,
		`host=localhost dbname=shop user=app password='it\'s secret' port=5432 client_encoding=UTF8 sslmode=disable`,
		dsn,
	)
}

func TestDSN_SQLite(t *testing.T) {
	cfg := Config{
		Driver:   DriverSQLite,
		Database: "/tmp/app.db",
		Options:  map[string]string{"_pragma": "foreign_keys(1)"},
	}.WithDefaults()

	dsn, err := cfg.DSN()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/app.db?_pragma=foreign_keys%281%29", dsn)
}

func TestValidate(t *testing.T) {
	err := Config{Driver: "oracle"}.Validate()
	require.True(t, errors.Is(err, ErrUnknownDriver))

	require.Error(t, Config{Driver: DriverMySQL}.Validate())
	require.Error(t, Config{Driver: DriverSQLite}.Validate())
	require.Error(t, Config{Driver: DriverMySQL, Host: "h", Port: 70000}.Validate())
	require.NoError(t, Config{Driver: DriverSQLite, Database: "x.db"}.Validate())
}

func TestAddr(t *testing.T) {
	assert.Equal(t, "h", Config{Host: "h"}.Addr())
	assert.Equal(t, "h:1", Config{Host: "h", Port: 1}.Addr())
	assert.Equal(t, "f.db", Config{Driver: DriverSQLite, Database: "f.db"}.Addr())
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("interpolateParams=false; parseTime=true;")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"interpolateParams": "false", "parseTime": "true"}, opts)

	_, err = ParseOptions("novalue")
	require.Error(t, err)
}

func TestLoad_FromEnvFile(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "DB_HOST", "DB_NAME", "DB_CHARSET", "DB_USER", "DB_PASS", "DB_PORT", "DB_ENGINE", "DB_OPTIONS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "DB_HOST=db.local\nDB_NAME=shop\nDB_USER=app\nDB_PASS=pw\nDB_PORT=3307\nDB_ENGINE=MyISAM\nDB_OPTIONS=parseTime=true\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "db.local", cfg.Host)
	assert.Equal(t, "shop", cfg.Database)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, 3307, cfg.Port)
	assert.Equal(t, "MyISAM", cfg.Engine)
	assert.Equal(t, map[string]string{"parseTime": "true"}, cfg.Options)
}

func TestLoad_BadPort(t *testing.T) {
	t.Setenv("DB_PORT", "abc")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)

	envFile := filepath.Join(t.TempDir(), "port.env")
	require.NoError(t, os.WriteFile(envFile, []byte("X=1\n"), 0o644))
	_, err = Load(envFile)
	require.Error(t, err)
}
