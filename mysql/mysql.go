package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/sadewadee/email-extractor/pkg/resilience"
)

const (
	maxOpenConns = 100
	pingTimeout  = 5 * time.Second
)

// Config carries what the driver needs to reach the database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func (c Config) driverConfig() *mysqldriver.Config {
	mc := mysqldriver.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}

	return mc
}

// DSN renders the driver DSN. parseTime makes DATETIME columns scan into
// time.Time and utf8mb4 matches the schema charset.
func (c Config) DSN() string {
	return c.driverConfig().FormatDSN()
}

// Open connects, sizes the pool and verifies the server is reachable. The
// ping is retried with backoff so a worker started together with the
// database survives the server's warmup.
func Open(cfg Config) (*sql.DB, error) {
	connector, err := mysqldriver.NewConnector(cfg.driverConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	retryer := resilience.NewRetryer(resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Jitter:       true,
	})

	err = retryer.Execute(context.Background(), func() error {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
