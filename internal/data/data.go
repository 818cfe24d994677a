package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/internal/data/migrations"
	"github.com/tileplay/carcassonne/pkg/xredis"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(NewData, NewPhaseRepo)

// Data holds the storage clients of the configured driver.
type Data struct {
	rdb *redis.Client
	db  *sql.DB
}

func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	h := log.NewHelper(logger)
	d := &Data{}

	switch c.Driver {
	case conf.DriverRedis:
		rc := c.Redis
		d.rdb = xredis.NewClient(
			xredis.WithAddress(rc.Addr),
			xredis.WithPassword(rc.Password),
			xredis.WithDB(rc.Db),
			xredis.WithDialTimeout(rc.DialTimeout.Std()),
			xredis.WithReadTimeout(rc.ReadTimeout.Std()),
			xredis.WithWriteTimeout(rc.WriteTimeout.Std()),
		)
		h.Infof("redis phase mirror on %s", rc.Addr)
	case conf.DriverSqlite:
		db, err := openSqlite(c.Sqlite.Dsn)
		if err != nil {
			return nil, nil, err
		}
		d.db = db
		h.Infof("sqlite phase mirror on %s", c.Sqlite.Dsn)
	default:
		h.Info("phase mirror disabled")
	}

	cleanup := func() {
		h.Info("closing the data resources")
		if d.rdb != nil {
			if err := d.rdb.Close(); err != nil {
				h.Warnf("close redis: %v", err)
			}
		}
		if d.db != nil {
			if err := d.db.Close(); err != nil {
				h.Warnf("close sqlite: %v", err)
			}
		}
	}
	return d, cleanup, nil
}

func openSqlite(dsn string) (*sql.DB, error) {
	if !strings.HasPrefix(dsn, "file:") && !strings.Contains(dsn, "?") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		dsn = filepath.Clean(dsn) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite db: %w", err)
	}
	return db, nil
}
