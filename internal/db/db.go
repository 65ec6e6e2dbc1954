package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/oggyb/matchbot/internal/config"
	applog "github.com/oggyb/matchbot/internal/logger"
)

// NewDB opens the backend selected by DATABASE_URL, registers read replicas
// and migrates the schema.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.DB.URL, cfg.DB.SQLitePath)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(applog.GormLevel(cfg.Log.Level)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if dialector.Name() == "sqlite" {
		// one writer at a time; concurrent updates queue in the pool
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if len(cfg.DB.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.DB.Replicas))
		for _, url := range cfg.DB.Replicas {
			d, err := Dialector(url, "")
			if err != nil {
				return nil, fmt.Errorf("replica %q: %w", url, err)
			}
			replicas = append(replicas, d)
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, fmt.Errorf("failed to register replicas: %w", err)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Dialector picks the gorm driver from a connection URL.
//
//	""                     → SQLite file at sqlitePath
//	postgres://, postgresql:// → PostgreSQL
//	mysql://user:pw@tcp(host)/db → MySQL (scheme stripped)
//	sqlite://path, file:..., *.db → SQLite
func Dialector(url, sqlitePath string) (gorm.Dialector, error) {
	switch {
	case url == "":
		if sqlitePath == "" {
			return nil, fmt.Errorf("no database configured")
		}
		return sqlite.Open(sqliteDSN(sqlitePath)), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	case strings.HasPrefix(url, "mysql://"):
		dsn := strings.TrimPrefix(url, "mysql://")
		if !strings.Contains(dsn, "parseTime=") {
			dsn += sep(dsn) + "parseTime=true&charset=utf8mb4&loc=Local"
		}
		return mysql.Open(dsn), nil
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(url, "sqlite://"))), nil
	case strings.HasPrefix(url, "file:"), strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"):
		return sqlite.Open(sqliteDSN(url)), nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", url)
	}
}

// Migrate brings the schema up to date. AutoMigrate only adds missing
// tables, columns and indexes, so it is safe on every start.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// sqliteDSN turns on foreign keys and makes writers wait for the file lock
// instead of failing with "database is locked". Options already present in
// dsn win.
func sqliteDSN(dsn string) string {
	opts := []struct{ key, param string }{
		{"_foreign_keys", "_foreign_keys=on"},
		{"_busy_timeout", "_busy_timeout=5000"},
		{"_txlock", "_txlock=immediate"},
		{"_journal_mode", "_journal_mode=WAL"},
	}
	for _, o := range opts {
		if strings.Contains(dsn, o.key) || (o.key == "_foreign_keys" && strings.Contains(dsn, "_fk=")) {
			continue
		}
		if o.key == "_journal_mode" && strings.Contains(dsn, "mode=memory") {
			continue
		}
		dsn += sep(dsn) + o.param
	}
	return dsn
}

func sep(dsn string) string {
	if strings.Contains(dsn, "?") {
		return "&"
	}
	return "?"
}
