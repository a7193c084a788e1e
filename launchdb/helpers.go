package launchdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/BurntSushi/toml"
	_ "github.com/lib/pq" // registers the postgres driver for sql.Open
)

type config struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
}

func (cfg config) dataSource() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		sslMode,
	)
}

func OpenPostgres(configPath string) (*sql.DB, error) {
	var cfg config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", configPath, err)
	}
	return sql.Open("postgres", cfg.dataSource())
}

// OpenPostgresWithRetries keeps trying until the database answers a ping or
// ctx is done.
func OpenPostgresWithRetries(ctx context.Context, configPath string) (*sql.DB, error) {
	const interval = 5 * time.Second
	for {
		db, err := OpenPostgres(configPath)
		if err == nil {
			err = db.PingContext(ctx)
			if err == nil {
				return db, nil
			}
			db.Close()
			log.Printf("Failed to ping Postgres: %v", err)
		} else {
			log.Printf("Failed to open Postgres: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func timeFromSql(t sql.NullTime) time.Time {
	return t.Time.UTC()
}
