package db

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

// NewGameDB opens the game database and migrates its schema. An empty
// sqlite dsn puts the file under ~/.games.
func NewGameDB(driver, dsn string, debug bool) (*gorm.DB, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	if driver != DriverPostgres {
		// sqlite has a single writer
		sqlDB, errs := db.DB()
		if errs != nil {
			return nil, errs
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err = AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Game{}, &Player{}, &Bid{}, &GameCounter{})
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSqlite, "":
		if dsn == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			homeFullDir := path.Join(homeDir, ".games")
			if err = os.MkdirAll(homeFullDir, 0700); err != nil {
				return nil, err
			}
			dsn = path.Join(homeFullDir, "bid.war.db?cache=shared")
		}
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}
