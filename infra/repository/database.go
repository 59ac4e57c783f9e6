package repository

import (
	"time"

	"github.com/ambaglabs/ambag/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDBConnection opens the ledger database. A postgres URL is used when
// configured; otherwise a local sqlite file keeps development setups
// database-free.
func NewDBConnection(cfg *config.DB, appEnv string) (*gorm.DB, error) {
	logMode := logger.Silent
	if appEnv == "development" {
		logMode = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger:                 logger.Default.LogMode(logMode),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}

	var (
		db  *gorm.DB
		err error
	)
	if cfg.Url != "" {
		db, err = gorm.Open(postgres.Open(cfg.Url), gormCfg)
	} else {
		db, err = gorm.Open(sqlite.Open(cfg.File), gormCfg)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return db, nil
}
