package storage

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open initializes the database connection and performs migrations.
func Open(dsn string, debug bool) (*gorm.DB, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the store uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&GameRow{},
		&ActiveGameRow{},
		&StepBalanceRow{},
		&HourlyEarnRow{},
		&QueueEntryRow{},
		&MatchNotificationRow{},
		&LeaderboardRow{},
		&ScoredGameRow{},
	)
}

// NewPostgres opens dsn and returns a store over it.
func NewPostgres(dsn string, debug bool, log *zap.Logger) (*GormStore, error) {
	db, err := Open(dsn, debug)
	if err != nil {
		return nil, err
	}
	return NewGormStore(db, log), nil
}
