package database

import (
	"fmt"
	"time"

	"voting-service/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options selects the SQL backend. Postgres is the default; mysql is a
// supported fallback with the same schema.
type Options struct {
	Driver string // postgres | mysql
	DSN    string
}

// PostgresDSN builds a DSN from individual components.
func PostgresDSN(user, password, host, port, dbname string) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)
}

// NewConnection opens the configured SQL database, applies pool settings
// and migrates the voting schema.
func NewConnection(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "mysql":
		dialector = mysql.Open(opts.DSN)
	default:
		dialector = postgres.Open(opts.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(
		&models.User{},
		&models.Poll{},
		&models.Option{},
		&models.VoterRecord{},
		&models.PollVoter{},
		&models.Vote{},
		&models.VoteHistory{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
