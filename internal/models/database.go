package models

import (
	"fmt"
	"time"

	"github.com/memeet/scheduler/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the configured database into DB.
func InitDB(cfg *config.DatabaseConfig, mode string) error {
	db, err := Open(cfg, mode)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to the configured driver. Query logging follows the server mode.
// SQLite DSNs should carry _foreign_keys=on so participant links cascade.
func Open(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	logLevel := logger.Warn
	if mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table the scheduler owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&FreelancerProfile{},
		&ClientProfile{},
		&Meeting{},
		&MeetingParticipant{},
		&UserAvailability{},
		&RefreshToken{},
		&AuditLog{},
	)
}

func GetDB() *gorm.DB {
	return DB
}
