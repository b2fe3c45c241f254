package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/tasko/internal/config"
	"github.com/yukikurage/tasko/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Models lists every table managed by AutoMigrate.
var Models = []interface{}{
	&models.User{},
	&models.Project{},
	&models.ProjectMember{},
	&models.Team{},
	&models.TeamMember{},
	&models.TeamInvitation{},
	&models.Task{},
	&models.Notification{},
	&models.Activity{},
	&models.Conversation{},
	&models.ConversationParticipant{},
	&models.Message{},
}

func dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBSSLMode,
		)
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
}

func Connect(cfg *config.Config) error {
	d, err := dialector(cfg)
	if err != nil {
		return err
	}

	level := logger.Warn
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		level = logger.Info
	}

	DB, err = gorm.Open(d, &gorm.Config{
		Logger: logger.New(logrus.StandardLogger(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	logrus.WithField("driver", cfg.DBDriver).Info("Database connection established")
	return nil
}

func Migrate() error {
	logrus.Info("Running database migrations...")
	if err := DB.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := AddIndexes(DB); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}
	logrus.Info("Database migrations completed")
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (used for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
