package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"membership-admin/internal/adapters/persistence/models"
	"membership-admin/internal/adapters/persistence/repositories"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenMemberStore connects the configured storage backend
func OpenMemberStore(ctx context.Context, cfg *Config) (repositories.MemberStore, error) {
	switch cfg.Storage.Driver {
	case "jsonfile":
		store, err := repositories.NewJSONFileStore(cfg.Storage.JSONPath)
		if err != nil {
			return nil, err
		}
		log.Printf("✅ JSON file store opened [%s]", cfg.Storage.JSONPath)
		return store, nil

	case "mongo":
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := repositories.NewMongoMemberStore(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDB)
		if err != nil {
			return nil, err
		}
		log.Printf("✅ MongoDB connected successfully [%s]", cfg.Storage.MongoDB)
		return store, nil

	default:
		db, err := ConnectDatabase(cfg)
		if err != nil {
			return nil, err
		}
		if err := models.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("failed to auto migrate: %w", err)
		}
		log.Println("✅ Database migration completed")
		return repositories.NewGormMemberStore(db), nil
	}
}

// ConnectDatabase establishes connection to the SQL database
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dialector, err := buildDialector(cfg)
	if err != nil {
		return nil, err
	}

	// Configure GORM logger based on mode
	var gormLogger logger.Interface
	if cfg.IsDev() {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	// Open connection
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true, // Better performance
		TranslateError:         true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Connection pool settings
	if cfg.Storage.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Storage.Driver == "sqlite" {
		log.Printf("✅ Database connected successfully [sqlite:%s]", cfg.Storage.SQLitePath)
	} else {
		log.Printf("✅ Database connected successfully [%s %s:%s/%s]",
			cfg.Storage.Driver,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.DBName,
		)
	}

	return db, nil
}

func buildDialector(cfg *Config) (gorm.Dialector, error) {
	switch cfg.Storage.Driver {
	case "mysql":
		return mysql.Open(buildMySQLDSN(cfg.Database)), nil
	case "postgres":
		return postgres.Open(buildPostgresDSN(cfg.Database)), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		return sqlite.Open(cfg.Storage.SQLitePath), nil
	}
	return nil, fmt.Errorf("storage driver %q is not a SQL database", cfg.Storage.Driver)
}

// buildMySQLDSN returns the MySQL connection string. Dates are read back in
// UTC so DATE columns keep their calendar day.
func buildMySQLDSN(d DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.DBName,
	)
}

// buildPostgresDSN returns the PostgreSQL connection string
func buildPostgresDSN(d DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.DBName,
		d.SSLMode,
	)
}
