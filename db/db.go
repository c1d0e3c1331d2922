package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// Db is the process-wide connection opened by InitDB.
	Db *gorm.DB
	// Path is the SQLite file used by InitDB.
	Path = filepath.Join(os.Getenv("HOME"), ".dogs", "dogs.db")
)

// InitDB opens Path, creating its directory and the tables if needed.
func InitDB() error {
	gdb, err := Open(Path)
	if err != nil {
		return err
	}
	Db = gdb
	log.Info().Str("path", Path).Msg("Database initialized successfully")
	return nil
}

// Open opens and migrates a SQLite database at path. ":memory:" is accepted.
func Open(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := createDBDirectory(path); err != nil {
			return nil, err
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newLogger(),
		// Unique constraint violations surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to open database")
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would get its own empty in-memory database.
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// Migrate creates or updates the session and favourites tables.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&Session{}, &Favourite{}); err != nil {
		log.Error().Err(err).Msg("Failed to auto-migrate database")
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func createDBDirectory(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error().Err(err).Msg("Failed to create database directory")
			return err
		}
	}
	return nil
}

// newLogger silences gorm unless zerolog runs at debug level.
func newLogger() logger.Interface {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Silent)
}

// GetDB returns the connection opened by InitDB.
func GetDB() *gorm.DB { return Db }

// CloseDB closes the connection opened by InitDB.
func CloseDB() error {
	if Db == nil {
		return nil
	}
	sqlDB, err := Db.DB()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get raw database connection")
		return err
	}
	return sqlDB.Close()
}
