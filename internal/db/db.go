package db

import (
	"fmt"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Handle struct {
	DB   *gorm.DB
	Path string // file path for sqlite, DSN otherwise
}

// OpenAt opens the default sqlite database inside dir.
func OpenAt(dir string) (*Handle, error) {
	dbPath := filepath.Join(dir, "erpimport.db")
	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		// Logger: logger.Default.LogMode(logger.Info), // enable for verbose SQL
	})
	if err != nil {
		return nil, err
	}
	return &Handle{DB: gdb, Path: dbPath}, nil
}

// Open connects using the configured driver. An empty driver falls back
// to sqlite in dir; postgres and mysql take the DSN verbatim.
func Open(driver, dsn, dir string) (*Handle, error) {
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			return OpenAt(dir)
		}
		gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return &Handle{DB: gdb, Path: dsn}, nil
	case "postgres":
		gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return &Handle{DB: gdb, Path: dsn}, nil
	case "mysql":
		gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return &Handle{DB: gdb, Path: dsn}, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}

func (h *Handle) Close() error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
