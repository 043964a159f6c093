package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrDatabaseExists is returned when the target file is already present
	// and --force was not given.
	ErrDatabaseExists = errors.New("database file already exists")
	// ErrFileUnwritable is returned when the target path cannot be created
	// or replaced, typically a missing directory or insufficient permissions.
	ErrFileUnwritable = errors.New("database file location not writable")
)

const backupFileExt = ".bak"

// OpenDatabase opens a SQLite database with WAL journaling and foreign-key
// enforcement. Both are set through DSN parameters so every pooled connection
// gets them; the pool is pinned to a single connection since this tool is a
// single sequential writer.
func OpenDatabase(path string) (*gorm.DB, error) {
	dsn := path + "?_journal_mode=WAL&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}

// CloseDatabase closes the underlying connection pool.
func CloseDatabase(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateDatabase creates the database file and its schema. A pre-existing
// file fails the run unless cfg.Force is set, in which case it is (optionally
// backed up and) removed first. The file is touched with mode 0770 before
// connecting, proving the directory writable with a clear error instead of a
// driver failure.
func CreateDatabase(cfg Config, log *zap.SugaredLogger) (*gorm.DB, error) {
	if info, err := os.Stat(cfg.DBPath); err == nil {
		if !cfg.Force {
			return nil, fmt.Errorf("%w: %s (use --force to recreate)", ErrDatabaseExists, cfg.DBPath)
		}
		log.Debugf("existing database file size: %d bytes", info.Size())
		if cfg.Backup {
			backupPath := fmt.Sprintf("%s.%s%s", cfg.DBPath, time.Now().Format("20060102-150405"), backupFileExt)
			if err := copyFile(cfg.DBPath, backupPath); err != nil {
				return nil, fmt.Errorf("failed to create DB backup: %w", err)
			}
			log.Infof("existing database backed up to %s", backupPath)
			pruneOldBackups(cfg.DBPath, cfg.MaxBackups, log)
		}
		if err := os.Remove(cfg.DBPath); err != nil {
			return nil, fmt.Errorf("%w: previous file could not be removed: %w", ErrFileUnwritable, err)
		}
		log.Infof("removed existing database file %s", cfg.DBPath)
	}

	f, err := os.OpenFile(cfg.DBPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o770)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot create %s: %w", ErrFileUnwritable, cfg.DBPath, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	log.Infof("created database file %s", cfg.DBPath)

	conn, err := OpenDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := CreateSchema(conn, log); err != nil {
		// Leave the partial file behind; the documented remedy is a
		// rerun with --force.
		_ = CloseDatabase(conn)
		return nil, err
	}
	return conn, nil
}

func copyFile(src, dst string) error {
	sourceFileStat, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !sourceFileStat.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destination.Close()

	_, err = destination.ReadFrom(source)
	return err
}

// pruneOldBackups keeps the newest max backups of dbPath and removes the
// rest. Backup names embed a sortable timestamp, so lexical order is age
// order.
func pruneOldBackups(dbPath string, max int, log *zap.SugaredLogger) {
	dir := filepath.Dir(dbPath)
	prefix := filepath.Base(dbPath) + "."
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Warnf("failed to read backup directory: %v", err)
		return
	}

	var backups []string
	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) && strings.HasSuffix(f.Name(), backupFileExt) {
			backups = append(backups, filepath.Join(dir, f.Name()))
		}
	}
	if len(backups) <= max {
		return
	}

	sort.Strings(backups)
	for _, file := range backups[:len(backups)-max] {
		if err := os.Remove(file); err != nil {
			log.Warnf("failed to remove old backup %s: %v", file, err)
		} else {
			log.Infof("removed old backup: %s", file)
		}
	}
}
