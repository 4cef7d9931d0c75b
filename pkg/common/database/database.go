package database

import (
	"fmt"
	"path/filepath"
	"sync"

	"poolview/pkg/common/fs"
	"poolview/pkg/common/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	instance *gorm.DB
	once     sync.Once
)

// Init opens (once) the sqlite database dbName inside the .runtime directory
// under basePath and migrates the given models.
func Init(basePath, dbName string, models ...interface{}) (*gorm.DB, error) {
	var initErr error
	once.Do(func() {
		fsys, err := fs.NewWithBasePath(basePath)
		if err != nil {
			initErr = fmt.Errorf("filesystem init failed: %w", err)
			return
		}
		dbPath := filepath.Join(fsys.GetRuntimePath(), dbName)
		db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			initErr = fmt.Errorf("open db failed: %w", err)
			return
		}
		if len(models) > 0 {
			if err := db.AutoMigrate(models...); err != nil {
				initErr = fmt.Errorf("auto migrate failed: %w", err)
				return
			}
		}
		instance = db
		logger.WithComponent("database").Info().Str("db", dbPath).Msg("database initialized")
	})
	return instance, initErr
}

// Get returns the gorm DB instance
func Get() *gorm.DB { return instance }

// Close releases the underlying sql.DB.
func Close() error {
	if instance == nil {
		return nil
	}
	sqlDB, err := instance.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
