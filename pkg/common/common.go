package common

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"poolview/pkg/common/config"
	"poolview/pkg/common/logger"
)

// Init loads configuration from configPath and initializes the logger from it.
func Init(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Reload re-reads the configuration file and re-applies the logger settings.
// Other settings take effect on the next start.
func Reload() (*config.Config, error) {
	if err := config.Reload(); err != nil {
		return nil, err
	}
	cfg := config.Get()
	if err := apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func apply(cfg *config.Config) error {
	lc := logger.DefaultConfig()
	lc.Level, lc.Format, lc.Output = cfg.Log.Level, cfg.Log.Format, cfg.Log.Output
	if err := InitLoggerWithConfig(lc); err != nil {
		return err
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}

// InitLoggerWithConfig initializes the logger with custom configuration
func InitLoggerWithConfig(config *logger.Config) error {
	return logger.Init(config)
}

// GetLogger returns the global logger instance
func GetLogger() *zerolog.Logger {
	return logger.GetLogger()
}

// IsDebug returns whether debug mode is enabled in the loaded configuration
func IsDebug() bool {
	return config.IsDebug()
}
