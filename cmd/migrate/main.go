package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/jobs/taskengine/internal/orm"
	"github.com/jobs/taskengine/pkg/config"
	"github.com/jobs/taskengine/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	var configPath, script string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.StringVar(&script, "script", "", "optional SQL file executed after the schema migration")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// orm.New 会执行AutoMigrate
	db, err := orm.New(orm.Config{
		Host:                  cfg.Database.Host,
		Port:                  cfg.Database.Port,
		Database:              cfg.Database.Database,
		User:                  cfg.Database.User,
		Password:              cfg.Database.Password,
		MaxConnections:        1,
		MaxIdleConnections:    1,
		ConnectionMaxLifetime: cfg.Database.ConnectionMaxLifetime,
		LogLevel:              cfg.Database.LogLevel,
	})
	if err != nil {
		zapLogger.Fatal("failed to migrate database", zap.Error(err))
	}
	defer db.Close()

	if script != "" {
		if err := runScript(db, script, zapLogger); err != nil {
			zapLogger.Fatal("failed to run migration script", zap.String("script", script), zap.Error(err))
		}
	}

	zapLogger.Info("migration completed", zap.String("database", cfg.Database.Database))
}

// runScript 按分号切分语句逐条执行，单条失败只记录日志
func runScript(db *orm.Storage, path string, logger *zap.Logger) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(string(body), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		logger.Info("executing statement", zap.String("statement", stmt[:min(50, len(stmt))]))
		if err := db.DB().Exec(stmt).Error; err != nil {
			logger.Error("statement failed", zap.Error(err))
		}
	}
	return nil
}
