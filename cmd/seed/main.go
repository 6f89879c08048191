package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"course-advisor/backend/config"
	"course-advisor/backend/internal/repository"
	"course-advisor/backend/internal/seed"
	"course-advisor/backend/pkg/database"
	applogger "course-advisor/backend/pkg/logger"
)

// 将 YAML 课程目录写入数据库，整体替换现有目录
//
//	go run ./cmd/seed -config config/config.yaml -file catalog.yaml
//	go run ./cmd/seed            # 使用内置默认目录
func main() {
	configPath := flag.String("config", "", "配置文件路径")
	seedFile := flag.String("file", "", "YAML 目录文件，缺省使用内置目录")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var catalog *seed.Catalog
	if *seedFile != "" {
		catalog, err = seed.LoadFile(*seedFile)
	} else {
		catalog, err = seed.Default()
	}
	if err != nil {
		logger.Fatal("解析目录失败", zap.String("file", *seedFile), zap.Error(err))
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo := repository.NewRepository(db)
	if err := repo.Catalog.ReplaceAll(ctx, &repository.CatalogSnapshot{
		Courses:       catalog.Courses,
		Prerequisites: catalog.Prerequisites,
		Groups:        catalog.Groups,
		Core:          catalog.Core,
	}); err != nil {
		logger.Fatal("写入目录失败", zap.Error(err))
	}

	logger.Info("目录导入完成",
		zap.Int("courses", len(catalog.Courses)),
		zap.Int("sections", catalog.SectionCount()),
		zap.Int("prerequisites", len(catalog.Prerequisites)),
		zap.Int("core", len(catalog.Core)),
	)
}
