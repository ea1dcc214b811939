package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edumarket/pkg/config"
	"github.com/edumarket/pkg/dal"
	"github.com/edumarket/pkg/database"
	"github.com/edumarket/pkg/logger"
	"github.com/edumarket/services/api/internal/server"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	for _, key := range cfg.Unresolved() {
		logger.Warn("配置项使用了未设置的环境变量占位符", zap.String("key", key))
	}

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer database.Close(db)

	store := dal.NewStore(db)
	if err := store.Migrate(); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	ctx := context.Background()
	imported, err := server.Seed(ctx, store, cfg.Pipeline.SeedFile)
	if err != nil {
		logger.Fatal("导入初始数据失败", zap.Error(err))
	}
	if imported {
		logger.Info("初始数据已导入", zap.String("file", cfg.Pipeline.SeedFile))
	}

	// 登录限流使用 Redis
	rdb, err := database.OpenRedis(&cfg.Redis)
	if err != nil {
		logger.Fatal("连接Redis失败", zap.Error(err))
	}
	defer rdb.Close()

	app := server.New(server.Deps{
		Config: cfg,
		Store:  store,
		Cache:  database.NewCache(rdb.Client, cfg.App.Name),
		Logger: logger.Get(),
	})

	addr := cfg.Server.HTTP.Addr()
	go func() {
		logger.Info("服务启动",
			zap.String("addr", addr),
			zap.String("basePath", cfg.Server.HTTP.BasePath),
			zap.Bool("validation", cfg.Pipeline.Validation),
		)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("服务运行失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务正在关闭...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("服务关闭异常", zap.Error(err))
	}
}
