package main

import (
	"context"
	"fmt"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"web3-fee-distributor/internal/worker"
	"web3-fee-distributor/internal/worker/config"
	"web3-fee-distributor/pkg/logger"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (default ./config/config.worker.yaml)")
	pflag.Parse()

	// 初始化配置文件
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	// 初始化 trace provider
	shutdownTrace := logger.InitTrace("web3-fee-distributor", "worker")
	// 启动主 span
	ctx, span := logger.StartSpan(context.Background(), "main", "main")

	// 创建 root logger 并注入 trace 上下文
	rootLogger := logger.NewLogger("worker")
	logger.SetLogLevel(cfg.Log.Level)
	tl := logger.WithTrace(ctx, rootLogger)

	// 启动配置热加载监听
	go config.WatchConfig(&cfg)

	// 初始化worker
	core, err := worker.New(cfg, tl)
	if err != nil {
		tl.Error("Failed to initialize worker", zap.Error(err))
		span.End()
		_ = tl.Sync()
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(ctx)

	// 启动 worker
	go func() {
		tl.Info("Starting fee distributor worker...")
		core.Start(ctx)
	}()

	// 监听操作系统信号和致命错误
	exitCode := 0
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		tl.Info("Received shutdown signal, starting graceful shutdown...", zap.String("signal", sig.String()))
	case err := <-core.Fatal():
		tl.Error("Fatal distribution error, shutting down", zap.Error(err))
		exitCode = 1
	}
	cancel()

	// 关闭资源
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	core.Stop(stopCtx)
	stopCancel()

	span.End()
	_ = shutdownTrace(context.Background())
	tl.Info("Worker exited", zap.Int("code", exitCode))
	_ = tl.Sync()
	os.Exit(exitCode)
}
