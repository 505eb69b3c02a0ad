package main

import (
	"context"
	"fmt"
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

// 一次性任务：执行一轮分发后退出

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (default ./config/config.worker.yaml)")
	showSnapshot := pflag.Bool("show-snapshot", false, "print the last saved reward snapshot and exit")
	pflag.Parse()

	startTime := time.Now()
	// 初始化配置文件
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	// 初始化 trace provider
	shutdownTrace := logger.InitTrace("web3-fee-distributor", "script")
	defer func() { _ = shutdownTrace(context.Background()) }()
	// 启动主 span
	ctx, span := logger.StartSpan(context.Background(), "main", "main")
	defer span.End()

	// 创建 root logger 并注入 trace 上下文
	rootLogger := logger.NewLogger("script")
	logger.SetLogLevel(cfg.Log.Level)
	tl := logger.WithTrace(ctx, rootLogger)

	core, err := worker.New(cfg, tl)
	if err != nil {
		tl.Error("Failed to initialize worker", zap.Error(err))
		os.Exit(1)
	}

	if *showSnapshot {
		snap, err := core.LastSnapshot(ctx)
		core.Stop(context.Background())
		if err != nil {
			tl.Error("Failed to load snapshot", zap.Error(err))
			os.Exit(1)
		}
		tl.Info("Last reward snapshot", zap.Any("snapshot", snap))
		return
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	report, err := core.RunOnce(ctx)
	cancel()
	core.Stop(context.Background())
	if err != nil {
		tl.Error("Distribution round failed", zap.Error(err))
		os.Exit(1)
	}
	fields := []zap.Field{zap.Duration("taken_time", time.Since(startTime))}
	if report != nil {
		fields = append(fields, zap.String("round_id", report.RoundID), zap.String("outcome", string(report.Outcome)))
	}
	tl.Info("Task completed successfully", fields...)
}
