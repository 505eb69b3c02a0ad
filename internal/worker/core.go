package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"web3-fee-distributor/internal/worker/cache"
	"web3-fee-distributor/internal/worker/chain"
	"web3-fee-distributor/internal/worker/config"
	"web3-fee-distributor/internal/worker/distributor"
	"web3-fee-distributor/internal/worker/job"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/monitor"
	"web3-fee-distributor/internal/worker/pool"
	"web3-fee-distributor/internal/worker/report"
	"web3-fee-distributor/internal/worker/repository"
	"web3-fee-distributor/internal/worker/writer"
	payoutWriter "web3-fee-distributor/internal/worker/writer/payout"
	roundWriter "web3-fee-distributor/internal/worker/writer/round"
	"web3-fee-distributor/pkg/helius"
	"web3-fee-distributor/pkg/logger"
	"web3-fee-distributor/pkg/raydium"
	"web3-fee-distributor/pkg/solana_client"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	jobName      = "fee_distribution"
	roundLockTTL = 2 * time.Hour
)

type Core struct {
	cfg       config.Config
	mint      solana.PublicKey
	tl        *zap.Logger
	repo      repository.Repository
	helius    *helius.Client
	raydium   *raydium.Client
	runner    *distributor.Runner
	reporter  *report.Reporter
	snapshots *cache.SnapshotCache
	scheduler *job.Scheduler
	metrics   *monitor.MetricsServer
	fatal     chan error
}

func New(cfg config.Config, tl *zap.Logger) (*Core, error) {
	mint, err := solana.PublicKeyFromBase58(strings.TrimSpace(cfg.Distribution.Mint))
	if err != nil {
		return nil, fmt.Errorf("distribution.mint: %w", err)
	}
	signer, err := solana_client.LoadSigner(cfg.Solana.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("solana.private_key: %w", err)
	}
	rewards, err := distributor.RewardsFromConfig(cfg.Distribution.Rewards)
	if err != nil {
		return nil, err
	}
	opts, rules := distributor.OptionsFromConfig(cfg.Distribution)

	// 初始化repo
	repo, err := repository.New(cfg, tl)
	if err != nil {
		return nil, err
	}

	mainnet := cfg.Solana.Mainnet()
	heliusClient := helius.NewClient(cfg.Helius, mainnet, tl)
	raydiumClient := raydium.NewClient(cfg.Raydium, mainnet, tl)
	oracle, err := pool.NewRaydiumOracle(raydiumClient, mainnet, tl)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	c := &Core{
		cfg:     cfg,
		mint:    mint,
		tl:      tl,
		repo:    repo,
		helius:  heliusClient,
		raydium: raydiumClient,
		metrics: monitor.NewMetricsServer(cfg.Monitor),
		fatal:   make(chan error, 1),
	}
	c.reporter = c.newReporter()

	ledger := chain.NewRPCLedger(chain.RPCLedgerConfig{
		Client:            repo.GetSolanaClient(),
		Logger:            tl,
		RequestsPerSecond: cfg.Solana.RequestsPerSecond,
	})
	c.runner, err = distributor.NewRunner(distributor.Config{
		Mint:    mint,
		Network: cfg.Solana.Network,
		Mainnet: mainnet,
		Rewards: rewards,
		Options: opts,
		Rules:   rules,
	}, distributor.Deps{
		Ledger:        ledger,
		Oracle:        oracle,
		Swapper:       pool.NewRaydiumSwapper(raydiumClient),
		Holders:       heliusClient,
		Signer:        signer,
		Logger:        tl,
		BalanceLogger: logger.NewBalanceLogger("worker"),
		Reporter:      c.reporter,
	})
	if err != nil {
		c.closeClients()
		return nil, err
	}

	var lock job.RoundLocker
	if rdb := repo.GetRDB(); rdb != nil {
		lock = cache.NewRoundLock(rdb, mint.String(), roundLockTTL)
	}
	distribution := job.NewDistributionJob(c.runner, lock, tl)

	// 初始化作业调度器，致命错误停止分发并通知进程退出
	c.scheduler = job.NewScheduler(tl, job.WithFatalHandler(distributor.IsFatal, c.onFatal))
	c.scheduler.RegisterJob(jobName, c.runner.Interval(), distribution.Run)

	tl.Info("Fee distributor configured",
		zap.String("mint", mint.String()),
		zap.String("network", cfg.Solana.Network),
		zap.String("operator", c.runner.Operator().String()),
		zap.Int("rewards", len(rewards)),
		zap.Duration("interval", c.runner.Interval()))
	return c, nil
}

// newReporter 只接入已配置的存储
func (c *Core) newReporter() *report.Reporter {
	var opts []report.Option
	if db := c.repo.GetDB(); db != nil {
		opts = append(opts,
			report.WithRoundWriter(roundWriter.NewDbRoundWriter(db, c.tl)),
			report.WithPayoutWriter(writer.NewAsyncBatchWriter[model.PayoutRecord](c.tl, payoutWriter.NewDbPayoutWriter(db, c.tl), 200, time.Second, "payout_db", 1)))
	}
	if mq := c.repo.GetMQ(); mq != nil {
		opts = append(opts, report.WithPayoutWriter(writer.NewAsyncBatchWriter[model.PayoutRecord](
			c.tl, payoutWriter.NewKafkaPayoutWriter(mq, c.tl, c.cfg.Kafka.TopicPayouts), 200, time.Second, "payout_mq", 1)))
	}
	if es := c.repo.GetES(); es != nil {
		opts = append(opts, report.WithPayoutWriter(writer.NewAsyncBatchWriter[model.PayoutRecord](
			c.tl, payoutWriter.NewESPayoutWriter(es, c.tl, c.cfg.Elasticsearch.PayoutsIndexName), 500, 2*time.Second, "payout_es", 1)))
	}
	// rdb 为 nil 时不能直接传给接口参数
	c.snapshots = cache.NewSnapshotCache(c.tl, nil)
	if rdb := c.repo.GetRDB(); rdb != nil {
		c.snapshots = cache.NewSnapshotCache(c.tl, rdb)
	}
	opts = append(opts, report.WithSnapshotStore(c.snapshots))
	return report.New(c.tl, opts...)
}

func (c *Core) onFatal(name string, err error) {
	select {
	case c.fatal <- fmt.Errorf("%s: %w", name, err):
	default:
	}
}

// Fatal 分发遇到不可恢复的错误时可读
func (c *Core) Fatal() <-chan error {
	return c.fatal
}

func (c *Core) Start(ctx context.Context) {
	c.tl.Info("Starting worker core...")
	// 启动监控服务
	if c.metrics != nil {
		c.metrics.Run(c.tl)
	}
	c.reporter.Start(ctx)

	// 启动调度器
	c.scheduler.Start(ctx)
	c.tl.Info("Worker started successfully")

	// 等待外部关闭信号
	<-ctx.Done()
	c.tl.Info("Shutting down worker due to context cancellation...")
}

// RunOnce 不经过调度器执行一轮
func (c *Core) RunOnce(ctx context.Context) (*model.RoundReport, error) {
	c.reporter.Start(ctx)
	return c.runner.RunRound(ctx)
}

// LastSnapshot 最近一次保存的奖励余额快照
func (c *Core) LastSnapshot(ctx context.Context) (model.RewardSnapshot, error) {
	return c.snapshots.Load(ctx, c.mint.String())
}

// Stop 优雅关闭 Core 的所有资源
func (c *Core) Stop(ctx context.Context) {
	c.tl.Info("Stopping worker core...")

	// 停止调度器
	if c.scheduler != nil {
		c.scheduler.Stop(ctx)
	}

	// 停止 Prometheus 监控服务
	if c.metrics != nil {
		_ = c.metrics.Stop(ctx)
	}

	c.reporter.Close()
	c.closeClients()

	c.tl.Info("Worker core stopped.")
}

func (c *Core) closeClients() {
	_ = c.helius.Close()
	_ = c.raydium.Close()
	_ = c.repo.Close()
}
