package distributor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"web3-fee-distributor/internal/worker/chain"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/monitor"
	"web3-fee-distributor/internal/worker/payout"
	"web3-fee-distributor/internal/worker/pool"
	"web3-fee-distributor/pkg/logger"
	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	labelRound      = "round"
	labelValidate   = "validate"
	labelEstimate   = "estimate"
	labelWithdraw   = "withdraw"
	labelSwap       = "swap"
	labelDistribute = "distribute"
)

// HolderSource 持有人列表，出错时可能同时返回已拉取的部分
type HolderSource interface {
	Holders(ctx context.Context, mint string) ([]model.Holder, error)
}

// Reporter 轮次结果落地，实现需自行处理失败
type Reporter interface {
	ReportRound(ctx context.Context, report *model.RoundReport)
	ReportPayouts(ctx context.Context, records []model.PayoutRecord)
	SaveSnapshot(ctx context.Context, mint string, snapshot model.RewardSnapshot)
}

// Config 分发任务的静态配置
type Config struct {
	Mint    solana.PublicKey
	Network string
	Mainnet bool
	Rewards []model.RewardTarget
	Options Options
	Rules   Rules
}

// Deps 外部依赖，Reporter、BalanceLogger、Clock 可为空
type Deps struct {
	Ledger        chain.Ledger
	Oracle        pool.Oracle
	Swapper       pool.Swapper
	Holders       HolderSource
	Signer        solana.PrivateKey
	Logger        *zap.Logger
	BalanceLogger *zap.Logger
	Clock         clockwork.Clock
	Reporter      Reporter
}

// Runner 单个 mint 的分发状态机，同一时刻只允许一个 RunRound
type Runner struct {
	cfg     Config
	opts    Options
	rules   Rules
	rewards []model.RewardTarget

	ledger   chain.Ledger
	oracle   pool.Oracle
	swapper  pool.Swapper
	holders  HolderSource
	reporter Reporter

	signer   solana.PrivateKey
	operator solana.PublicKey

	tl         *zap.Logger
	log        *logger.Labeled
	balanceLog *zap.Logger
	clock      clockwork.Clock
	state      atomic.Int32

	// 以下状态只在 RunRound 内修改
	validated   bool
	mint        *chain.MintInfo
	operatorATA solana.PublicKey
	rewardATAs  map[solana.PublicKey]solana.PublicKey
	mainPool    *pool.Info
	rewardPools map[solana.PublicKey]*pool.Info
	snapshot    model.RewardSnapshot
	ataCache    *cache.Cache
}

func NewRunner(cfg Config, deps Deps) (*Runner, error) {
	if deps.Ledger == nil || deps.Oracle == nil || deps.Swapper == nil || deps.Holders == nil {
		return nil, errors.New("ledger, oracle, swapper and holder source are required")
	}
	if len(deps.Signer) == 0 {
		return nil, errors.New("signer is required")
	}
	if err := checkRewardPercents(cfg.Rewards); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	if err := cfg.Options.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	tl := deps.Logger
	if tl == nil {
		tl = zap.NewNop()
	}
	balanceLog := deps.BalanceLogger
	if balanceLog == nil {
		balanceLog = tl
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	tl = tl.With(zap.String("mint", cfg.Mint.String()))

	r := &Runner{
		cfg:         cfg,
		opts:        cfg.Options,
		rules:       cfg.Rules,
		rewards:     append([]model.RewardTarget(nil), cfg.Rewards...),
		ledger:      deps.Ledger,
		oracle:      deps.Oracle,
		swapper:     deps.Swapper,
		holders:     deps.Holders,
		reporter:    deps.Reporter,
		signer:      deps.Signer,
		operator:    deps.Signer.PublicKey(),
		tl:          tl,
		log:         logger.NewLabeled(tl),
		balanceLog:  balanceLog,
		clock:       clock,
		rewardATAs:  make(map[solana.PublicKey]solana.PublicKey),
		rewardPools: make(map[solana.PublicKey]*pool.Info),
		ataCache:    cache.New(10*time.Minute, 20*time.Minute),
	}
	r.setState(StateUnvalidated)
	return r, nil
}

func checkRewardPercents(rewards []model.RewardTarget) error {
	var sum float64
	for _, rw := range rewards {
		if rw.Percent < 0 {
			return fmt.Errorf("reward %s has negative percent", rw.Name)
		}
		sum += rw.Percent
	}
	if sum > 100 {
		return fmt.Errorf("%w: %v", ErrRewardPercent, sum)
	}
	return nil
}

// State 当前状态，可在其他 goroutine 读取
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
	monitor.RunnerState.Set(float64(s))
	r.log.Log(logger.SeverityTrace, labelRound, "state changed", zap.Stringer("state", s))
}

// Interval 两轮之间的休眠时间
func (r *Runner) Interval() time.Duration {
	return r.opts.Interval
}

// Operator 运营账户公钥
func (r *Runner) Operator() solana.PublicKey {
	return r.operator
}

// pause 阶段间隔，ctx 取消时立即返回
func (r *Runner) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(d):
		return nil
	}
}

func (r *Runner) nonNativeRewards() []model.RewardTarget {
	out := make([]model.RewardTarget, 0, len(r.rewards))
	for _, rw := range r.rewards {
		if !rw.IsNative(spltoken.NativeMint) {
			out = append(out, rw)
		}
	}
	return out
}

func (r *Runner) rewardMints() []string {
	out := make([]string, 0, len(r.rewards))
	for _, rw := range r.rewards {
		out = append(out, rw.Mint.String())
	}
	return out
}

// RunRound 执行一轮完整的提取、兑换、分发
// 返回 ErrFatal 时调用方应停止循环
func (r *Runner) RunRound(ctx context.Context) (report *model.RoundReport, err error) {
	roundID := uuid.NewString()
	ctx, span := logger.StartSpan(ctx, "distributor", "round",
		attribute.String("round_id", roundID),
		attribute.String("mint", r.cfg.Mint.String()))
	defer span.End()

	started := r.clock.Now()
	report = &model.RoundReport{
		RoundID:     roundID,
		Mint:        r.cfg.Mint.String(),
		Network:     r.cfg.Network,
		RewardMints: r.rewardMints(),
		StartedAt:   started.UnixMilli(),
	}
	tl := logger.WithTrace(ctx, r.tl).With(zap.String("round_id", roundID))
	tl.Info("Distribution round started")

	var haveStart bool
	defer func() {
		if err != nil {
			report.Outcome = model.OutcomeFailed
			report.SkipReason = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if haveStart {
			r.logBalances(context.WithoutCancel(ctx), report)
		}
		if len(r.snapshot) > 0 {
			if raw, mErr := r.snapshot.Marshal(); mErr == nil {
				report.Snapshot = raw
			}
		}
		r.snapshot = nil
		finished := r.clock.Now()
		report.FinishedAt = finished.UnixMilli()
		monitor.RoundsTotal.WithLabelValues(string(report.Outcome)).Inc()
		monitor.RoundDuration.Observe(finished.Sub(started).Seconds())
		if r.reporter != nil {
			r.reporter.ReportRound(context.WithoutCancel(ctx), report)
		}
		r.setState(StateSleeping)
		tl.Info("Distribution round finished",
			zap.String("outcome", string(report.Outcome)),
			zap.String("reason", report.SkipReason),
			zap.Duration("took", finished.Sub(started)))
	}()

	if err = r.ensureValidated(ctx); err != nil {
		return report, err
	}

	if report.StartBalance, err = r.ledger.GetBalance(ctx, r.operator); err != nil {
		return report, fmt.Errorf("read start balance: %w", err)
	}
	haveStart = true
	if err = r.pause(ctx, r.opts.Pacing.Step); err != nil {
		return report, err
	}

	holders, hErr := r.holders.Holders(ctx, r.cfg.Mint.String())
	if hErr != nil {
		if len(holders) == 0 {
			return report, fmt.Errorf("fetch holders: %w", hErr)
		}
		r.log.Log(logger.SeverityWarn, labelRound, "holder list is partial", zap.Int("fetched", len(holders)), zap.Error(hErr))
	}
	holders = ExcludeOwner(holders, r.mainPool.Authority)
	report.HolderCount = len(holders)
	if len(holders) == 0 {
		report.Outcome = model.OutcomeNoHolders
		return report, nil
	}

	r.setState(StateEstimating)
	supply := r.mint.Supply
	withdrawable, withdrawPct := SelectWithdrawable(holders, supply, r.opts.MaxWithdrawPercent)
	eligible := EligibleHolders(holders, supply, r.rules)
	report.WithdrawableCount = len(withdrawable)
	report.EligibleCount = len(eligible)
	report.WithdrawPercent = withdrawPct
	r.log.Log(logger.SeverityVerbose, labelEstimate, "holders selected",
		zap.Int("holders", len(holders)),
		zap.Int("withdrawable", len(withdrawable)),
		zap.Int("eligible", len(eligible)),
		zap.String("withdraw_percent", withdrawPct.String()))

	if len(withdrawable) == 0 {
		report.Outcome = model.OutcomeNothingToPull
		report.SkipReason = "no withheld fees to withdraw"
		return report, nil
	}

	est, err := r.Estimate(withdrawable, eligible)
	if err != nil {
		return report, fmt.Errorf("estimate: %w", err)
	}
	report.EstimatedYield = est.Yield
	report.EstimatedWithdrawCost = est.WithdrawCost
	report.EstimatedDistributeCost = est.DistributeCost
	if reason := est.SkipReason(r.minGetSolLamports()); reason != "" {
		r.log.Log(logger.SeverityWarn, labelEstimate, "round skipped by estimate", zap.String("reason", reason), zap.Object("estimate", est))
		report.Outcome = model.OutcomeSkippedGate
		report.SkipReason = reason
		return report, nil
	}
	r.log.Log(logger.SeverityInfo, labelEstimate, "estimate passed", zap.Object("estimate", est))
	if err = r.pause(ctx, r.opts.Pacing.Step); err != nil {
		return report, err
	}

	r.setState(StateWithdrawing)
	withdrawn, err := r.WithdrawFee(ctx, withdrawable)
	report.WithdrawnAmount = withdrawn
	if err != nil {
		return report, err
	}
	if withdrawn == 0 {
		report.Outcome = model.OutcomeNothingToPull
		report.SkipReason = "nothing withdrawn"
		return report, nil
	}

	r.setState(StateConverting)
	withdrawnSol, err := r.mainPool.Quote(r.cfg.Mint, withdrawn)
	if err != nil {
		return report, fmt.Errorf("quote withdrawn amount: %w", err)
	}
	if withdrawnSol < est.Yield {
		reason := fmt.Sprintf("withdrawn value %d below estimate %d", withdrawnSol, est.Yield)
		r.log.Log(logger.SeverityWarn, labelSwap, "distribution skipped", zap.String("reason", reason))
		report.Outcome = model.OutcomeSkippedYield
		report.SkipReason = reason
		return report, nil
	}
	if !r.opts.WithdrawAndSwap {
		feeAmount := payout.FromPercentOf(withdrawn, decimalFromFloat(r.opts.SwapFeePercent))
		if _, err = r.SwapFee(ctx, feeAmount); err != nil {
			return report, err
		}
	}
	if err = r.pause(ctx, r.opts.Pacing.Step); err != nil {
		return report, err
	}

	balance, err := r.ledger.GetBalance(ctx, r.operator)
	if err != nil {
		return report, fmt.Errorf("read balance after swap: %w", err)
	}
	if balance <= report.StartBalance {
		reason := fmt.Sprintf("no yield, balance %d start %d", balance, report.StartBalance)
		r.log.Log(logger.SeverityWarn, labelSwap, "distribution skipped", zap.String("reason", reason))
		report.Outcome = model.OutcomeSkippedYield
		report.SkipReason = reason
		return report, nil
	}
	report.YieldLamports = balance - report.StartBalance
	monitor.YieldLamports.Add(float64(report.YieldLamports))

	nativePool := payout.FromPercentOf(report.YieldLamports, decimalFromFloat(r.opts.SwapRewardPercent))
	if err = r.SwapRewards(ctx, nativePool); err != nil {
		return report, err
	}

	r.setState(StateSnapshotting)
	if err = r.TakeSnapshot(ctx); err != nil {
		return report, err
	}
	if r.reporter != nil {
		r.reporter.SaveSnapshot(context.WithoutCancel(ctx), r.cfg.Mint.String(), r.snapshot)
	}

	r.setState(StateDistributing)
	res, err := r.Distribute(ctx, roundID, eligible, nativePool)
	report.PaidHolders = res.Paid
	report.DeadLetters = res.DeadLetters
	report.UnconfirmedHolders = res.Unconfirmed
	if err != nil {
		return report, err
	}
	report.Outcome = model.OutcomeDistributed
	return report, nil
}

func (r *Runner) ensureValidated(ctx context.Context) error {
	if !r.validated {
		return r.Validate(ctx)
	}
	r.Revalidate(ctx)
	return nil
}

func (r *Runner) minGetSolLamports() uint64 {
	return solToLamports(r.opts.MinGetSol)
}

// logBalances 轮次结束时记录运营账户余额变化
func (r *Runner) logBalances(ctx context.Context, report *model.RoundReport) {
	end, err := r.ledger.GetBalance(ctx, r.operator)
	if err != nil {
		r.log.Log(logger.SeverityWarn, labelRound, "read end balance failed", zap.Error(err))
		return
	}
	report.EndBalance = end
	r.balanceLog.Info("Operator balance",
		zap.String("round_id", report.RoundID),
		zap.String("mint", report.Mint),
		zap.Uint64("start", report.StartBalance),
		zap.Uint64("end", end),
		zap.Int64("delta", int64(end)-int64(report.StartBalance)))
}
