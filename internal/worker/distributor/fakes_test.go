package distributor

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"web3-fee-distributor/internal/worker/chain"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/pool"
	"web3-fee-distributor/pkg/logger"
	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeLedger struct {
	mu       sync.Mutex
	balance  uint64
	mints    map[solana.PublicKey]*chain.MintInfo
	accounts map[solana.PublicKey]bool
	tokens   map[solana.PublicKey]uint64
	simulate func(tx *solana.Transaction, watch []solana.PublicKey) (*chain.SimulationResult, error)
	onSend   func(l *fakeLedger, tx *solana.Transaction)
	sendErr  error
	// confirmErr 交易已记入 sent 但确认失败
	confirmErr error
	sent       []*solana.Transaction
	sims       int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		mints:    map[solana.PublicKey]*chain.MintInfo{},
		accounts: map[solana.PublicKey]bool{},
		tokens:   map[solana.PublicKey]uint64{},
	}
}

func (l *fakeLedger) GetBalance(_ context.Context, _ solana.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, nil
}

func (l *fakeLedger) LatestBlockhash(_ context.Context) (solana.Hash, error) {
	return solana.Hash{7}, nil
}

func (l *fakeLedger) GetMint(_ context.Context, mint solana.PublicKey) (*chain.MintInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, ok := l.mints[mint]
	if !ok {
		return nil, chain.ErrAccountNotFound
	}
	cp := *info
	return &cp, nil
}

func (l *fakeLedger) AccountExists(_ context.Context, account solana.PublicKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[account], nil
}

func (l *fakeLedger) TokenBalance(_ context.Context, account solana.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens[account], nil
}

func (l *fakeLedger) Simulate(_ context.Context, tx *solana.Transaction, watch []solana.PublicKey) (*chain.SimulationResult, error) {
	l.mu.Lock()
	l.sims++
	fn := l.simulate
	l.mu.Unlock()
	if fn == nil {
		return &chain.SimulationResult{}, nil
	}
	return fn(tx, watch)
}

func (l *fakeLedger) Send(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return solana.Signature{}, l.sendErr
	}
	l.sent = append(l.sent, tx)
	if l.onSend != nil {
		l.onSend(l, tx)
	}
	return tx.Signatures[0], l.confirmErr
}

type fakeOracle struct {
	pools map[string]*pool.Info
	err   error
	calls int
}

func (o *fakeOracle) Lookup(_ context.Context, a, b solana.PublicKey) (*pool.Info, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	if p, ok := o.pools[a.String()+b.String()]; ok {
		return p, nil
	}
	if p, ok := o.pools[b.String()+a.String()]; ok {
		return p, nil
	}
	return nil, errors.New("no pool")
}

func (o *fakeOracle) add(p *pool.Info) {
	o.pools[p.MintA.String()+p.MintB.String()] = p
}

// fakeSwapper 用一笔 SOL 转账代替真实兑换，换成 SOL 时转给 marker，否则转给输出 mint
type fakeSwapper struct {
	marker solana.PublicKey
	calls  []pool.SwapParams
	err    error
	noPath bool
}

func (s *fakeSwapper) SwapInstructions(_ context.Context, p pool.SwapParams) ([]solana.Instruction, error) {
	s.calls = append(s.calls, p)
	if s.err != nil {
		return nil, s.err
	}
	if s.noPath {
		return nil, nil
	}
	to := s.marker
	if !p.OutputMint.Equals(spltoken.NativeMint) {
		to = p.OutputMint
	}
	return []solana.Instruction{system.NewTransferInstruction(1, p.Owner, to).Build()}, nil
}

type fakeHolders struct {
	holders []model.Holder
	err     error
}

func (f *fakeHolders) Holders(_ context.Context, _ string) ([]model.Holder, error) {
	return f.holders, f.err
}

type fakeReporter struct {
	rounds    []*model.RoundReport
	payouts   []model.PayoutRecord
	snapshots []model.RewardSnapshot
}

func (f *fakeReporter) ReportRound(_ context.Context, r *model.RoundReport) {
	f.rounds = append(f.rounds, r)
}

func (f *fakeReporter) ReportPayouts(_ context.Context, records []model.PayoutRecord) {
	f.payouts = append(f.payouts, records...)
}

func (f *fakeReporter) SaveSnapshot(_ context.Context, _ string, s model.RewardSnapshot) {
	f.snapshots = append(f.snapshots, s)
}

func (f *fakeReporter) byStatus(status model.PayoutStatus) []model.PayoutRecord {
	var out []model.PayoutRecord
	for _, r := range f.payouts {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

type testEnv struct {
	ledger      *fakeLedger
	oracle      *fakeOracle
	swapper     *fakeSwapper
	holders     *fakeHolders
	reporter    *fakeReporter
	logs        *observer.ObservedLogs
	clock       *clockwork.FakeClock
	signer      solana.PrivateKey
	operator    solana.PublicKey
	mint        solana.PublicKey
	operatorATA solana.PublicKey
	mainPool    *pool.Info
	cfg         Config
	core        zapcore.Core
}

const (
	testSupply  uint64 = 100_000_000_000
	testBalance uint64 = 1_000_000_000
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

func tokenAccountData(amount uint64) []byte {
	data := make([]byte, spltoken.AccountSize)
	binary.LittleEndian.PutUint64(data[64:72], amount)
	return data
}

// newTestEnv 一个 mint、一个 SOL 池子、只有原生奖励的环境
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	signer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	operator := signer.PublicKey()
	mint := newKey(t)
	operatorATA, err := spltoken.FindAssociatedTokenAddress(operator, mint, spltoken.Token2022ProgramID)
	require.NoError(t, err)

	ledger := newFakeLedger()
	ledger.balance = testBalance
	ledger.accounts[operatorATA] = true
	ledger.mints[mint] = &chain.MintInfo{
		Address:   mint,
		ProgramID: spltoken.Token2022ProgramID,
		Mint: spltoken.Mint{
			Supply:        testSupply,
			Decimals:      6,
			IsInitialized: true,
			TransferFeeConfig: &spltoken.TransferFeeConfig{
				WithdrawWithheldAuthority: operator,
			},
		},
	}

	mainPool := &pool.Info{
		ID:         newKey(t),
		Authority:  newKey(t),
		MintA:      mint,
		MintB:      spltoken.NativeMint,
		DecimalsA:  6,
		DecimalsB:  9,
		ReserveA:   decimal.NewFromInt(1_000_000_000_000),
		ReserveB:   decimal.NewFromInt(1_000_000_000_000),
		FeeRateBps: 25,
	}
	oracle := &fakeOracle{pools: map[string]*pool.Info{}}
	oracle.add(mainPool)

	opts := DefaultOptions()
	opts.Pacing = Pacing{}

	core, logs := observer.New(zapcore.Level(logger.SeverityTrace))
	return &testEnv{
		ledger:      ledger,
		oracle:      oracle,
		swapper:     &fakeSwapper{marker: newKey(t)},
		holders:     &fakeHolders{},
		reporter:    &fakeReporter{},
		logs:        logs,
		clock:       clockwork.NewFakeClock(),
		signer:      signer,
		operator:    operator,
		mint:        mint,
		operatorATA: operatorATA,
		mainPool:    mainPool,
		cfg: Config{
			Mint:    mint,
			Network: "devnet",
			Rewards: []model.RewardTarget{{Mint: spltoken.NativeMint, Percent: 100, ProgramID: spltoken.TokenProgramID, Name: "SOL"}},
			Options: opts,
			Rules:   DefaultRules(),
		},
		core: core,
	}
}

func (e *testEnv) runner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner(e.cfg, Deps{
		Ledger:   e.ledger,
		Oracle:   e.oracle,
		Swapper:  e.swapper,
		Holders:  e.holders,
		Signer:   e.signer,
		Logger:   zap.New(e.core),
		Clock:    e.clock,
		Reporter: e.reporter,
	})
	require.NoError(t, err)
	return r
}

// validatedRunner 已通过校验的 runner
func (e *testEnv) validatedRunner(t *testing.T) *Runner {
	t.Helper()
	r := e.runner(t)
	require.NoError(t, r.Validate(context.Background()))
	return r
}

// addReward 增加一个非原生奖励及其池子，运营账户的奖励 ATA 已存在
func (e *testEnv) addReward(t *testing.T, percent float64) model.RewardTarget {
	t.Helper()
	mint := newKey(t)
	e.ledger.mints[mint] = &chain.MintInfo{
		Address:   mint,
		ProgramID: spltoken.TokenProgramID,
		Mint:      spltoken.Mint{Supply: 1_000_000_000_000, Decimals: 6, IsInitialized: true},
	}
	ata, err := spltoken.FindAssociatedTokenAddress(e.operator, mint, spltoken.TokenProgramID)
	require.NoError(t, err)
	e.ledger.accounts[ata] = true
	e.oracle.add(&pool.Info{
		ID:         newKey(t),
		MintA:      spltoken.NativeMint,
		MintB:      mint,
		ReserveA:   decimal.NewFromInt(1_000_000_000),
		ReserveB:   decimal.NewFromInt(1_000_000_000),
		FeeRateBps: 25,
	})
	rw := model.RewardTarget{Mint: mint, Percent: percent, ProgramID: spltoken.TokenProgramID, Name: "RWD"}
	e.cfg.Rewards = append(e.cfg.Rewards, rw)
	return rw
}

func holder(t *testing.T, amount, withheld uint64) model.Holder {
	t.Helper()
	return model.Holder{
		Owner:          newKey(t).String(),
		Address:        newKey(t).String(),
		Amount:         amount,
		WithheldAmount: withheld,
	}
}

func txSize(t *testing.T, tx *solana.Transaction) int {
	t.Helper()
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return len(raw)
}

func containsAccount(tx *solana.Transaction, key solana.PublicKey) bool {
	for _, k := range tx.Message.AccountKeys {
		if k.Equals(key) {
			return true
		}
	}
	return false
}
