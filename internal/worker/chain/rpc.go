package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RPCClient rpc.Client 中用到的方法
type RPCClient interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	SimulateTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

type RPCLedgerConfig struct {
	Client            RPCClient
	Logger            *zap.Logger
	Clock             clockwork.Clock
	RequestsPerSecond float64
	ConfirmTimeout    time.Duration
	ConfirmInterval   time.Duration
}

// RPCLedger 基于 solana-go rpc 的 Ledger，所有请求走同一个限流器
type RPCLedger struct {
	cfg        RPCLedgerConfig
	limiter    *rate.Limiter
	commitment rpc.CommitmentType
}

func NewRPCLedger(cfg RPCLedgerConfig) *RPCLedger {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = 2 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &RPCLedger{cfg: cfg, limiter: limiter, commitment: rpc.CommitmentConfirmed}
}

func (l *RPCLedger) wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

func (l *RPCLedger) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	if err := l.wait(ctx); err != nil {
		return 0, err
	}
	res, err := l.cfg.Client.GetBalance(ctx, account, l.commitment)
	if err != nil {
		return 0, fmt.Errorf("get balance %s: %w", account, err)
	}
	return res.Value, nil
}

func (l *RPCLedger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := l.wait(ctx); err != nil {
		return solana.Hash{}, err
	}
	res, err := l.cfg.Client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return res.Value.Blockhash, nil
}

func (l *RPCLedger) accountInfo(ctx context.Context, account solana.PublicKey) (*rpc.Account, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	res, err := l.cfg.Client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: l.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (res == nil || res.Value == nil)) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account info %s: %w", account, err)
	}
	return res.Value, nil
}

func (l *RPCLedger) GetMint(ctx context.Context, mint solana.PublicKey) (*MintInfo, error) {
	acc, err := l.accountInfo(ctx, mint)
	if err != nil {
		return nil, err
	}
	m, err := spltoken.DecodeMint(acc.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	return &MintInfo{Address: mint, ProgramID: acc.Owner, Mint: *m}, nil
}

func (l *RPCLedger) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := l.accountInfo(ctx, account)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (l *RPCLedger) TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	acc, err := l.accountInfo(ctx, tokenAccount)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return spltoken.DecodeTokenAccountAmount(acc.Data.GetBinary())
}

func (l *RPCLedger) Simulate(ctx context.Context, tx *solana.Transaction, watch []solana.PublicKey) (*SimulationResult, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	opts := &rpc.SimulateTransactionOpts{
		ReplaceRecentBlockhash: true,
		Commitment:             l.commitment,
	}
	if len(watch) > 0 {
		opts.Accounts = &rpc.SimulateTransactionAccountsOpts{
			Encoding:  solana.EncodingBase64,
			Addresses: watch,
		}
	}
	res, err := l.cfg.Client.SimulateTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return nil, fmt.Errorf("simulate transaction: %w", err)
	}
	if res == nil || res.Value == nil {
		return nil, errors.New("simulate transaction: empty response")
	}

	out := &SimulationResult{
		Err:      res.Value.Err,
		Logs:     res.Value.Logs,
		Accounts: make([][]byte, len(watch)),
	}
	if res.Value.UnitsConsumed != nil {
		out.UnitsConsumed = *res.Value.UnitsConsumed
	}
	for i, acc := range res.Value.Accounts {
		if i >= len(out.Accounts) || acc == nil || acc.Data == nil {
			continue
		}
		out.Accounts[i] = acc.Data.GetBinary()
	}
	return out, nil
}

func (l *RPCLedger) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := l.wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	sig, err := l.cfg.Client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: l.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, l.confirm(ctx, sig)
}

// confirm 轮询签名状态直到 confirmed/finalized 或超时，只有链上执行失败不包含 ErrUnconfirmed
func (l *RPCLedger) confirm(ctx context.Context, sig solana.Signature) error {
	deadline := l.cfg.Clock.Now().Add(l.cfg.ConfirmTimeout)
	for {
		if err := l.wait(ctx); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnconfirmed, sig, err)
		}
		res, err := l.cfg.Client.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			l.cfg.Logger.Debug("signature status lookup failed", zap.Stringer("sig", sig), zap.Error(err))
		} else if len(res.Value) > 0 && res.Value[0] != nil {
			st := res.Value[0]
			if st.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", sig, st.Err)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
		if !l.cfg.Clock.Now().Before(deadline) {
			return fmt.Errorf("%w: %s within %s", ErrUnconfirmed, sig, l.cfg.ConfirmTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrUnconfirmed, sig, ctx.Err())
		case <-l.cfg.Clock.After(l.cfg.ConfirmInterval):
		}
	}
}
