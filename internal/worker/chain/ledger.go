package chain

import (
	"context"
	"errors"
	"fmt"

	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
)

const (
	LamportsPerSol  = solana.LAMPORTS_PER_SOL
	BaseFeeLamports = 5000
	// MaxTxBytes 序列化后交易的上限
	MaxTxBytes = 1232
)

var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrUnconfirmed 交易已广播但未确认，可能已上链，不能重发
	ErrUnconfirmed = errors.New("transaction not confirmed")
)

// IsUnconfirmed 交易已广播但结果未知
func IsUnconfirmed(err error) bool {
	return errors.Is(err, ErrUnconfirmed)
}

// MintInfo 解码后的 mint 以及所属 token program
type MintInfo struct {
	Address   solana.PublicKey
	ProgramID solana.PublicKey
	spltoken.Mint
}

// SimulationResult 模拟执行结果，Accounts 与 watch 列表一一对应，账户不存在时为 nil
type SimulationResult struct {
	Err           any
	Logs          []string
	Accounts      [][]byte
	UnitsConsumed uint64
}

func (s *SimulationResult) Failed() bool {
	return s != nil && s.Err != nil
}

func (s *SimulationResult) Error() error {
	if !s.Failed() {
		return nil
	}
	return fmt.Errorf("simulation failed: %v", s.Err)
}

// TokenAmount 读取第 i 个 watch 账户模拟后的 token 余额
func (s *SimulationResult) TokenAmount(i int) (uint64, bool) {
	if s == nil || i >= len(s.Accounts) || s.Accounts[i] == nil {
		return 0, false
	}
	amount, err := spltoken.DecodeTokenAccountAmount(s.Accounts[i])
	if err != nil {
		return 0, false
	}
	return amount, true
}

// Ledger 分发任务依赖的链上读写能力
type Ledger interface {
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	GetMint(ctx context.Context, mint solana.PublicKey) (*MintInfo, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	// TokenBalance 账户不存在时返回 0
	TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error)
	Simulate(ctx context.Context, tx *solana.Transaction, watch []solana.PublicKey) (*SimulationResult, error)
	// Send 发送并等待确认，广播成功后的错误同时返回签名，结果未知时错误包含 ErrUnconfirmed
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}
