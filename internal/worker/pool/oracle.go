package pool

import (
	"context"
	"fmt"
	"math"

	"web3-fee-distributor/internal/worker/payout"
	"web3-fee-distributor/pkg/raydium"

	"github.com/gagliardetto/solana-go"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Oracle 查询交易对的池子
type Oracle interface {
	Lookup(ctx context.Context, mintA, mintB solana.PublicKey) (*Info, error)
}

// API raydium.Client 中池子查询部分
type API interface {
	PoolsByIDs(ctx context.Context, ids ...string) ([]*raydium.PoolInfo, error)
	PoolsByMints(ctx context.Context, mint1, mint2 string) ([]*raydium.PoolInfo, error)
}

type RaydiumOracle struct {
	api       API
	program   solana.PublicKey
	ammConfig solana.PublicKey
	authority solana.PublicKey
	poolIDs   *cache.Cache // pair -> pool id
	logger    *zap.Logger
}

func NewRaydiumOracle(api API, mainnet bool, logger *zap.Logger) (*RaydiumOracle, error) {
	program := raydium.CpmmProgramID(mainnet)
	ammConfig, err := raydium.AmmConfigAddress(program, 0)
	if err != nil {
		return nil, err
	}
	authority, err := raydium.AuthorityAddress(program)
	if err != nil {
		return nil, err
	}
	return &RaydiumOracle{
		api:       api,
		program:   program,
		ammConfig: ammConfig,
		authority: authority,
		poolIDs:   cache.New(cache.NoExpiration, 0),
		logger:    logger,
	}, nil
}

func pairKey(a, b solana.PublicKey) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}

// Lookup 依次尝试缓存的池子、(A,B) 与 (B,A) 两种顺序的 CPMM PDA、按 mint 搜索
func (o *RaydiumOracle) Lookup(ctx context.Context, mintA, mintB solana.PublicKey) (*Info, error) {
	key := pairKey(mintA, mintB)
	if id, ok := o.poolIDs.Get(key); ok {
		pools, err := o.api.PoolsByIDs(ctx, id.(string))
		if err == nil {
			if p := firstPool(pools); p != nil {
				return o.toInfo(p)
			}
		}
		o.logger.Debug("cached pool lookup failed, resolving again", zap.String("pair", key), zap.Error(err))
		o.poolIDs.Delete(key)
	}

	ab, err := raydium.PoolAddress(o.program, o.ammConfig, mintA, mintB)
	if err != nil {
		return nil, err
	}
	ba, err := raydium.PoolAddress(o.program, o.ammConfig, mintB, mintA)
	if err != nil {
		return nil, err
	}

	pools, err := o.api.PoolsByIDs(ctx, ab.String(), ba.String())
	if err != nil {
		o.logger.Debug("pool PDA lookup failed", zap.String("pair", key), zap.Error(err))
	}
	p := firstPool(pools)

	if p == nil {
		byMint, err := o.api.PoolsByMints(ctx, mintA.String(), mintB.String())
		if err != nil {
			return nil, fmt.Errorf("lookup pool %s: %w", key, err)
		}
		p = o.pickPool(byMint)
	}
	if p == nil {
		return nil, fmt.Errorf("lookup pool %s: %w", key, raydium.ErrNoPool)
	}

	info, err := o.toInfo(p)
	if err != nil {
		return nil, err
	}
	o.poolIDs.Set(key, p.ID, cache.NoExpiration)
	return info, nil
}

func firstPool(pools []*raydium.PoolInfo) *raydium.PoolInfo {
	for _, p := range pools {
		if p != nil && p.ID != "" {
			return p
		}
	}
	return nil
}

// pickPool 优先本程序的 CPMM 池
func (o *RaydiumOracle) pickPool(pools []*raydium.PoolInfo) *raydium.PoolInfo {
	for _, p := range pools {
		if p != nil && p.ProgramID == o.program.String() {
			return p
		}
	}
	return firstPool(pools)
}

func (o *RaydiumOracle) toInfo(p *raydium.PoolInfo) (*Info, error) {
	id, err := solana.PublicKeyFromBase58(p.ID)
	if err != nil {
		return nil, fmt.Errorf("pool id %q: %w", p.ID, err)
	}
	mintA, err := solana.PublicKeyFromBase58(p.MintA.Address)
	if err != nil {
		return nil, fmt.Errorf("pool %s mintA: %w", p.ID, err)
	}
	mintB, err := solana.PublicKeyFromBase58(p.MintB.Address)
	if err != nil {
		return nil, fmt.Errorf("pool %s mintB: %w", p.ID, err)
	}

	info := &Info{
		ID:         id,
		MintA:      mintA,
		MintB:      mintB,
		DecimalsA:  p.MintA.Decimals,
		DecimalsB:  p.MintB.Decimals,
		ReserveA:   decimal.NewFromFloat(p.MintAmountA).Shift(int32(p.MintA.Decimals)).Floor(),
		ReserveB:   decimal.NewFromFloat(p.MintAmountB).Shift(int32(p.MintB.Decimals)).Floor(),
		FeeRateBps: payout.DefaultPoolFeeBps,
	}
	if p.FeeRate > 0 {
		info.FeeRateBps = uint32(math.Round(p.FeeRate * 10000))
	}
	if p.ProgramID != "" {
		info.ProgramID, _ = solana.PublicKeyFromBase58(p.ProgramID)
	}
	switch {
	case info.ProgramID.IsZero(), info.ProgramID.Equals(o.program):
		info.Authority = o.authority
	case info.ProgramID.Equals(raydium.AmmV4ProgramMainnet):
		info.Authority = raydium.AmmV4Authority
	}
	return info, nil
}
