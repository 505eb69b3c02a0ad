package distributor

import (
	"context"

	"web3-fee-distributor/pkg/logger"
	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Validate 首轮前的完整校验，任何失败都返回 ErrFatal
func (r *Runner) Validate(ctx context.Context) error {
	r.setState(StateValidating)

	mint, err := r.ledger.GetMint(ctx, r.cfg.Mint)
	if err != nil {
		return fatalf("load mint %s: %v", r.cfg.Mint, err)
	}
	if err = checkRewardPercents(r.rewards); err != nil {
		return fatalf("%v", err)
	}
	if r.opts.SwapFeePercent > 100 || r.opts.SwapRewardPercent > 100 {
		return fatalf("swap percents must not exceed 100")
	}

	for i, rw := range r.rewards {
		if rw.IsNative(spltoken.NativeMint) {
			r.rewards[i].Decimals = 9
			continue
		}
		info, err := r.ledger.GetMint(ctx, rw.Mint)
		if err != nil {
			return fatalf("load reward mint %s (%s): %v", rw.Name, rw.Mint, err)
		}
		r.rewards[i].Decimals = info.Decimals
		r.rewards[i].ProgramID = info.ProgramID
	}

	if mint.TransferFeeConfig == nil {
		return fatalf("mint %s: %v", r.cfg.Mint, spltoken.ErrNoTransferFeeConfig)
	}
	if authority := mint.TransferFeeConfig.WithdrawWithheldAuthority; !authority.Equals(r.operator) {
		return fatalf("withdraw authority %s does not match operator %s", authority, r.operator)
	}

	balance, err := r.ledger.GetBalance(ctx, r.operator)
	if err != nil {
		return fatalf("read operator balance: %v", err)
	}
	r.log.Log(logger.SeverityInfo, labelValidate, "fee authority balance",
		zap.Stringer("operator", r.operator),
		zap.Uint64("lamports", balance))
	nonNative := r.nonNativeRewards()
	if need := ATARentLamports * uint64(len(nonNative)); balance < need {
		return fatalf("operator balance %d below %d needed for %d reward accounts", balance, need, len(nonNative))
	}
	if balance < MinOperatorLamports {
		return fatalf("operator balance %d below minimum %d", balance, MinOperatorLamports)
	}

	mainPool, err := r.oracle.Lookup(ctx, r.cfg.Mint, spltoken.NativeMint)
	if err != nil {
		return fatalf("pool lookup %s/SOL: %v", r.cfg.Mint, err)
	}
	for _, rw := range nonNative {
		p, err := r.oracle.Lookup(ctx, spltoken.NativeMint, rw.Mint)
		if err != nil {
			return fatalf("pool lookup SOL/%s: %v", rw.Name, err)
		}
		r.rewardPools[rw.Mint] = p
	}
	r.mint = mint
	r.mainPool = mainPool

	if err = r.ensureOperatorAccounts(ctx); err != nil {
		return fatalf("create operator accounts: %v", err)
	}

	if r.cfg.Mainnet {
		r.log.Log(logger.SeverityWarn, labelValidate, "running on mainnet, transactions spend real funds")
	} else {
		r.log.Log(logger.SeverityVerbose, labelValidate, "running on devnet")
	}
	r.validated = true
	r.log.Log(logger.SeverityInfo, labelValidate, "validation passed",
		zap.Uint64("supply", mint.Supply),
		zap.Uint8("decimals", mint.Decimals),
		zap.Stringer("pool", mainPool.ID),
		zap.Int("rewards", len(r.rewards)))
	return nil
}

// Revalidate 只刷新池子信息，失败时沿用上一轮的
func (r *Runner) Revalidate(ctx context.Context) {
	if p, err := r.oracle.Lookup(ctx, r.cfg.Mint, spltoken.NativeMint); err != nil {
		r.log.Log(logger.SeverityWarn, labelValidate, "refresh main pool failed, keeping previous", zap.Error(err))
	} else {
		r.mainPool = p
	}
	for _, rw := range r.nonNativeRewards() {
		p, err := r.oracle.Lookup(ctx, spltoken.NativeMint, rw.Mint)
		if err != nil {
			r.log.Log(logger.SeverityWarn, labelValidate, "refresh reward pool failed, keeping previous",
				zap.String("reward", rw.Name), zap.Error(err))
			continue
		}
		r.rewardPools[rw.Mint] = p
	}
}

// ensureOperatorAccounts 一笔交易补齐运营账户缺失的 mint 和奖励 ATA
func (r *Runner) ensureOperatorAccounts(ctx context.Context) error {
	type account struct {
		mint    solana.PublicKey
		program solana.PublicKey
	}
	accounts := []account{{mint: r.cfg.Mint, program: r.mint.ProgramID}}
	for _, rw := range r.nonNativeRewards() {
		accounts = append(accounts, account{mint: rw.Mint, program: rw.ProgramID})
	}

	var ixs []solana.Instruction
	for i, a := range accounts {
		ix, ata, err := spltoken.CreateAssociatedTokenAccount(r.operator, r.operator, a.mint, a.program, true)
		if err != nil {
			return err
		}
		if i == 0 {
			r.operatorATA = ata
		} else {
			r.rewardATAs[a.mint] = ata
		}
		exists, err := r.ledger.AccountExists(ctx, ata)
		if err != nil {
			return err
		}
		if !exists {
			ixs = append(ixs, ix)
		}
	}
	if len(ixs) == 0 {
		return nil
	}

	blockhash, err := r.ledger.LatestBlockhash(ctx)
	if err != nil {
		return err
	}
	tx, _, err := r.compose(blockhash, ixs)
	if err != nil {
		return err
	}
	sim, err := r.ledger.Simulate(ctx, tx, nil)
	if err != nil {
		return err
	}
	if sim.Failed() {
		return sim.Error()
	}
	sig, err := r.send(ctx, labelValidate, tx)
	if err != nil {
		return err
	}
	r.log.Log(logger.SeverityInfo, labelValidate, "operator token accounts created", zap.Int("count", len(ixs)), zap.Stringer("signature", sig))
	return nil
}
