package distributor

import (
	"context"
	"fmt"

	"web3-fee-distributor/internal/worker/monitor"
	"web3-fee-distributor/pkg/logger"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// compose 组装并签名交易，返回序列化后的字节数
func (r *Runner) compose(blockhash solana.Hash, ixs []solana.Instruction) (*solana.Transaction, int, error) {
	if len(ixs) == 0 {
		return nil, 0, errNoInstructions
	}
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(r.operator))
	if err != nil {
		return nil, 0, fmt.Errorf("new transaction: %w", err)
	}
	if _, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(r.operator) {
			return &r.signer
		}
		return nil
	}); err != nil {
		return nil, 0, fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, 0, fmt.Errorf("serialize transaction: %w", err)
	}
	return tx, len(raw), nil
}

// shrinkToFit 交易超出 maxBytes 时弹出末尾元素重试，弹出的元素按原顺序放入 remaining
// 每轮至少减少一个元素，单元素仍超限时返回 ErrTxTooLarge
func shrinkToFit[T any](items []T, maxBytes int, build func([]T) (*solana.Transaction, int, error)) (tx *solana.Transaction, fit, remaining []T, err error) {
	fit = items
	for len(fit) > 0 {
		var size int
		tx, size, err = build(fit)
		if err != nil {
			return nil, nil, remaining, err
		}
		if size <= maxBytes {
			return tx, fit, remaining, nil
		}
		last := len(fit) - 1
		remaining = append([]T{fit[last]}, remaining...)
		fit = fit[:last]
	}
	return nil, nil, remaining, ErrTxTooLarge
}

// send 发送已模拟通过的交易，不受调用方取消影响
func (r *Runner) send(ctx context.Context, kind string, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := r.ledger.Send(context.WithoutCancel(ctx), tx)
	if err != nil {
		monitor.TransactionsSent.WithLabelValues(kind, "error").Inc()
		return sig, err
	}
	monitor.TransactionsSent.WithLabelValues(kind, "ok").Inc()
	r.log.Log(logger.SeverityDebug, kind, "transaction confirmed", zap.Stringer("signature", sig))
	return sig, nil
}

func (r *Runner) recordShrink(kind string, dropped int) {
	if dropped == 0 {
		return
	}
	monitor.TransactionShrinks.WithLabelValues(kind).Add(float64(dropped))
	r.log.Log(logger.SeverityVerbose, kind, "transaction too large, items requeued", zap.Int("dropped", dropped))
}
