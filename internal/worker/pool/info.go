package pool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Info 交易对的定价信息，每轮刷新后整体替换
type Info struct {
	ID         solana.PublicKey
	ProgramID  solana.PublicKey
	Authority  solana.PublicKey
	MintA      solana.PublicKey
	MintB      solana.PublicKey
	DecimalsA  uint8
	DecimalsB  uint8
	ReserveA   decimal.Decimal // 最小单位
	ReserveB   decimal.Decimal
	FeeRateBps uint32
}

func (i *Info) Has(mint solana.PublicKey) bool {
	return i.MintA.Equals(mint) || i.MintB.Equals(mint)
}

// Quote 按储备比例换算 amountIn，不含滑点和手续费
func (i *Info) Quote(inputMint solana.PublicKey, amountIn uint64) (uint64, error) {
	var in, out decimal.Decimal
	switch {
	case inputMint.Equals(i.MintA):
		in, out = i.ReserveA, i.ReserveB
	case inputMint.Equals(i.MintB):
		in, out = i.ReserveB, i.ReserveA
	default:
		return 0, fmt.Errorf("mint %s not in pool %s", inputMint, i.ID)
	}
	if !in.IsPositive() || !out.IsPositive() {
		return 0, fmt.Errorf("pool %s has empty reserves", i.ID)
	}
	v := decimal.NewFromUint64(amountIn).Mul(out).Div(in).Floor()
	if !v.IsPositive() {
		return 0, nil
	}
	return v.BigInt().Uint64(), nil
}

// Other 交易对中的另一个 mint
func (i *Info) Other(mint solana.PublicKey) solana.PublicKey {
	if i.MintA.Equals(mint) {
		return i.MintB
	}
	return i.MintA
}
