package pool

import (
	"context"
	"fmt"

	"web3-fee-distributor/pkg/raydium"
	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
)

// SwapParams 固定输入数量的兑换
type SwapParams struct {
	Owner         solana.PublicKey
	InputMint     solana.PublicKey
	InputProgram  solana.PublicKey
	OutputMint    solana.PublicKey
	OutputProgram solana.PublicKey
	Amount        uint64
	SlippageBps   int
}

// Swapper 返回 nil 表示没有可用路由
type Swapper interface {
	SwapInstructions(ctx context.Context, p SwapParams) ([]solana.Instruction, error)
}

type SwapAPI interface {
	QuoteSwapBaseIn(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps int) (*raydium.SwapQuote, error)
	SwapTransactions(ctx context.Context, quote *raydium.SwapQuote, accounts raydium.SwapAccounts) ([]*solana.Transaction, error)
}

type RaydiumSwapper struct {
	api SwapAPI
}

func NewRaydiumSwapper(api SwapAPI) *RaydiumSwapper {
	return &RaydiumSwapper{api: api}
}

func (s *RaydiumSwapper) SwapInstructions(ctx context.Context, p SwapParams) ([]solana.Instruction, error) {
	if p.Amount == 0 {
		return nil, nil
	}
	quote, err := s.api.QuoteSwapBaseIn(ctx, p.InputMint, p.OutputMint, p.Amount, p.SlippageBps)
	if err != nil {
		return nil, err
	}
	if quote.Data.OutputAmount == "" || quote.Data.OutputAmount == "0" {
		return nil, nil
	}

	accounts := raydium.SwapAccounts{Wallet: p.Owner}
	if p.InputMint.Equals(spltoken.NativeMint) {
		accounts.WrapSol = true
	} else if accounts.InputAccount, err = spltoken.FindAssociatedTokenAddress(p.Owner, p.InputMint, p.InputProgram); err != nil {
		return nil, err
	}
	if p.OutputMint.Equals(spltoken.NativeMint) {
		accounts.UnwrapSol = true
	} else if accounts.OutputAccount, err = spltoken.FindAssociatedTokenAddress(p.Owner, p.OutputMint, p.OutputProgram); err != nil {
		return nil, err
	}

	txs, err := s.api.SwapTransactions(ctx, quote, accounts)
	if err != nil {
		return nil, err
	}
	var out []solana.Instruction
	for i, tx := range txs {
		ixs, err := raydium.Instructions(tx)
		if err != nil {
			return nil, fmt.Errorf("swap tx %d: %w", i, err)
		}
		out = append(out, ixs...)
	}
	return out, nil
}
