package raydium

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"web3-fee-distributor/internal/worker/config"
	"web3-fee-distributor/pkg/httpclient"

	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	apiMainnet   = "https://api-v3.raydium.io"
	apiDevnet    = "https://api-v3-devnet.raydium.io"
	tradeMainnet = "https://transaction-v1.raydium.io"
	tradeDevnet  = "https://transaction-v1-devnet.raydium.io"

	txVersionLegacy = "LEGACY"
)

var ErrNoPool = errors.New("pool not found")

type Client struct {
	apiURL           string
	tradeURL         string
	computeUnitPrice uint64
	httpClient       *httpclient.HTTPClient
	logger           *zap.Logger
}

func NewClient(cfg config.RaydiumConfig, mainnet bool, logger *zap.Logger) *Client {
	apiURL, tradeURL := apiDevnet, tradeDevnet
	if mainnet {
		apiURL, tradeURL = apiMainnet, tradeMainnet
	}
	if cfg.APIURL != "" {
		apiURL = cfg.APIURL
	}
	if cfg.TradeURL != "" {
		tradeURL = cfg.TradeURL
	}

	httpClient := httpclient.NewHTTPClient(httpclient.HTTPClientConfig{
		Timeout:    time.Duration(cfg.Timeout) * time.Second,
		RateLimit:  cfg.RateLimit,
		MaxRetries: 2,
	}, logger)

	return &Client{
		apiURL:           strings.TrimRight(apiURL, "/"),
		tradeURL:         strings.TrimRight(tradeURL, "/"),
		computeUnitPrice: cfg.ComputeUnitPrice,
		httpClient:       httpClient,
		logger:           logger,
	}
}

// PoolsByIDs 不存在的 id 对应位置为 nil
func (c *Client) PoolsByIDs(ctx context.Context, ids ...string) ([]*PoolInfo, error) {
	var resp poolsByIDsResponse
	err := c.httpClient.Get(ctx, c.apiURL+"/pools/info/ids", map[string]string{"ids": strings.Join(ids, ",")}, &resp)
	if err != nil {
		return nil, fmt.Errorf("pools by ids: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("pools by ids: %s", resp.Msg)
	}
	return resp.Data, nil
}

// PoolsByMints 按流动性倒序
func (c *Client) PoolsByMints(ctx context.Context, mint1, mint2 string) ([]*PoolInfo, error) {
	var resp poolsByMintResponse
	err := c.httpClient.Get(ctx, c.apiURL+"/pools/info/mint", map[string]string{
		"mint1":         mint1,
		"mint2":         mint2,
		"poolType":      "standard",
		"poolSortField": "liquidity",
		"sortType":      "desc",
		"pageSize":      "20",
		"page":          "1",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("pools by mints: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("pools by mints: %s", resp.Msg)
	}
	return resp.Data.Data, nil
}

// QuoteSwapBaseIn 固定输入数量询价
func (c *Client) QuoteSwapBaseIn(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps int) (*SwapQuote, error) {
	var raw json.RawMessage
	err := c.httpClient.Get(ctx, c.tradeURL+"/compute/swap-base-in", map[string]string{
		"inputMint":   inputMint.String(),
		"outputMint":  outputMint.String(),
		"amount":      strconv.FormatUint(amount, 10),
		"slippageBps": strconv.Itoa(slippageBps),
		"txVersion":   txVersionLegacy,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("swap quote: %w", err)
	}

	var env quoteEnvelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode swap quote: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("swap quote rejected: %s", env.Msg)
	}
	quote := &SwapQuote{Raw: raw}
	if err := sonic.Unmarshal(env.Data, &quote.Data); err != nil {
		return nil, fmt.Errorf("decode swap quote data: %w", err)
	}
	return quote, nil
}

// SwapAccounts transaction 接口的账户参数，零值表示交给 API 推导
type SwapAccounts struct {
	Wallet        solana.PublicKey
	WrapSol       bool
	UnwrapSol     bool
	InputAccount  solana.PublicKey
	OutputAccount solana.PublicKey
}

// SwapTransactions 返回 legacy 交易（可能有多笔）
func (c *Client) SwapTransactions(ctx context.Context, quote *SwapQuote, accounts SwapAccounts) ([]*solana.Transaction, error) {
	req := swapTxRequest{
		ComputeUnitPriceMicroLamports: strconv.FormatUint(c.computeUnitPrice, 10),
		SwapResponse:                  quote.Raw,
		TxVersion:                     txVersionLegacy,
		Wallet:                        accounts.Wallet.String(),
		WrapSol:                       accounts.WrapSol,
		UnwrapSol:                     accounts.UnwrapSol,
	}
	if !accounts.InputAccount.IsZero() {
		req.InputAccount = accounts.InputAccount.String()
	}
	if !accounts.OutputAccount.IsZero() {
		req.OutputAccount = accounts.OutputAccount.String()
	}

	var resp swapTxResponse
	if err := c.httpClient.PostJSON(ctx, c.tradeURL+"/transaction/swap-base-in", req, &resp); err != nil {
		return nil, fmt.Errorf("swap transaction: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("swap transaction rejected: %s", resp.Msg)
	}

	txs := make([]*solana.Transaction, 0, len(resp.Data))
	for i, item := range resp.Data {
		raw, err := base64.StdEncoding.DecodeString(item.Transaction)
		if err != nil {
			return nil, fmt.Errorf("swap transaction %d: %w", i, err)
		}
		tx, err := solana.TransactionFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("swap transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Instructions 把交易拆回指令，只接受钱包是唯一签名者的交易
func Instructions(tx *solana.Transaction) ([]solana.Instruction, error) {
	if tx.Message.Header.NumRequiredSignatures > 1 {
		return nil, fmt.Errorf("swap transaction requires %d signers", tx.Message.Header.NumRequiredSignatures)
	}
	out := make([]solana.Instruction, 0, len(tx.Message.Instructions))
	for i := range tx.Message.Instructions {
		ci := tx.Message.Instructions[i]
		programID, err := tx.Message.ResolveProgramIDIndex(ci.ProgramIDIndex)
		if err != nil {
			return nil, fmt.Errorf("instruction %d program: %w", i, err)
		}
		accounts, err := ci.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			return nil, fmt.Errorf("instruction %d accounts: %w", i, err)
		}
		out = append(out, solana.NewInstruction(programID, accounts, ci.Data))
	}
	return out, nil
}

func (c *Client) Close() error {
	return c.httpClient.Close()
}
