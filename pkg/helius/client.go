package helius

import (
	"context"
	"fmt"
	"time"

	"web3-fee-distributor/internal/worker/config"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/pkg/httpclient"

	"go.uber.org/zap"
)

const (
	mainnetURL = "https://mainnet.helius-rpc.com"
	devnetURL  = "https://devnet.helius-rpc.com"

	PageLimit = 1000
)

type Client struct {
	url        string
	httpClient *httpclient.HTTPClient
	logger     *zap.Logger
}

// NewClient 根据网络选择 Helius 主机，base_url 配置优先
func NewClient(cfg config.HeliusConfig, mainnet bool, logger *zap.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = devnetURL
		if mainnet {
			base = mainnetURL
		}
	}

	httpClient := httpclient.NewHTTPClient(httpclient.HTTPClientConfig{
		Timeout:    time.Duration(cfg.Timeout) * time.Second,
		RateLimit:  cfg.RateLimit,
		MaxRetries: 0, // 失败直接中止分页
	}, logger)

	return &Client{
		url:        fmt.Sprintf("%s/?api-key=%s", base, cfg.APIKey),
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetTokenAccounts 拉取一页
func (c *Client) GetTokenAccounts(ctx context.Context, mint string, page int) ([]TokenAccount, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      fmt.Sprintf("holders-%d", page),
		Method:  "getTokenAccounts",
		Params: tokenAccountsParams{
			Page:           page,
			Limit:          PageLimit,
			DisplayOptions: map[string]any{},
			Mint:           mint,
		},
	}

	var resp tokenAccountsResponse
	if err := c.httpClient.PostJSON(ctx, c.url, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getTokenAccounts: %d %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result.TokenAccounts, nil
}

// Holders 翻页直到空页；中途失败返回已拿到的部分和错误
func (c *Client) Holders(ctx context.Context, mint string) ([]model.Holder, error) {
	var holders []model.Holder
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return holders, err
		}
		accounts, err := c.GetTokenAccounts(ctx, mint, page)
		if err != nil {
			c.logger.Warn("Helius pagination aborted",
				zap.String("mint", mint), zap.Int("page", page), zap.Int("collected", len(holders)), zap.Error(err))
			return holders, fmt.Errorf("fetch holders page %d: %w", page, err)
		}
		if len(accounts) == 0 {
			break
		}
		for _, acc := range accounts {
			holders = append(holders, acc.Holder())
		}
	}
	c.logger.Debug("Fetched holders", zap.String("mint", mint), zap.Int("count", len(holders)))
	return holders, nil
}

func (c *Client) Close() error {
	return c.httpClient.Close()
}
