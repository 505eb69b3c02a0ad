package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"web3-fee-distributor/internal/worker/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pageBody(n, offset int) string {
	accounts := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		accounts = append(accounts, map[string]any{
			"address": fmt.Sprintf("acc-%d", offset+i),
			"owner":   fmt.Sprintf("owner-%d", offset+i),
			"amount":  1000 + offset + i,
			"token_extensions": map[string]any{
				"transfer_fee_amount": map[string]any{"withheld_amount": offset + i},
			},
		})
	}
	body, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "result": map[string]any{"token_accounts": accounts}})
	return string(body)
}

func newTestServer(t *testing.T, handler func(page int) (int, string)) (*httptest.Server, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "k", r.URL.Query().Get("api-key"))

		var req rpcRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTokenAccounts", req.Method)
		assert.Equal(t, PageLimit, req.Params.Limit)
		assert.Equal(t, "MINT", req.Params.Mint)

		status, body := handler(req.Params.Page)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestHoldersPaginatesUntilEmptyPage(t *testing.T) {
	srv, calls := newTestServer(t, func(page int) (int, string) {
		switch page {
		case 1:
			return http.StatusOK, pageBody(3, 0)
		case 2:
			return http.StatusOK, pageBody(2, 3)
		default:
			return http.StatusOK, pageBody(0, 0)
		}
	})

	c := NewClient(config.HeliusConfig{APIKey: "k", BaseURL: srv.URL}, false, zap.NewNop())
	holders, err := c.Holders(context.Background(), "MINT")
	require.NoError(t, err)
	require.Len(t, holders, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Equal(t, "owner-4", holders[4].Owner)
	assert.Equal(t, uint64(4), holders[4].WithheldAmount)
	assert.Equal(t, uint64(1004), holders[4].Amount)
}

func TestHoldersReturnsPartialOnError(t *testing.T) {
	srv, calls := newTestServer(t, func(page int) (int, string) {
		if page == 1 {
			return http.StatusOK, pageBody(2, 0)
		}
		return http.StatusInternalServerError, `{}`
	})

	c := NewClient(config.HeliusConfig{APIKey: "k", BaseURL: srv.URL}, false, zap.NewNop())
	holders, err := c.Holders(context.Background(), "MINT")
	require.Error(t, err)
	assert.Len(t, holders, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls), "no retries")
}

func TestWithheldAmountMissingExtension(t *testing.T) {
	assert.Zero(t, TokenAccount{}.WithheldAmount())
	assert.Zero(t, TokenAccount{TokenExtensions: &TokenExtensions{}}.WithheldAmount())
}
