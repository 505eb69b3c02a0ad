package raydium

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"web3-fee-distributor/internal/worker/config"
	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func signedTransfer(t *testing.T, wallet solana.PrivateKey, to solana.PublicKey) string {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1_000, wallet.PublicKey(), to).Build()},
		solana.Hash{7},
		solana.TransactionPayer(wallet.PublicKey()),
	)
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestSwapFlow(t *testing.T) {
	wallet, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	to := solana.NewWallet().PublicKey()
	encoded := signedTransfer(t, wallet, to)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/compute/swap-base-in":
			assert.Equal(t, "1000000", r.URL.Query().Get("amount"))
			assert.Equal(t, "LEGACY", r.URL.Query().Get("txVersion"))
			_, _ = w.Write([]byte(`{"id":"q1","success":true,"version":"V1","data":{"inputMint":"a","outputMint":"b","inputAmount":"1000000","outputAmount":"2500","slippageBps":50}}`))
		case "/transaction/swap-base-in":
			var req map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, wallet.PublicKey().String(), req["wallet"])
			assert.Equal(t, true, req["unwrapSol"])
			swapResp, _ := req["swapResponse"].(map[string]any)
			assert.Equal(t, "q1", swapResp["id"])
			_, _ = w.Write([]byte(`{"success":true,"data":[{"transaction":"` + encoded + `"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(config.RaydiumConfig{APIURL: srv.URL, TradeURL: srv.URL}, false, zap.NewNop())
	quote, err := c.QuoteSwapBaseIn(context.Background(), solana.NewWallet().PublicKey(), spltoken.NativeMint, 1_000_000, 50)
	require.NoError(t, err)
	assert.Equal(t, "2500", quote.Data.OutputAmount)

	txs, err := c.SwapTransactions(context.Background(), quote, SwapAccounts{Wallet: wallet.PublicKey(), UnwrapSol: true})
	require.NoError(t, err)
	require.Len(t, txs, 1)

	ixs, err := Instructions(txs[0])
	require.NoError(t, err)
	require.Len(t, ixs, 1)
	assert.True(t, ixs[0].ProgramID().Equals(solana.SystemProgramID))
	accounts := ixs[0].Accounts()
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].PublicKey.Equals(wallet.PublicKey()))
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[1].PublicKey.Equals(to))
	assert.True(t, accounts[1].IsWritable)
}

func TestPools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/pools/info/ids":
			assert.Equal(t, "p1,p2", r.URL.Query().Get("ids"))
			_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"p1","feeRate":0.0025,"mintA":{"address":"A","decimals":9},"mintB":{"address":"B","decimals":6},"mintAmountA":10,"mintAmountB":20},null]}`))
		case "/pools/info/mint":
			assert.Equal(t, "A", r.URL.Query().Get("mint1"))
			_, _ = w.Write([]byte(`{"success":true,"data":{"count":0,"data":[],"hasNextPage":false}}`))
		}
	}))
	defer srv.Close()

	c := NewClient(config.RaydiumConfig{APIURL: srv.URL, TradeURL: srv.URL}, false, zap.NewNop())
	pools, err := c.PoolsByIDs(context.Background(), "p1", "p2")
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, "p1", pools[0].ID)
	assert.Equal(t, uint8(6), pools[0].MintB.Decimals)
	assert.Nil(t, pools[1])

	byMint, err := c.PoolsByMints(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Empty(t, byMint)
}

func TestPoolAddressOrdering(t *testing.T) {
	cfg, err := AmmConfigAddress(CpmmProgramMainnet, 0)
	require.NoError(t, err)
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	ab, err := PoolAddress(CpmmProgramMainnet, cfg, a, b)
	require.NoError(t, err)
	ba, err := PoolAddress(CpmmProgramMainnet, cfg, b, a)
	require.NoError(t, err)
	assert.False(t, ab.Equals(ba))

	auth, err := AuthorityAddress(CpmmProgramMainnet)
	require.NoError(t, err)
	assert.Equal(t, "GpMZbSM2GgvTKHJirzeGfMFoaZ8UR2X7F4v8vHTvxFbL", auth.String())
}
