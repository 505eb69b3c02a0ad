package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log:
  level: debug
solana:
  rpc_url: https://api.devnet.solana.com
  private_key: 4NMwxzmYj2uvHuq8xoqhY8RXg63KSVJM1DXkpbmkUY7YQWuoyQgFnnzn6yo3CMnqZasnNPNuAT2TLwQsCaKkUddp
  network: devnet
helius:
  api_key: test-key
distribution:
  mint: 6kq4rEfrHr9wTh8MsKXsjDhX7cKrYfN9q6wZXdBvX4uo
  swap_fee_percent: 75
  max_hold: 90
  rewards:
    - mint: So11111111111111111111111111111111111111112
      percent: 40
      name: SOL
    - mint: EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v
      percent: 60
      name: USDC
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, NetworkDevnet, cfg.Solana.Network)
	assert.False(t, cfg.Solana.Mainnet())
	assert.Equal(t, 600, cfg.Helius.RateLimit)
	require.Len(t, cfg.Distribution.Rewards, 2)
	assert.Equal(t, "USDC", cfg.Distribution.Rewards[1].Name)

	require.NotNil(t, cfg.Distribution.SwapFeePercent)
	assert.Equal(t, 75.0, *cfg.Distribution.SwapFeePercent)
	require.NotNil(t, cfg.Distribution.MaxHold)
	assert.Equal(t, 90.0, *cfg.Distribution.MaxHold)
	assert.Nil(t, cfg.Distribution.MinGetSol)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FEE_HELIUS_API_KEY", "from-env")
	t.Setenv("NETWORK", "MAINNET")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Helius.APIKey)
	assert.Equal(t, NetworkMainnet, cfg.Solana.Network)
}

func TestValidate(t *testing.T) {
	t.Run("missing required", func(t *testing.T) {
		err := Config{}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "solana.rpc_url")
		assert.Contains(t, err.Error(), "helius.api_key")
	})

	base := Config{
		Solana:       SolanaConfig{RpcURL: "http://x", PrivateKey: "k", Network: NetworkMainnet},
		Helius:       HeliusConfig{APIKey: "k"},
		Distribution: DistributionConfig{Mint: "m"},
	}

	t.Run("unknown network", func(t *testing.T) {
		c := base
		c.Solana.Network = "testnet"
		assert.Error(t, c.Validate())
	})

	t.Run("reward percent over 100", func(t *testing.T) {
		c := base
		c.Distribution.Rewards = []RewardConfig{{Mint: "a", Percent: 70}, {Mint: "b", Percent: 31}}
		assert.ErrorContains(t, c.Validate(), "exceeds 100")
	})

	t.Run("ok", func(t *testing.T) {
		c := base
		c.Distribution.Rewards = []RewardConfig{{Mint: "a", Percent: 40}, {Mint: "b", Percent: 60}}
		assert.NoError(t, c.Validate())
	})
}
