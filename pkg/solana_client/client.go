package solana_client

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Init solana client
func Init(rawUrl string) *rpc.Client {
	return rpc.New(rawUrl)
}

// LoadSigner 解析私钥，支持 base58 字符串和 solana-keygen 生成的 JSON 数组
func LoadSigner(raw string) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty private key")
	}
	if strings.HasPrefix(raw, "[") {
		// []byte 会按 base64 解析，先读成整数数组
		var ints []int
		if err := sonic.UnmarshalString(raw, &ints); err != nil {
			return nil, fmt.Errorf("decode keypair array: %w", err)
		}
		if len(ints) != 64 {
			return nil, fmt.Errorf("keypair must be 64 bytes, got %d", len(ints))
		}
		key := make(solana.PrivateKey, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("keypair byte %d out of range", i)
			}
			key[i] = byte(v)
		}
		return key, nil
	}
	key, err := solana.PrivateKeyFromBase58(raw)
	if err != nil {
		return nil, fmt.Errorf("decode base58 private key: %w", err)
	}
	return key, nil
}
