package raydium

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	CpmmProgramMainnet = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	CpmmProgramDevnet  = solana.MustPublicKeyFromBase58("CPMDWBwJDtYax9qW7AyRuVC19Cc4L4Vcy4n2BHAbHkCW")

	AmmV4ProgramMainnet = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	AmmV4Authority      = solana.MustPublicKeyFromBase58("5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")
)

const (
	seedAmmConfig = "amm_config"
	seedPool      = "pool"
	seedAuthority = "vault_and_lp_mint_auth_seed"
)

func CpmmProgramID(mainnet bool) solana.PublicKey {
	if mainnet {
		return CpmmProgramMainnet
	}
	return CpmmProgramDevnet
}

// AmmConfigAddress CPMM 的费率配置账户
func AmmConfigAddress(program solana.PublicKey, index uint16) (solana.PublicKey, error) {
	idx := make([]byte, 2)
	binary.BigEndian.PutUint16(idx, index)
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(seedAmmConfig), idx}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive amm config: %w", err)
	}
	return addr, nil
}

// PoolAddress 池子 PDA，mint 顺序不同结果不同
func PoolAddress(program, ammConfig, mintA, mintB solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(seedPool), ammConfig[:], mintA[:], mintB[:]}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool address: %w", err)
	}
	return addr, nil
}

func AuthorityAddress(program solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(seedAuthority)}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool authority: %w", err)
	}
	return addr, nil
}
