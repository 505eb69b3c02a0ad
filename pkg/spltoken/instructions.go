package spltoken

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	TokenProgramID           = solana.TokenProgramID
	Token2022ProgramID       = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
	// NativeMint wrapped SOL
	NativeMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

const (
	instructionTransferChecked      uint8 = 12
	instructionTransferFeeExtension uint8 = 26
	transferFeeWithdrawFromAccounts uint8 = 3

	ataCreate           uint8 = 0
	ataCreateIdempotent uint8 = 1
)

// FindAssociatedTokenAddress 计算 owner 在指定 token program 下的 ATA
func FindAssociatedTokenAddress(owner, mint, programID solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		owner[:],
		programID[:],
		mint[:],
	}, AssociatedTokenProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token address: %w", err)
	}
	return addr, nil
}

// CreateAssociatedTokenAccount 由 payer 出租金为 owner 创建 ATA
func CreateAssociatedTokenAccount(payer, owner, mint, programID solana.PublicKey, idempotent bool) (solana.Instruction, solana.PublicKey, error) {
	ata, err := FindAssociatedTokenAddress(owner, mint, programID)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	kind := ataCreate
	if idempotent {
		kind = ataCreateIdempotent
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(programID, false, false),
	}
	return solana.NewInstruction(AssociatedTokenProgramID, accounts, []byte{kind}), ata, nil
}

// TransferChecked 适用于 Token 和 Token-2022
func TransferChecked(programID, source, mint, destination, owner solana.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint8(instructionTransferChecked)
	_ = enc.WriteUint64(amount, bin.LE)
	_ = enc.WriteUint8(decimals)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(owner, false, true),
	}
	return solana.NewInstruction(programID, accounts, buf.Bytes())
}

// WithdrawWithheldTokensFromAccounts 把 sources 上的 withheld fee 提到 destination，authority 为 withdraw withheld authority
func WithdrawWithheldTokensFromAccounts(programID, mint, destination, authority solana.PublicKey, sources []solana.PublicKey) solana.Instruction {
	accounts := make(solana.AccountMetaSlice, 0, 3+len(sources))
	accounts = append(accounts,
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(authority, false, true),
	)
	for _, src := range sources {
		accounts = append(accounts, solana.NewAccountMeta(src, true, false))
	}
	data := []byte{instructionTransferFeeExtension, transferFeeWithdrawFromAccounts, uint8(len(sources))}
	return solana.NewInstruction(programID, accounts, data)
}
