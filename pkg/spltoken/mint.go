package spltoken

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	MintSize    = 82
	AccountSize = 165

	accountTypeMint uint8 = 1

	ExtensionTransferFeeConfig uint16 = 1
	transferFeeConfigSize             = 108
)

var ErrNoTransferFeeConfig = errors.New("mint has no transfer fee config")

type TransferFee struct {
	Epoch       uint64
	MaximumFee  uint64
	BasisPoints uint16
}

type TransferFeeConfig struct {
	ConfigAuthority           solana.PublicKey
	WithdrawWithheldAuthority solana.PublicKey
	WithheldAmount            uint64
	OlderTransferFee          TransferFee
	NewerTransferFee          TransferFee
}

// Mint 解码后的 mint 账户，Token-2022 扩展只解析 transfer fee
type Mint struct {
	MintAuthority     *solana.PublicKey
	Supply            uint64
	Decimals          uint8
	IsInitialized     bool
	FreezeAuthority   *solana.PublicKey
	TransferFeeConfig *TransferFeeConfig
}

func readOptionalKey(dec *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, err
	}
	raw, err := dec.ReadNBytes(32)
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	key := solana.PublicKeyFromBytes(raw)
	return &key, nil
}

// DecodeMint 解析 mint 账户数据
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("mint data too short: %d", len(data))
	}
	dec := bin.NewBinDecoder(data[:MintSize])

	var (
		m   Mint
		err error
	)
	if m.MintAuthority, err = readOptionalKey(dec); err != nil {
		return nil, fmt.Errorf("mint authority: %w", err)
	}
	if m.Supply, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("supply: %w", err)
	}
	if m.Decimals, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("decimals: %w", err)
	}
	if m.IsInitialized, err = dec.ReadBool(); err != nil {
		return nil, fmt.Errorf("initialized: %w", err)
	}
	if m.FreezeAuthority, err = readOptionalKey(dec); err != nil {
		return nil, fmt.Errorf("freeze authority: %w", err)
	}

	// Token-2022: 补齐到 AccountSize 后是 account type，再后面是 TLV
	if len(data) > AccountSize {
		if data[AccountSize] != accountTypeMint {
			return nil, fmt.Errorf("unexpected account type %d", data[AccountSize])
		}
		cfg, err := findTransferFeeConfig(data[AccountSize+1:])
		if err != nil {
			return nil, err
		}
		m.TransferFeeConfig = cfg
	}
	return &m, nil
}

func findTransferFeeConfig(tlv []byte) (*TransferFeeConfig, error) {
	dec := bin.NewBinDecoder(tlv)
	for dec.Remaining() >= 4 {
		typ, err := dec.ReadUint16(bin.LE)
		if err != nil {
			return nil, err
		}
		length, err := dec.ReadUint16(bin.LE)
		if err != nil {
			return nil, err
		}
		if typ == 0 {
			return nil, nil
		}
		if int(length) > dec.Remaining() {
			return nil, fmt.Errorf("extension %d truncated", typ)
		}
		body, err := dec.ReadNBytes(int(length))
		if err != nil {
			return nil, err
		}
		if typ == ExtensionTransferFeeConfig {
			return decodeTransferFeeConfig(body)
		}
	}
	return nil, nil
}

func decodeTransferFee(dec *bin.Decoder) (fee TransferFee, err error) {
	if fee.Epoch, err = dec.ReadUint64(bin.LE); err != nil {
		return
	}
	if fee.MaximumFee, err = dec.ReadUint64(bin.LE); err != nil {
		return
	}
	fee.BasisPoints, err = dec.ReadUint16(bin.LE)
	return
}

func decodeTransferFeeConfig(body []byte) (*TransferFeeConfig, error) {
	if len(body) < transferFeeConfigSize {
		return nil, fmt.Errorf("transfer fee config too short: %d", len(body))
	}
	dec := bin.NewBinDecoder(body)
	var cfg TransferFeeConfig

	raw, _ := dec.ReadNBytes(32)
	cfg.ConfigAuthority = solana.PublicKeyFromBytes(raw)
	raw, _ = dec.ReadNBytes(32)
	cfg.WithdrawWithheldAuthority = solana.PublicKeyFromBytes(raw)

	var err error
	if cfg.WithheldAmount, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, err
	}
	if cfg.OlderTransferFee, err = decodeTransferFee(dec); err != nil {
		return nil, err
	}
	if cfg.NewerTransferFee, err = decodeTransferFee(dec); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DecodeTokenAccountAmount 读取 token 账户余额 (offset 64)
func DecodeTokenAccountAmount(data []byte) (uint64, error) {
	if len(data) < AccountSize {
		return 0, fmt.Errorf("token account data too short: %d", len(data))
	}
	dec := bin.NewBinDecoder(data[64:72])
	return dec.ReadUint64(bin.LE)
}
