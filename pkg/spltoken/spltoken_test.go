package spltoken

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

func baseMint(authority *solana.PublicKey, supply uint64, decimals uint8) []byte {
	data := make([]byte, MintSize)
	if authority != nil {
		binary.LittleEndian.PutUint32(data[0:4], 1)
		copy(data[4:36], authority[:])
	}
	binary.LittleEndian.PutUint64(data[36:44], supply)
	data[44] = decimals
	data[45] = 1
	return data
}

func tlv(typ uint16, body []byte) []byte {
	out := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint16(out[0:2], typ)
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(body)))
	return append(out, body...)
}

func transferFeeBody(cfgAuth, withdrawAuth solana.PublicKey, withheld uint64, bps uint16) []byte {
	body := make([]byte, transferFeeConfigSize)
	copy(body[0:32], cfgAuth[:])
	copy(body[32:64], withdrawAuth[:])
	binary.LittleEndian.PutUint64(body[64:72], withheld)
	// older fee
	binary.LittleEndian.PutUint64(body[72:80], 1)
	binary.LittleEndian.PutUint64(body[80:88], 1000)
	binary.LittleEndian.PutUint16(body[88:90], bps/2)
	// newer fee
	binary.LittleEndian.PutUint64(body[90:98], 2)
	binary.LittleEndian.PutUint64(body[98:106], 5000)
	binary.LittleEndian.PutUint16(body[106:108], bps)
	return body
}

func TestDecodeMintLegacy(t *testing.T) {
	auth := newKey(t)
	m, err := DecodeMint(baseMint(&auth, 1_000_000, 6))
	require.NoError(t, err)

	require.NotNil(t, m.MintAuthority)
	assert.True(t, m.MintAuthority.Equals(auth))
	assert.Equal(t, uint64(1_000_000), m.Supply)
	assert.Equal(t, uint8(6), m.Decimals)
	assert.True(t, m.IsInitialized)
	assert.Nil(t, m.FreezeAuthority)
	assert.Nil(t, m.TransferFeeConfig)
}

func TestDecodeMintToken2022(t *testing.T) {
	cfgAuth, withdrawAuth := newKey(t), newKey(t)

	data := baseMint(nil, 42_000_000_000, 9)
	data = append(data, make([]byte, AccountSize-MintSize)...)
	data = append(data, accountTypeMint)
	// 前面放一个无关扩展
	data = append(data, tlv(16, make([]byte, 64))...)
	data = append(data, tlv(ExtensionTransferFeeConfig, transferFeeBody(cfgAuth, withdrawAuth, 77, 300))...)

	m, err := DecodeMint(data)
	require.NoError(t, err)
	assert.Nil(t, m.MintAuthority)
	assert.Equal(t, uint8(9), m.Decimals)

	require.NotNil(t, m.TransferFeeConfig)
	fee := m.TransferFeeConfig
	assert.True(t, fee.WithdrawWithheldAuthority.Equals(withdrawAuth))
	assert.True(t, fee.ConfigAuthority.Equals(cfgAuth))
	assert.Equal(t, uint64(77), fee.WithheldAmount)
	assert.Equal(t, uint16(150), fee.OlderTransferFee.BasisPoints)
	assert.Equal(t, uint16(300), fee.NewerTransferFee.BasisPoints)
	assert.Equal(t, uint64(5000), fee.NewerTransferFee.MaximumFee)
}

func TestDecodeMintErrors(t *testing.T) {
	_, err := DecodeMint(make([]byte, 10))
	assert.Error(t, err)

	data := append(baseMint(nil, 1, 0), make([]byte, AccountSize-MintSize)...)
	data = append(data, 2)
	_, err = DecodeMint(data)
	assert.Error(t, err)

	data[AccountSize] = accountTypeMint
	data = append(data, tlv(ExtensionTransferFeeConfig, make([]byte, 10))...)
	_, err = DecodeMint(data)
	assert.Error(t, err)
}

func TestDecodeTokenAccountAmount(t *testing.T) {
	data := make([]byte, AccountSize)
	binary.LittleEndian.PutUint64(data[64:72], 123456789)
	amount, err := DecodeTokenAccountAmount(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), amount)

	_, err = DecodeTokenAccountAmount(data[:100])
	assert.Error(t, err)
}

func TestWithdrawWithheldTokensFromAccounts(t *testing.T) {
	mint, dest, authority := newKey(t), newKey(t), newKey(t)
	sources := []solana.PublicKey{newKey(t), newKey(t), newKey(t)}

	ix := WithdrawWithheldTokensFromAccounts(Token2022ProgramID, mint, dest, authority, sources)
	assert.True(t, ix.ProgramID().Equals(Token2022ProgramID))

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{26, 3, 3}, data)

	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.True(t, accounts[0].PublicKey.Equals(mint))
	assert.True(t, accounts[0].IsWritable)
	assert.True(t, accounts[2].IsSigner)
	assert.False(t, accounts[2].IsWritable)
	for i, src := range sources {
		assert.True(t, accounts[3+i].PublicKey.Equals(src))
		assert.True(t, accounts[3+i].IsWritable)
	}
}

func TestTransferChecked(t *testing.T) {
	src, mint, dst, owner := newKey(t), newKey(t), newKey(t), newKey(t)
	ix := TransferChecked(TokenProgramID, src, mint, dst, owner, 1_500, 6)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 10)
	assert.Equal(t, byte(12), data[0])
	assert.Equal(t, uint64(1_500), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, byte(6), data[9])
	assert.True(t, ix.Accounts()[3].IsSigner)
}

func TestCreateAssociatedTokenAccount(t *testing.T) {
	payer, owner, mint := newKey(t), newKey(t), newKey(t)

	want, err := FindAssociatedTokenAddress(owner, mint, Token2022ProgramID)
	require.NoError(t, err)

	ix, ata, err := CreateAssociatedTokenAccount(payer, owner, mint, Token2022ProgramID, true)
	require.NoError(t, err)
	assert.True(t, ata.Equals(want))
	assert.True(t, ix.Accounts()[1].PublicKey.Equals(want))
	assert.True(t, ix.Accounts()[5].PublicKey.Equals(Token2022ProgramID))

	data, _ := ix.Data()
	assert.Equal(t, []byte{1}, data)

	other, err := FindAssociatedTokenAddress(owner, mint, TokenProgramID)
	require.NoError(t, err)
	assert.False(t, other.Equals(want))
}
