package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardSnapshotMargin(t *testing.T) {
	s := RewardSnapshot{}
	s.Set("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", 1_000)
	s.Set("So11111111111111111111111111111111111111112", 199)

	v, ok := s.Get("epjfwdd5aufqssqem2qn1xzybapc8g4wegGkZwyTDt1v ")
	require.True(t, ok)
	assert.Equal(t, uint64(970), v)

	v, _ = s.Get("So11111111111111111111111111111111111111112")
	assert.Equal(t, uint64(193), v) // floor(199 * 0.97)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestRewardSnapshotLargeBalance(t *testing.T) {
	s := RewardSnapshot{}
	s.Set("m", ^uint64(0))
	v, _ := s.Get("m")
	assert.Equal(t, ^uint64(0)/100*97+(^uint64(0)%100)*97/100, v)
}

func TestRewardSnapshotJSONRoundTrip(t *testing.T) {
	s := RewardSnapshot{}
	s.Set("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", 123_456_789_012)
	s.Set("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", 18_446_744_073_709_551_615)

	data, err := s.Marshal()
	require.NoError(t, err)

	back, err := UnmarshalRewardSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestHolderOwnerKey(t *testing.T) {
	assert.Equal(t, "abc", Holder{Owner: "  AbC\n"}.OwnerKey())
}
