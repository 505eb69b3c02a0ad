package model

import (
	"github.com/bytedance/sonic"
)

// SnapshotMarginPercent 快照只取余额的 97%，给手续费和精度误差留余量
const SnapshotMarginPercent = 97

// RewardSnapshot 兑换后运营账户各奖励资产可分配余额，key 为小写 mint
type RewardSnapshot map[string]uint64

// Set 写入时按 SnapshotMarginPercent 折算
func (s RewardSnapshot) Set(mint string, balance uint64) {
	s[NormalizeAddress(mint)] = balance/100*SnapshotMarginPercent + balance%100*SnapshotMarginPercent/100
}

func (s RewardSnapshot) Get(mint string) (uint64, bool) {
	v, ok := s[NormalizeAddress(mint)]
	return v, ok
}

func (s RewardSnapshot) Marshal() ([]byte, error) {
	return sonic.Marshal(map[string]uint64(s))
}

func UnmarshalRewardSnapshot(data []byte) (RewardSnapshot, error) {
	raw := map[string]uint64{}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(RewardSnapshot, len(raw))
	for k, v := range raw {
		out[NormalizeAddress(k)] = v
	}
	return out, nil
}
