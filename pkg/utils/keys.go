package utils

import "fmt"

// SnapshotKey 最近一次兑换后的奖励余额快照
func SnapshotKey(mint string) string {
	return fmt.Sprintf("fee_distributor:snapshot:%s", mint)
}

// RoundLockKey 同一个 mint 同时只允许一个进程分发
func RoundLockKey(mint string) string {
	return fmt.Sprintf("fee_distributor:lock:%s", mint)
}
