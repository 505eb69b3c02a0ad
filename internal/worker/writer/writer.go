package writer

import (
	"context"
)

// RetryCount 各 writer 单批写入的重试次数
const RetryCount = 3

type BatchWriter[T any] interface {
	BWrite(ctx context.Context, batch []T) error
	Close() error
}
