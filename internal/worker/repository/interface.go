package repository

import (
	"web3-fee-distributor/pkg/elasticsearch"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

type RedisClient = *redis.Client
type DBClient = *gorm.DB
type MQClient = *kafka.Writer
type ESClient = *elasticsearch.Client

// Repository 外部连接，除 Solana RPC 外都可能为 nil
type Repository interface {
	GetDB() DBClient
	GetRDB() RedisClient
	GetMQ() MQClient
	GetES() ESClient
	GetSolanaClient() *rpc.Client
	Close() error
}
