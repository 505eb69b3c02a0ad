package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"web3-fee-distributor/internal/worker/config"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/pkg/database"
	"web3-fee-distributor/pkg/elasticsearch"
	"web3-fee-distributor/pkg/solana_client"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// New 按配置建立连接，未配置的存储跳过，已配置但连不上的返回错误
func New(cfg config.Config, logger *zap.Logger) (Repository, error) {
	r := &repositoryImpl{
		cfg:    cfg,
		logger: logger,
	}
	if err := r.init(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

type repositoryImpl struct {
	cfg          config.Config
	logger       *zap.Logger
	db           *gorm.DB
	rdb          *redis.Client
	mq           *kafka.Writer
	es           *elasticsearch.Client
	solanaClient *rpc.Client
}

func (r *repositoryImpl) init() error {
	var err error
	if dsn := strings.TrimSpace(r.cfg.Postgres.DSN); dsn != "" {
		r.db, err = database.InitPG(dsn, &model.RoundReport{}, &model.PayoutRecord{})
		if err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
	} else {
		r.logger.Info("postgres dsn empty, skip postgres initialization")
	}

	if addr := strings.TrimSpace(r.cfg.Redis.Address); addr != "" {
		r.rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: r.cfg.Redis.Password,
			DB:       r.cfg.Redis.DB,
			PoolSize: 5,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.rdb.Ping(ctx).Err(); err != nil {
			// 快照和分布式锁都可以降级
			r.logger.Warn("failed to connect to redis, continue", zap.Error(err))
		}
	} else {
		r.logger.Info("redis address empty, skip redis initialization")
	}

	if brokers := strings.TrimSpace(r.cfg.Kafka.Brokers); brokers != "" {
		r.mq = &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Balancer:     &kafka.Hash{},
			BatchSize:    500,
			BatchBytes:   1024 * 1024, // 1MB
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Snappy,
			MaxAttempts:  5,
			WriteTimeout: 2 * time.Second,
		}
	} else {
		r.logger.Info("kafka brokers empty, skip kafka initialization")
	}

	if len(r.cfg.Elasticsearch.Addresses) > 0 {
		r.es, err = elasticsearch.NewClient(elasticsearch.Config{
			Addresses: r.cfg.Elasticsearch.Addresses,
			Username:  r.cfg.Elasticsearch.Username,
			Password:  r.cfg.Elasticsearch.Password,
			Indexes: map[string]map[string]interface{}{
				r.cfg.Elasticsearch.PayoutsIndexName: elasticsearch.PayoutsMapping(),
			},
		}, r.logger)
		if err != nil {
			return fmt.Errorf("init elasticsearch: %w", err)
		}
	}

	r.solanaClient = solana_client.Init(r.cfg.Solana.RpcURL)
	return nil
}

func (r *repositoryImpl) GetDB() *gorm.DB {
	return r.db
}

func (r *repositoryImpl) GetRDB() *redis.Client {
	return r.rdb
}

func (r *repositoryImpl) GetMQ() MQClient {
	return r.mq
}

func (r *repositoryImpl) GetES() ESClient {
	return r.es
}

func (r *repositoryImpl) GetSolanaClient() *rpc.Client {
	return r.solanaClient
}

func (r *repositoryImpl) Close() error {
	if r.db != nil {
		if sqlDB, err := r.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if r.rdb != nil {
		_ = r.rdb.Close()
	}
	if r.mq != nil {
		_ = r.mq.Close()
	}
	if r.solanaClient != nil {
		_ = r.solanaClient.Close()
	}
	return nil
}
