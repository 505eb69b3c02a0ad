package elasticsearch

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

type Client struct {
	es     *elasticsearch.Client
	logger *zap.Logger
}

type Config struct {
	Addresses []string
	Username  string
	Password  string
	Indexes   map[string]map[string]interface{} // indexName -> mapping
}

// BulkOperation 批量操作的结构
type BulkOperation struct {
	Action   string                 // index, create, update, delete
	Index    string                 // 索引名
	ID       string                 // 文档ID
	Document map[string]interface{} // 文档内容，delete 时为空
}

// bulkResponse 只关心是否有单条失败
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// NewClient 创建客户端并确保配置中的索引存在，建索引失败只记日志
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	client := &Client{es: es, logger: log}
	for indexName, mapping := range cfg.Indexes {
		if err := client.CreateIndex(context.Background(), indexName, mapping); err != nil {
			log.Error("Failed to initialize ES index", zap.String("index", indexName), zap.Error(err))
		}
	}
	return client, nil
}

// encodeBulk 生成 NDJSON 请求体
func encodeBulk(operations []BulkOperation) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	for _, op := range operations {
		actionLine, err := sonic.Marshal(map[string]interface{}{
			op.Action: map[string]string{"_index": op.Index, "_id": op.ID},
		})
		if err != nil {
			return nil, err
		}
		buf.Write(actionLine)
		buf.WriteByte('\n')

		if op.Action == "delete" || op.Document == nil {
			continue
		}
		doc := interface{}(op.Document)
		if op.Action == "update" {
			doc = map[string]interface{}{"doc": op.Document}
		}
		docLine, err := sonic.Marshal(doc)
		if err != nil {
			return nil, err
		}
		buf.Write(docLine)
		buf.WriteByte('\n')
	}
	return &buf, nil
}

// BulkWrite 批量写入，任一条失败都返回错误
func (c *Client) BulkWrite(ctx context.Context, operations []BulkOperation) error {
	if len(operations) == 0 {
		return nil
	}
	body, err := encodeBulk(operations)
	if err != nil {
		return fmt.Errorf("encode bulk body: %w", err)
	}

	res, err := esapi.BulkRequest{Body: body}.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("bulk operation failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk operation error: %s", res.String())
	}

	var parsed bulkResponse
	if err := sonic.ConfigDefault.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if parsed.Errors {
		failed, first := 0, ""
		for _, item := range parsed.Items {
			for _, result := range item {
				if result.Error == nil {
					continue
				}
				failed++
				if first == "" {
					first = result.Error.Type + ": " + result.Error.Reason
				}
			}
		}
		return fmt.Errorf("bulk operation has %d failed items, first: %s", failed, first)
	}

	c.logger.Debug("Bulk write operation completed", zap.Int("operations", len(operations)))
	return nil
}

// CreateIndex 创建索引，已存在时不报错
func (c *Client) CreateIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error {
	mappingJSON, err := sonic.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err := esapi.IndicesCreateRequest{
		Index: indexName,
		Body:  bytes.NewReader(mappingJSON),
	}.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("failed to create index: %s", res.String())
	}

	c.logger.Info("Index created or already exists", zap.String("index", indexName))
	return nil
}

// PayoutsMapping 分发记录索引
func PayoutsMapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"round_id":       map[string]interface{}{"type": "keyword"},
				"mint":           map[string]interface{}{"type": "keyword"},
				"owner":          map[string]interface{}{"type": "keyword"},
				"reward_mint":    map[string]interface{}{"type": "keyword"},
				"reward_name":    map[string]interface{}{"type": "keyword"},
				"amount":         map[string]interface{}{"type": "unsigned_long"},
				"holder_percent": map[string]interface{}{"type": "scaled_float", "scaling_factor": 10000},
				"created_ata":    map[string]interface{}{"type": "boolean"},
				"attempt":        map[string]interface{}{"type": "integer"},
				"status":         map[string]interface{}{"type": "keyword"},
				"signature":      map[string]interface{}{"type": "keyword"},
				"created_at":     map[string]interface{}{"type": "date", "format": "epoch_millis"},
			},
		},
	}
}
