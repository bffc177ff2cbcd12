package filestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aisgo/ais-tenancy/id"
	"github.com/aisgo/ais-tenancy/mq"
)

// QueueTagger 把标记指令投递到消息队列，由存储侧消费执行
type QueueTagger struct {
	producer mq.Producer
	topic    string
}

// NewQueueTagger 创建队列标记器
func NewQueueTagger(producer mq.Producer, topic string) *QueueTagger {
	return &QueueTagger{producer: producer, topic: topic}
}

// Name 后端名称
func (t *QueueTagger) Name() string { return "queue" }

// Tag 发送 JSON 标记指令，分区键为 bucket/key 保证同一对象有序
func (t *QueueTagger) Tag(ctx context.Context, tag DeletionTag) error {
	body, err := json.Marshal(tag)
	if err != nil {
		return fmt.Errorf("encoding deletion tag: %w", err)
	}

	msg := mq.NewMessage(t.topic, body).
		WithKey(tag.BucketRef+"/"+tag.ObjectKey).
		WithHeader("message_id", id.NewMessageKey()).
		WithHeader("tenant_id", tag.TenantID).
		WithHeader("entity_kind", tag.EntityKind)

	if _, err := t.producer.SendSync(ctx, msg); err != nil {
		return fmt.Errorf("publishing deletion tag: %w", err)
	}
	return nil
}
