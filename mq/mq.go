package mq

import "context"

/* ========================================================================
 * MQ 抽象
 * ========================================================================
 * 职责: 文件删除标记等存储侧指令的投递通道
 * 实现: mq/kafka
 * ======================================================================== */

// Producer 同步生产者；返回 nil 时 broker 已确认写入
type Producer interface {
	SendSync(ctx context.Context, msg *Message) (*SendResult, error)
	Close() error
}

// Message 一条指令；Key 决定分区，同一对象的指令保持有序
type Message struct {
	Topic   string
	Key     string
	Body    []byte
	Headers map[string]string
}

// NewMessage 创建消息
func NewMessage(topic string, body []byte) *Message {
	return &Message{Topic: topic, Body: body, Headers: map[string]string{}}
}

// WithKey 设置分区键
func (m *Message) WithKey(key string) *Message {
	m.Key = key
	return m
}

// WithHeader 设置消息头，空值忽略
func (m *Message) WithHeader(key, value string) *Message {
	if value == "" {
		return m
	}
	if m.Headers == nil {
		m.Headers = map[string]string{}
	}
	m.Headers[key] = value
	return m
}

// SendResult broker 确认的位置
type SendResult struct {
	Topic     string
	Partition int32
	Offset    int64
}
