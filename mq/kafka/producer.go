package kafka

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/metrics"
	"github.com/aisgo/ais-tenancy/mq"
)

/* ========================================================================
 * Kafka Producer
 * ========================================================================
 * 职责: mq.Producer 的 sarama 实现，发布文件保留标记
 * 语义: 同步发送，broker 确认后返回；ctx 取消只放弃等待，不撤回消息
 * ======================================================================== */

// ErrProducerClosed Close 之后的发送
var ErrProducerClosed = errors.New("kafka producer is closed")

// Producer 同步生产者
type Producer struct {
	sp     sarama.SyncProducer
	log    *logger.Logger
	closed atomic.Bool
}

// NewProducer 连接 broker
func NewProducer(cfg mq.Config, log *logger.Logger) (*Producer, error) {
	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	sp, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("connect kafka %v: %w", cfg.Brokers, err)
	}
	p := NewProducerFromSarama(sp, log)
	p.log.Info("kafka producer connected", zap.Strings("brokers", cfg.Brokers))
	return p, nil
}

// NewProducerFromSarama 包装已有的 SyncProducer（测试用 mocks）
func NewProducerFromSarama(sp sarama.SyncProducer, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Producer{sp: sp, log: &logger.Logger{Logger: log.Named("kafka")}}
}

type sendOutcome struct {
	partition int32
	offset    int64
	err       error
}

// SendSync 发送并等待确认
func (p *Producer) SendSync(ctx context.Context, msg *mq.Message) (*mq.SendResult, error) {
	if msg == nil || msg.Topic == "" {
		return nil, errors.New("message topic is required")
	}
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan sendOutcome, 1)
	go func() {
		part, off, err := p.sp.SendMessage(toProducerMessage(msg))
		done <- sendOutcome{part, off, err}
	}()

	var out sendOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		metrics.PublishTotal.WithLabelValues(msg.Topic, "abandoned").Inc()
		return nil, ctx.Err()
	}

	log := p.log.WithContext(ctx).With(zap.String("topic", msg.Topic), zap.String("key", msg.Key))
	if out.err != nil {
		metrics.PublishTotal.WithLabelValues(msg.Topic, "error").Inc()
		log.Error("publish failed", zap.Error(out.err))
		return nil, out.err
	}
	metrics.PublishTotal.WithLabelValues(msg.Topic, "ok").Inc()
	log.Debug("published", zap.Int32("partition", out.partition), zap.Int64("offset", out.offset))

	return &mq.SendResult{Topic: msg.Topic, Partition: out.partition, Offset: out.offset}, nil
}

// Close 幂等
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := p.sp.Close(); err != nil {
		p.log.Error("close kafka producer", zap.Error(err))
		return err
	}
	return nil
}

// toProducerMessage header 按 key 有序，便于消费端比对
func toProducerMessage(msg *mq.Message) *sarama.ProducerMessage {
	pm := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Value:     sarama.ByteEncoder(msg.Body),
		Timestamp: time.Now(),
	}
	if msg.Key != "" {
		pm.Key = sarama.StringEncoder(msg.Key)
	}

	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(msg.Headers[k])})
	}
	return pm
}
