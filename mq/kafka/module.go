package kafka

import (
	"context"

	"go.uber.org/fx"

	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/mq"
)

// Module 提供 mq.Producer
var Module = fx.Module("kafka",
	fx.Provide(ProvideProducer),
)

// ProducerParams Producer 依赖参数
type ProducerParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config mq.Config
	Logger *logger.Logger
}

// ProvideProducer 提供 Producer（用于 Fx）
func ProvideProducer(p ProducerParams) (mq.Producer, error) {
	producer, err := NewProducer(p.Config, p.Logger)
	if err != nil {
		return nil, err
	}

	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})
	return producer, nil
}
