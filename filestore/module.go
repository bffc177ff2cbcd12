package filestore

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/aisgo/ais-tenancy/mq"
)

// Module 按配置组装 Tagger
var Module = fx.Module("filestore",
	fx.Provide(NewTagger),
)

// TaggerParams Tagger 依赖参数
type TaggerParams struct {
	fx.In

	Config   Config
	Producer mq.Producer `optional:"true"`
}

// NewTagger 根据 backends 组装标记器，多个后端时使用 MultiTagger
func NewTagger(p TaggerParams) (Tagger, error) {
	cfg := p.Config.WithDefaults()

	taggers := make([]Tagger, 0, len(cfg.Backends))
	for _, backend := range cfg.Backends {
		switch backend {
		case "s3":
			client, err := NewS3Client(cfg.S3)
			if err != nil {
				return nil, err
			}
			taggers = append(taggers, NewS3Tagger(client))
		case "queue":
			if p.Producer == nil {
				return nil, fmt.Errorf("queue file tagger requires an mq producer")
			}
			taggers = append(taggers, NewQueueTagger(p.Producer, cfg.Topic))
		default:
			return nil, fmt.Errorf("unknown file tag backend %q", backend)
		}
	}

	if len(taggers) == 1 {
		return taggers[0], nil
	}
	return NewMultiTagger(taggers...), nil
}
