package cascade

import (
	"go.uber.org/fx"

	"github.com/aisgo/ais-tenancy/filestore/outbox"
	"github.com/aisgo/ais-tenancy/id"
)

// Module 提供级联删除引擎，文件标记意图写入 outbox
var Module = fx.Module("cascade",
	fx.Provide(
		id.NewRunIDGeneratorFromEnv,
		func() (*Hierarchy, error) { return NewHierarchy(DefaultEdges) },
		func(s *outbox.Store) PendingSink { return s },
		NewEngine,
	),
)
