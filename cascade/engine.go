// Package cascade 按固定层级级联软删除实体，并为关联文件下发保留期标记。
package cascade

import (
	"context"
	"sort"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/filestore"
	"github.com/aisgo/ais-tenancy/id"
	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/metrics"
	"github.com/aisgo/ais-tenancy/model"
	"github.com/aisgo/ais-tenancy/repository"
)

/* ========================================================================
 * Cascade Deletion Engine - 级联软删除
 * ========================================================================
 * 状态: Started -> DescendantsEnumerated -> DescendantsMarked
 *       -> FilesTagged -> RootMarked -> Completed，任一步可进入 Failed
 * 规则:
 *   - 根实体在调用方租户作用域内读取，之后所有条件固定为根的 tenant_id
 *   - 后代按层枚举（包含已删除节点，便于续跑中断的运行）
 *   - 从最深层开始标记，每层一个事务；失败时已完成的层保留
 *   - 文件标记在所在层提交后立即下发；配置了 PendingSink 时，
 *     标记意图与该层在同一事务内写入，下发失败由 Reconciler 补偿
 *   - 调用方取消不会中断运行
 * ======================================================================== */

// Config 级联配置
type Config struct {
	RetentionDays int           `yaml:"retention_days" mapstructure:"retention_days" validate:"gte=0"`
	TagTimeout    time.Duration `yaml:"tag_timeout" mapstructure:"tag_timeout"`
	BatchSize     int           `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=0"`
}

// WithDefaults 填充默认值
func (c Config) WithDefaults() Config {
	if c.RetentionDays <= 0 {
		c.RetentionDays = filestore.DefaultRetentionDays
	}
	if c.TagTimeout <= 0 {
		c.TagTimeout = 10 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	return c
}

// PendingSink 持久化文件标记意图，Enqueue 会加入 ctx 中的事务
type PendingSink interface {
	Enqueue(ctx context.Context, runID int64, tag filestore.DeletionTag, retryAt time.Time) (string, error)
	MarkDone(ctx context.Context, tagID string) error
	MarkFailed(ctx context.Context, tagID string, attempts int, cause error, next time.Time, dead bool) error
}

// Engine 级联删除引擎
type Engine struct {
	db     *gorm.DB
	scope  *repository.Interceptor
	hier   *Hierarchy
	tagger filestore.Tagger
	sink   PendingSink
	ids    *id.RunIDGenerator
	cfg    Config
	log    *logger.Logger
	now    func() time.Time
}

// EngineParams 引擎依赖
type EngineParams struct {
	fx.In

	DB        *gorm.DB
	Scope     *repository.Interceptor
	Tagger    filestore.Tagger
	IDs       *id.RunIDGenerator
	Config    Config
	Logger    *logger.Logger
	Hierarchy *Hierarchy  `optional:"true"`
	Sink      PendingSink `optional:"true"`
}

// NewEngine 创建引擎
func NewEngine(p EngineParams) *Engine {
	hier := p.Hierarchy
	if hier == nil {
		hier = MustHierarchy(DefaultEdges)
	}
	ids := p.IDs
	if ids == nil {
		ids, _ = id.NewRunIDGenerator(0)
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		db:     p.DB,
		scope:  p.Scope,
		hier:   hier,
		tagger: p.Tagger,
		sink:   p.Sink,
		ids:    ids,
		cfg:    p.Config.WithDefaults(),
		log:    log,
		now:    time.Now,
	}
}

// node 枚举得到的一行
type node struct {
	ID         string  `gorm:"column:id"`
	TenantID   string  `gorm:"column:tenant_id"`
	IsDeleted  int     `gorm:"column:is_deleted"`
	FileBucket *string `gorm:"column:file_bucket"`
	FileKey    *string `gorm:"column:file_key"`
}

func (n node) live() bool { return n.IsDeleted == 0 }

func (n node) file() (string, string, bool) {
	if n.FileBucket == nil || n.FileKey == nil || *n.FileBucket == "" || *n.FileKey == "" {
		return "", "", false
	}
	return *n.FileBucket, *n.FileKey, true
}

// layer 同一深度同一种类的节点
type layer struct {
	depth int
	kind  model.Kind
	nodes []node
}

func (l layer) liveIDs() []string {
	ids := make([]string, 0, len(l.nodes))
	for _, n := range l.nodes {
		if n.live() {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// intent 已随所在层提交、等待下发的文件标记
type intent struct {
	tag      filestore.DeletionTag
	outboxID string
}

// run 单次运行的内部状态
type run struct {
	report *Report
	root   node
	layers []layer
}

// Delete 级联删除 kind/id 及其全部后代
// 返回的报告总是非 nil（参数错误除外），失败时记录已完成的层
func (e *Engine) Delete(ctx context.Context, kind model.Kind, rootID string) (*Report, error) {
	if !kind.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "unknown entity kind: "+string(kind))
	}
	if rootID == "" {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "root id is required")
	}

	ctx = context.WithoutCancel(ctx)
	r := &run{report: &Report{
		RunID:     e.ids.Next(),
		RootKind:  kind,
		RootID:    rootID,
		State:     StateStarted,
		StartedAt: e.now(),
	}}
	r.report.LastCompleted = StateStarted

	err := e.execute(ctx, r)
	r.report.FinishedAt = e.now()
	metrics.CascadeDuration.WithLabelValues(string(kind)).Observe(r.report.FinishedAt.Sub(r.report.StartedAt).Seconds())

	log := e.log.WithContext(ctx).With(
		zap.Int64("run_id", r.report.RunID),
		zap.String("root_kind", string(kind)),
		zap.String("root_id", rootID),
	)
	if err != nil {
		r.report.fail(err)
		metrics.CascadeRunTotal.WithLabelValues(string(kind), "failed").Inc()
		log.Error("cascade deletion failed",
			zap.String("last_completed", string(r.report.LastCompleted)),
			zap.Any("layers", r.report.Layers),
			zap.Error(err),
		)
		if _, ok := errors.AsBizError(err); ok {
			return r.report, err
		}
		return r.report, errors.Wrap(errors.ErrCodeInternal, "cascade deletion failed after "+string(r.report.LastCompleted), err).
			WithDetail("run_id", r.report.RunID)
	}

	metrics.CascadeRunTotal.WithLabelValues(string(kind), "completed").Inc()
	log.Info("cascade deletion completed",
		zap.Any("marked", r.report.Marked()),
		zap.Int("tagged", r.report.Tagged),
		zap.Int("tag_failures", len(r.report.TagFailures)),
	)
	return r.report, nil
}

func (e *Engine) execute(ctx context.Context, r *run) error {
	if err := e.loadRoot(ctx, r); err != nil {
		return err
	}
	if err := e.enumerate(ctx, r); err != nil {
		return err
	}
	r.report.advance(StateDescendantsEnumerated)

	if err := e.markDescendants(ctx, r); err != nil {
		return err
	}
	r.report.advance(StateDescendantsMarked)
	r.report.advance(StateFilesTagged)

	if err := e.markRoot(ctx, r); err != nil {
		return err
	}
	r.report.advance(StateRootMarked)
	r.report.advance(StateCompleted)
	return nil
}

// loadRoot 在调用方作用域内读取根实体并固定租户
func (e *Engine) loadRoot(ctx context.Context, r *run) error {
	rows, err := e.fetch(ctx, r.report.RootKind, repository.Filter{repository.ColumnID: r.report.RootID})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.New(errors.ErrCodeNotFound, string(r.report.RootKind)+" not found").
			WithDetail(errors.DetailResourceID, r.report.RootID)
	}
	r.root = rows[0]
	r.report.TenantID = r.root.TenantID
	return nil
}

// enumerate 逐层向下枚举后代
func (e *Engine) enumerate(ctx context.Context, r *run) error {
	current := []layer{{depth: 0, kind: r.report.RootKind, nodes: []node{r.root}}}
	seen := map[string]struct{}{r.root.ID: {}}

	for depth := 1; len(current) > 0; depth++ {
		var next []layer
		index := make(map[model.Kind]int)

		for _, parent := range current {
			parentIDs := make([]string, len(parent.nodes))
			for n, p := range parent.nodes {
				parentIDs[n] = p.ID
			}

			for _, edge := range e.hier.ChildrenOf(parent.kind) {
				for _, ids := range chunk(parentIDs, e.cfg.BatchSize) {
					filter := edge.Where.And(repository.Filter{
						edge.ForeignKey:           ids,
						repository.ColumnTenantID: r.report.TenantID,
					})
					rows, err := e.fetch(ctx, edge.Child, filter)
					if err != nil {
						return err
					}
					for _, row := range rows {
						if _, dup := seen[row.ID]; dup {
							continue
						}
						seen[row.ID] = struct{}{}
						pos, ok := index[edge.Child]
						if !ok {
							pos = len(next)
							index[edge.Child] = pos
							next = append(next, layer{depth: depth, kind: edge.Child})
						}
						next[pos].nodes = append(next[pos].nodes, row)
					}
				}
			}
		}

		r.layers = append(r.layers, next...)
		current = next
	}

	// 深度优先降序，同层保持层级表顺序
	sort.SliceStable(r.layers, func(i, j int) bool { return r.layers[i].depth > r.layers[j].depth })
	for _, l := range r.layers {
		r.report.Layers = append(r.report.Layers, LayerReport{Depth: l.depth, Kind: l.kind, Enumerated: len(l.nodes)})
	}
	return nil
}

// markDescendants 从最深层开始，每个深度一个事务
func (e *Engine) markDescendants(ctx context.Context, r *run) error {
	for start := 0; start < len(r.layers); {
		depth := r.layers[start].depth
		end := start
		for end < len(r.layers) && r.layers[end].depth == depth {
			end++
		}

		marked, intents, err := e.markGroup(ctx, r, r.layers[start:end])
		if err != nil {
			return err
		}
		for n := start; n < end; n++ {
			lr := &r.report.Layers[n]
			lr.Marked = marked[n-start]
			lr.Done = true
			metrics.CascadeRowsMarked.WithLabelValues(string(lr.Kind)).Add(float64(lr.Marked))
		}
		e.log.WithContext(ctx).Debug("cascade layer marked",
			zap.Int64("run_id", r.report.RunID),
			zap.Int("depth", depth),
		)
		e.emitTags(ctx, r, intents)
		start = end
	}
	return nil
}

func (e *Engine) markRoot(ctx context.Context, r *run) error {
	if !r.root.live() {
		return nil
	}
	root := layer{kind: r.report.RootKind, nodes: []node{r.root}}
	marked, intents, err := e.markGroup(ctx, r, []layer{root})
	if err != nil {
		return err
	}
	r.report.RootMarked = marked[0] == 1
	metrics.CascadeRowsMarked.WithLabelValues(string(r.report.RootKind)).Add(float64(marked[0]))
	e.emitTags(ctx, r, intents)
	return nil
}

// markGroup 在一个事务内标记 group 中的各层，并登记其中文件的标记意图
func (e *Engine) markGroup(ctx context.Context, r *run, group []layer) ([]int64, []intent, error) {
	marked := make([]int64, len(group))
	var intents []intent

	err := repository.RunInTx(ctx, e.db, func(txCtx context.Context) error {
		intents = intents[:0]
		taggedAt := e.now()
		for n, l := range group {
			ids := l.liveIDs()
			pending, err := e.collectIntents(txCtx, r, l.kind, ids, taggedAt)
			if err != nil {
				return err
			}
			count, err := e.mark(txCtx, l.kind, ids, r.report.TenantID)
			if err != nil {
				return err
			}
			marked[n] = count
			intents = append(intents, pending...)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return marked, intents, nil
}

// collectIntents 在事务内找出即将被标记的文件行；有 PendingSink 时同时写入待下发表
func (e *Engine) collectIntents(ctx context.Context, r *run, kind model.Kind, ids []string, taggedAt time.Time) ([]intent, error) {
	if e.tagger == nil || !kind.FileBearing() {
		return nil, nil
	}
	var out []intent
	for _, batch := range chunk(ids, e.cfg.BatchSize) {
		rows, err := e.fetch(ctx, kind, repository.Filter{
			repository.ColumnID:        batch,
			repository.ColumnTenantID:  r.report.TenantID,
			repository.ColumnIsDeleted: 0,
		})
		if err != nil {
			return nil, err
		}
		for _, n := range rows {
			bucket, key, ok := n.file()
			if !ok {
				continue
			}
			in := intent{tag: filestore.DeletionTag{
				BucketRef:     bucket,
				ObjectKey:     key,
				TaggedAt:      taggedAt,
				RetentionDays: e.cfg.RetentionDays,
				TenantID:      r.report.TenantID,
				EntityKind:    string(kind),
				EntityID:      n.ID,
			}}
			if e.sink != nil {
				// 下发窗口内 Reconciler 不接手
				in.outboxID, err = e.sink.Enqueue(ctx, r.report.RunID, in.tag, taggedAt.Add(e.cfg.TagTimeout))
				if err != nil {
					return nil, err
				}
			}
			out = append(out, in)
		}
	}
	return out, nil
}

// emitTags 下发已提交层的文件标记，失败不会中断运行
func (e *Engine) emitTags(ctx context.Context, r *run, intents []intent) {
	log := e.log.WithContext(ctx).With(zap.Int64("run_id", r.report.RunID))
	for _, in := range intents {
		tagCtx, cancel := context.WithTimeout(ctx, e.cfg.TagTimeout)
		err := e.tagger.Tag(tagCtx, in.tag)
		cancel()

		if err == nil {
			r.report.Tagged++
			metrics.FileTagTotal.WithLabelValues(e.tagger.Name(), "ok").Inc()
			if in.outboxID != "" {
				if derr := e.sink.MarkDone(ctx, in.outboxID); derr != nil {
					log.Warn("failed to close pending file tag", zap.String("tag_id", in.outboxID), zap.Error(derr))
				}
			}
			continue
		}

		metrics.FileTagTotal.WithLabelValues(e.tagger.Name(), "error").Inc()
		failure := TagFailure{Tag: in.tag, Error: err.Error(), Queued: in.outboxID != ""}
		if failure.Queued {
			// 立即交给 Reconciler；更新失败时行仍在 retryAt 后到期
			if ferr := e.sink.MarkFailed(ctx, in.outboxID, 1, err, e.now(), false); ferr != nil {
				log.Warn("failed to record file tag failure", zap.String("tag_id", in.outboxID), zap.Error(ferr))
			}
		}
		r.report.TagFailures = append(r.report.TagFailures, failure)
		log.Warn("file tagging failed",
			zap.String("bucket", in.tag.BucketRef),
			zap.String("object_key", in.tag.ObjectKey),
			zap.Bool("queued", failure.Queued),
			zap.Error(err),
		)
	}
}

// fetch 经拦截器读取 kind 对应表的行（包含已删除行）
func (e *Engine) fetch(ctx context.Context, kind model.Kind, filter repository.Filter) ([]node, error) {
	table := kind.Table()
	db, _, err := e.scope.Scope(ctx, repository.DBFromContext(ctx, e.db).Table(table), table, repository.OpRead, filter)
	if err != nil {
		return nil, err
	}

	columns := []string{repository.ColumnID, repository.ColumnTenantID, repository.ColumnIsDeleted}
	if kind.FileBearing() {
		columns = append(columns, "file_bucket", "file_key")
	}

	var rows []node
	if err := db.Select(columns).Order(repository.ColumnID).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to enumerate "+table, err)
	}
	return rows, nil
}

// mark 软删除 ids 中仍存活的行，返回受影响行数
func (e *Engine) mark(ctx context.Context, kind model.Kind, ids []string, tenantID string) (int64, error) {
	table := kind.Table()
	var total int64
	for _, batch := range chunk(ids, e.cfg.BatchSize) {
		filter := repository.Filter{
			repository.ColumnID:        batch,
			repository.ColumnTenantID:  tenantID,
			repository.ColumnIsDeleted: 0,
		}
		db, _, err := e.scope.Scope(ctx, repository.DBFromContext(ctx, e.db).Table(table), table, repository.OpDelete, filter)
		if err != nil {
			return total, err
		}
		res := db.Updates(map[string]any{
			repository.ColumnIsDeleted:  1,
			repository.ColumnVersion:    gorm.Expr(repository.ColumnVersion+" + ?", 1),
			repository.ColumnUpdateTime: e.now(),
		})
		if res.Error != nil {
			return total, errors.Wrap(errors.ErrCodeInternal, "failed to mark "+table+" deleted", res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}

func chunk(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	if size <= 0 || len(ids) <= size {
		return [][]string{ids}
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
