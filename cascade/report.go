package cascade

import (
	"time"

	"github.com/aisgo/ais-tenancy/filestore"
	"github.com/aisgo/ais-tenancy/model"
)

// State 级联删除状态
type State string

const (
	StateStarted               State = "started"
	StateDescendantsEnumerated State = "descendants_enumerated"
	StateDescendantsMarked     State = "descendants_marked"
	StateFilesTagged           State = "files_tagged"
	StateRootMarked            State = "root_marked"
	StateCompleted             State = "completed"
	StateFailed                State = "failed"
)

// LayerReport 单层单种类的处理结果
type LayerReport struct {
	Depth      int        `json:"depth"`
	Kind       model.Kind `json:"kind"`
	Enumerated int        `json:"enumerated"`
	Marked     int64      `json:"marked"`
	Done       bool       `json:"done"`
}

// TagFailure 标记失败记录
type TagFailure struct {
	Tag    filestore.DeletionTag `json:"tag"`
	Error  string                `json:"error"`
	Queued bool                  `json:"queued"`
}

// Report 一次级联删除的运行报告
type Report struct {
	RunID    int64      `json:"run_id"`
	RootKind model.Kind `json:"root_kind"`
	RootID   string     `json:"root_id"`
	TenantID string     `json:"tenant_id"`

	State State `json:"state"`
	// LastCompleted 失败前最后完成的状态
	LastCompleted State `json:"last_completed"`
	Error         string `json:"error,omitempty"`

	Layers      []LayerReport `json:"layers"`
	RootMarked  bool          `json:"root_marked"`
	Tagged      int           `json:"tagged"`
	TagFailures []TagFailure  `json:"tag_failures,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Marked 按种类汇总本次标记删除的行数（含根）
func (r *Report) Marked() map[model.Kind]int64 {
	out := make(map[model.Kind]int64)
	for _, l := range r.Layers {
		out[l.Kind] += l.Marked
	}
	if r.RootMarked {
		out[r.RootKind]++
	}
	return out
}

func (r *Report) advance(s State) {
	r.State = s
	r.LastCompleted = s
}

func (r *Report) fail(err error) {
	r.State = StateFailed
	r.Error = err.Error()
}
