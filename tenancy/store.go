package tenancy

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/logger"
)

/* ========================================================================
 * Context Store - 租户上下文
 * ========================================================================
 * 职责: 在一次逻辑操作内携带 {tenant, actor, privileged, access}
 * 设计:
 *   - 绑定挂在 context.Context 上，每次 Run 创建独立绑定
 *   - 状态为写时复制快照（atomic.Pointer），不使用互斥锁
 *   - 仅 TenantID 允许延迟绑定一次
 * 规则:
 *   - 在 Run 内启动的 goroutine 必须显式传入 fn 收到的 ctx，
 *     使用 context.Background() 启动的 goroutine 不带任何租户
 * ======================================================================== */

// Actor 已认证的调用者
type Actor struct {
	ID            string
	Privileged    bool
	Authenticated bool
}

// State 租户上下文快照
type State struct {
	TenantID   string
	ActorID    string
	Privileged bool
	Access     AccessMode
}

// HasTenant 是否已绑定租户
func (s State) HasTenant() bool {
	return s.TenantID != ""
}

// Mode 返回访问模式，未设置时为 Scoped
func (s State) Mode() AccessMode {
	if s.Access == nil {
		return Scoped{}
	}
	return s.Access
}

// BypassInfo 返回显式跳过信息
func (s State) BypassInfo() (ExplicitBypass, bool) {
	b, ok := s.Access.(ExplicitBypass)
	return b, ok
}

type binding struct {
	state atomic.Pointer[State]
}

type bindingKey struct{}

var storeLog atomic.Pointer[logger.Logger]

// SetLogger 设置上下文存储的日志器
func SetLogger(l *logger.Logger) {
	if l != nil {
		storeLog.Store(l)
	}
}

func log() *logger.Logger {
	if l := storeLog.Load(); l != nil {
		return l
	}
	return &logger.Logger{Logger: zap.L()}
}

// Run 为 fn 创建新的租户上下文绑定
func Run(ctx context.Context, st State, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := st.Access.(ExplicitBypass); ok {
		return errors.New(errors.ErrCodeInvalidArgument, "explicit bypass must be requested through Bypass")
	}
	st.Access = Scoped{}

	b := &binding{}
	b.state.Store(&st)
	return fn(context.WithValue(ctx, bindingKey{}, b))
}

// Get 读取当前租户上下文；不在 Run 内时返回 false
func Get(ctx context.Context) (State, bool) {
	b := bindingFrom(ctx)
	if b == nil {
		return State{}, false
	}
	return *b.state.Load(), true
}

// TenantID 返回当前绑定的租户 ID
func TenantID(ctx context.Context) (string, bool) {
	st, ok := Get(ctx)
	if !ok || !st.HasTenant() {
		return "", false
	}
	return st.TenantID, true
}

// SetTenant 延迟绑定租户，只允许绑定一次
func SetTenant(ctx context.Context, tenantID string) error {
	b := bindingFrom(ctx)
	if b == nil {
		log().Error("set tenant outside of a tenant context", zap.String("tenant_id", tenantID))
		return errors.ErrTenantContextMissing
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return errors.New(errors.ErrCodeInvalidArgument, "tenant id is empty")
	}

	for {
		old := b.state.Load()
		if old.TenantID == tenantID {
			return nil
		}
		if old.TenantID != "" {
			return errors.New(errors.ErrCodeInvalidArgument, "tenant already bound for this operation")
		}
		next := *old
		next.TenantID = tenantID
		if b.state.CompareAndSwap(old, &next) {
			return nil
		}
	}
}

// SetActor 绑定调用者，规则同 SetTenant
func SetActor(ctx context.Context, actor Actor) error {
	b := bindingFrom(ctx)
	if b == nil {
		log().Error("set actor outside of a tenant context", zap.String("actor_id", actor.ID))
		return errors.ErrTenantContextMissing
	}
	if actor.ID == "" {
		return errors.New(errors.ErrCodeInvalidArgument, "actor id is empty")
	}

	for {
		old := b.state.Load()
		if old.ActorID != "" && old.ActorID != actor.ID {
			return errors.New(errors.ErrCodeInvalidArgument, "actor already bound for this operation")
		}
		if old.ActorID == actor.ID && old.Privileged == actor.Privileged {
			return nil
		}
		next := *old
		next.ActorID = actor.ID
		next.Privileged = actor.Privileged
		if b.state.CompareAndSwap(old, &next) {
			return nil
		}
	}
}

// Bypass 返回处于显式跳过模式的子 context
// 仅特权用户且已解析目标租户时可用；原 ctx 保持 Scoped。
func Bypass(ctx context.Context, reason string) (context.Context, error) {
	b := bindingFrom(ctx)
	if b == nil {
		log().Error("bypass requested outside of a tenant context")
		return ctx, errors.ErrTenantContextMissing
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ctx, errors.New(errors.ErrCodeInvalidArgument, "bypass reason is required")
	}

	st := *b.state.Load()
	if !st.Privileged {
		return ctx, errors.New(errors.ErrCodePermissionDenied, "bypass requires a privileged actor")
	}
	if !st.HasTenant() {
		return ctx, errors.ErrTenantIDRequired
	}

	st.Access = ExplicitBypass{Reason: reason, TargetTenant: st.TenantID}
	child := &binding{}
	child.state.Store(&st)
	return context.WithValue(ctx, bindingKey{}, child), nil
}

func bindingFrom(ctx context.Context) *binding {
	if ctx == nil {
		return nil
	}
	b, _ := ctx.Value(bindingKey{}).(*binding)
	return b
}

// logFields 提供给 logger.WithContext 的字段
func logFields(ctx context.Context) []zap.Field {
	st, ok := Get(ctx)
	if !ok {
		return nil
	}
	fields := make([]zap.Field, 0, 3)
	if st.TenantID != "" {
		fields = append(fields, zap.String("tenant_id", st.TenantID))
	}
	if st.ActorID != "" {
		fields = append(fields, zap.String("actor_id", st.ActorID))
	}
	if _, ok := st.BypassInfo(); ok {
		fields = append(fields, zap.String("access", st.Mode().String()))
	}
	return fields
}

func init() {
	logger.RegisterContextFields(logFields)
}
