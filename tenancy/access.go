package tenancy

/* ========================================================================
 * Access Mode - 访问模式
 * ========================================================================
 * 职责: 定义仓储访问模式的封闭集合
 * 取值: Scoped（默认，按租户过滤）/ ExplicitBypass（特权跨租户，需审计）
 * ======================================================================== */

// AccessMode 访问模式，仅 Scoped 与 ExplicitBypass 两种实现
type AccessMode interface {
	accessMode()
	String() string
}

// Scoped 按绑定租户过滤
type Scoped struct{}

func (Scoped) accessMode()    {}
func (Scoped) String() string { return "scoped" }

// ExplicitBypass 特权用户显式跳过租户过滤
// 只能通过 Bypass 获得，Reason 与 TargetTenant 写入审计日志。
type ExplicitBypass struct {
	Reason       string
	TargetTenant string
}

func (ExplicitBypass) accessMode()    {}
func (ExplicitBypass) String() string { return "explicit_bypass" }
