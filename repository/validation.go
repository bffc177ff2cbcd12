package repository

import (
	"regexp"
	"strings"

	"github.com/aisgo/ais-tenancy/errors"
)

/* ========================================================================
 * 查询选项校验
 * ========================================================================
 * 职责: OrderBy / Select 只接受本表的裸列名
 * 说明:
 *   - 不接受 table.column、函数、别名：仓储不做连接，限定名只会指向别的表
 *   - 过滤条件走 Filter，不经过这里
 * ======================================================================== */

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func invalidOption(option, value, reason string) *errors.BizError {
	return errors.New(errors.ErrCodeInvalidArgument, "invalid query option").
		WithDetail("option", option).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// ValidateOrderBy 校验排序: "col", "col DESC", "a ASC, b DESC"
func ValidateOrderBy(orderBy string) error {
	if strings.TrimSpace(orderBy) == "" {
		return nil
	}
	for _, part := range strings.Split(orderBy, ",") {
		fields := strings.Fields(part)
		switch len(fields) {
		case 1:
		case 2:
			if d := strings.ToUpper(fields[1]); d != "ASC" && d != "DESC" {
				return invalidOption("order_by", orderBy, "direction must be ASC or DESC")
			}
		default:
			return invalidOption("order_by", orderBy, "expected 'column [ASC|DESC]'")
		}
		if !identPattern.MatchString(fields[0]) {
			return invalidOption("order_by", orderBy, "not a plain column name")
		}
	}
	return nil
}

// ValidateSelect 校验选择列
func ValidateSelect(selects []string) error {
	for _, sel := range selects {
		if !identPattern.MatchString(strings.TrimSpace(sel)) {
			return invalidOption("select", sel, "not a plain column name")
		}
	}
	return nil
}
