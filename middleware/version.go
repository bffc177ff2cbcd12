package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/repository"
)

// 版本号通过 If-Match 请求头或请求体中的 version 字段携带，响应以 ETag 返回当前版本

// ParseVersionTag 解析 W/"3"、"3" 或 3
func ParseVersionTag(raw string) (int64, error) {
	tag := strings.TrimSpace(raw)
	tag = strings.TrimPrefix(tag, "W/")
	tag = strings.Trim(tag, `"`)
	v, err := strconv.ParseInt(tag, 10, 64)
	if err != nil || v < 0 {
		return 0, errors.New(errors.ErrCodeInvalidArgument, "invalid version tag").WithDetail("if_match", raw)
	}
	return v, nil
}

// FormatVersionTag 生成弱 ETag
func FormatVersionTag(version int64) string {
	return `W/"` + strconv.FormatInt(version, 10) + `"`
}

// VersionToken 从请求构造版本令牌；bodyVersion 为请求体中的 version 字段（可为 nil）
// 两者都缺失时令牌不带版本，由 CheckAndApply 返回 PreconditionRequired
func VersionToken(c fiber.Ctx, resourceID string, bodyVersion *int64) (repository.VersionToken, error) {
	token := repository.VersionToken{ResourceID: resourceID, Version: bodyVersion}

	raw := c.Get(fiber.HeaderIfMatch)
	if raw == "" {
		return token, nil
	}
	v, err := ParseVersionTag(raw)
	if err != nil {
		return token, err
	}
	if bodyVersion != nil && *bodyVersion != v {
		return token, errors.New(errors.ErrCodeInvalidArgument, "If-Match and body version disagree")
	}
	token.Version = &v
	return token, nil
}

// SetVersion 写出 ETag
func SetVersion(c fiber.Ctx, version int64) {
	c.Set(fiber.HeaderETag, FormatVersionTag(version))
}
