package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

/* ========================================================================
 * Config Loader
 * ========================================================================
 * 职责: 读取单个配置文件，展开环境变量占位符后交给 viper 解码
 * 优先级: TENANCY_ 前缀环境变量 > 文件 > Default()
 * ======================================================================== */

// EnvPrefix 环境变量前缀，如 TENANCY_HTTP_PORT 覆盖 http.port
const EnvPrefix = "TENANCY"

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// Expand 展开 ${VAR} 与 ${VAR:-default}；VAR 未设置或为空时取 default
func Expand(raw string) string {
	return placeholder.ReplaceAllStringFunc(raw, func(match string) string {
		sub := placeholder.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(sub[1]); ok && val != "" {
			return val
		}
		return sub[2]
	})
}

// decode 读取 path 并解码到 out，out 中已有的值作为默认值
func decode(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	typ := strings.TrimPrefix(filepath.Ext(path), ".")
	if typ == "" {
		typ = "yaml"
	}

	v := viper.New()
	v.SetConfigType(typ)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadConfig(strings.NewReader(Expand(string(raw)))); err != nil {
		return fmt.Errorf("parse %s: %w", typ, err)
	}

	return v.Unmarshal(out, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
}
