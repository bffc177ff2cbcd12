package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

/* ========================================================================
 * ID - 标识生成
 * ========================================================================
 * 职责: 实体主键（ULID）、级联删除运行 ID（Snowflake）、消息键（UUIDv7）
 * 特点:
 *   - 实体 ID 26 字符，按时间字典序，适合索引
 *   - 运行 ID 趋势递增，便于按时间检索审计日志
 * 环境变量:
 *   SNOWFLAKE_NODE_ID: 默认运行 ID 生成器的节点 ID (0-1023)
 * ======================================================================== */

const (
	// MaxNodeID 最大节点 ID (10 位)
	MaxNodeID = 1023
	// EnvNodeID 环境变量名
	EnvNodeID = "SNOWFLAKE_NODE_ID"
)

var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// NewEntityID 生成实体主键
// Monotonic 熵源非并发安全，需加锁；同一毫秒内按生成顺序递增。
func NewEntityID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ValidEntityID 判断字符串是否为合法实体 ID
func ValidEntityID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// EntityIDTime 提取实体 ID 中的时间戳
func EntityIDTime(s string) (time.Time, error) {
	v, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(v.Time()), nil
}

// NewMessageKey 生成消息键（UUIDv7，按时间有序）
func NewMessageKey() string {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v.String()
}

// RunIDGenerator 级联删除运行 ID 生成器
type RunIDGenerator struct {
	node *snowflake.Node
}

// NewRunIDGenerator 创建运行 ID 生成器
// 多实例部署时每个实例必须使用不同的 nodeID。
func NewRunIDGenerator(nodeID int64) (*RunIDGenerator, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("snowflake node id %d out of range [0, %d]", nodeID, MaxNodeID)
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &RunIDGenerator{node: node}, nil
}

// NewRunIDGeneratorFromEnv 从 SNOWFLAKE_NODE_ID 创建生成器，未设置时使用 0
func NewRunIDGeneratorFromEnv() (*RunIDGenerator, error) {
	val := os.Getenv(EnvNodeID)
	if val == "" {
		return NewRunIDGenerator(0)
	}
	nodeID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s=%q: invalid integer", EnvNodeID, val)
	}
	return NewRunIDGenerator(nodeID)
}

// Next 生成运行 ID
func (g *RunIDGenerator) Next() int64 {
	return g.node.Generate().Int64()
}

// NextString 生成运行 ID（字符串格式）
func (g *RunIDGenerator) NextString() string {
	return g.node.Generate().String()
}

// RunIDTime 解析运行 ID 的生成时间
func RunIDTime(runID int64) time.Time {
	return time.UnixMilli(snowflake.ID(runID).Time())
}
