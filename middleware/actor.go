package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/tenancy"
)

/* ========================================================================
 * Actor Headers (v1)
 * ========================================================================
 * 职责: 网关完成认证后以签名请求头下发 actor，服务端校验并解析
 * 说明: 只消费已认证的 actor，不做身份认证本身
 *
 * Headers:
 *   - X-AIS-Actor-V:     版本 ("1")
 *   - X-AIS-Actor-Iss:   签发方
 *   - X-AIS-Actor-Ts:    unix 秒
 *   - X-AIS-Actor-Nonce: 随机串
 *   - X-AIS-Actor:       base64url(JSON ActorClaims)
 *   - X-AIS-Actor-Sign:  hex(HMAC-SHA256(secret, v|iss|ts|nonce|actor))
 * ======================================================================== */

const (
	ActorHeaderVersionV1 = "1"

	HeaderActorVersion   = "X-AIS-Actor-V"
	HeaderActorIssuer    = "X-AIS-Actor-Iss"
	HeaderActorTimestamp = "X-AIS-Actor-Ts"
	HeaderActorNonce     = "X-AIS-Actor-Nonce"
	HeaderActor          = "X-AIS-Actor"
	HeaderActorSignature = "X-AIS-Actor-Sign"
)

const (
	defaultActorMaxAge    = 5 * time.Minute
	defaultActorClockSkew = 30 * time.Second
	actorNonceSize        = 16
	actorLocalKey         = "ais_actor_claims"
)

// ActorClaims 网关下发的 actor 信息
type ActorClaims struct {
	ActorID string            `json:"actor_id"`
	Roles   []string          `json:"roles,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// HasAnyRole 是否拥有任一角色
func (c *ActorClaims) HasAnyRole(roles []string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if slices.Contains(roles, r) {
			return true
		}
	}
	return false
}

// Actor 转为租户解析使用的 actor
func (c *ActorClaims) Actor(operatorRoles []string) tenancy.Actor {
	if c == nil || c.ActorID == "" {
		return tenancy.Actor{}
	}
	return tenancy.Actor{ID: c.ActorID, Privileged: c.HasAnyRole(operatorRoles), Authenticated: true}
}

// ActorHeaders 请求头的结构化表示
type ActorHeaders struct {
	Version   string
	Issuer    string
	Timestamp int64
	Nonce     string
	Actor     string
	Signature string
}

// ToMap 转为请求头 map
func (h ActorHeaders) ToMap() map[string]string {
	return map[string]string{
		HeaderActorVersion:   h.Version,
		HeaderActorIssuer:    h.Issuer,
		HeaderActorTimestamp: strconv.FormatInt(h.Timestamp, 10),
		HeaderActorNonce:     h.Nonce,
		HeaderActor:          h.Actor,
		HeaderActorSignature: h.Signature,
	}
}

// Write 写入 http.Header
func (h ActorHeaders) Write(dst http.Header) {
	if dst == nil || h.Signature == "" {
		return
	}
	for k, v := range h.ToMap() {
		dst.Set(k, v)
	}
}

/* ========================================================================
 * Signer
 * ======================================================================== */

// SignerConfig 签名配置
type SignerConfig struct {
	Secret string `yaml:"secret" mapstructure:"secret"`
	Issuer string `yaml:"issuer" mapstructure:"issuer"`

	NowFunc func() time.Time `yaml:"-" mapstructure:"-"`
}

// ActorSigner 为网关或服务间调用签名
type ActorSigner struct {
	cfg SignerConfig
	now func() time.Time
}

// NewActorSigner 创建签名器
func NewActorSigner(cfg SignerConfig) *ActorSigner {
	now := cfg.NowFunc
	if now == nil {
		now = time.Now
	}
	return &ActorSigner{cfg: cfg, now: now}
}

// Sign 生成 claims 的签名请求头
func (s *ActorSigner) Sign(claims *ActorClaims) (ActorHeaders, error) {
	if s.cfg.Secret == "" || s.cfg.Issuer == "" {
		return ActorHeaders{}, errors.New(errors.ErrCodeInternal, "actor signer requires secret and issuer")
	}
	actor, err := EncodeActorClaims(claims)
	if err != nil {
		return ActorHeaders{}, errors.Wrap(errors.ErrCodeInternal, "encode actor claims", err)
	}
	nonce, err := newNonce()
	if err != nil {
		return ActorHeaders{}, errors.Wrap(errors.ErrCodeInternal, "generate nonce", err)
	}
	h := ActorHeaders{
		Version:   ActorHeaderVersionV1,
		Issuer:    s.cfg.Issuer,
		Timestamp: s.now().Unix(),
		Nonce:     nonce,
		Actor:     actor,
	}
	h.Signature = sign(s.cfg.Secret, h)
	return h, nil
}

/* ========================================================================
 * Verifier
 * ======================================================================== */

// VerifierConfig 校验配置
type VerifierConfig struct {
	Enabled        bool              `yaml:"enabled" mapstructure:"enabled"`
	Secret         string            `yaml:"secret" mapstructure:"secret"`
	Secrets        map[string]string `yaml:"secrets" mapstructure:"secrets"` // 按签发方区分密钥
	AllowedIssuers []string          `yaml:"allowed_issuers" mapstructure:"allowed_issuers"`
	MaxAge         time.Duration     `yaml:"max_age" mapstructure:"max_age"`
	ClockSkew      time.Duration     `yaml:"clock_skew" mapstructure:"clock_skew"`

	NowFunc func() time.Time `yaml:"-" mapstructure:"-"`
}

// ActorVerifier 校验 actor 请求头
type ActorVerifier struct {
	cfg VerifierConfig
	log *logger.Logger
	now func() time.Time
}

// NewActorVerifier 创建校验器
func NewActorVerifier(cfg VerifierConfig, log *logger.Logger) *ActorVerifier {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultActorMaxAge
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = defaultActorClockSkew
	}
	if log == nil {
		log = logger.NewNop()
	}
	now := cfg.NowFunc
	if now == nil {
		now = time.Now
	}
	return &ActorVerifier{cfg: cfg, log: log, now: now}
}

// Enabled 是否启用校验
func (v *ActorVerifier) Enabled() bool {
	return v != nil && v.cfg.Enabled
}

func unauthenticated(reason string) *errors.BizError {
	return errors.New(errors.ErrCodeUnauthenticated, "invalid actor headers").WithDetail("reason", reason)
}

// Verify 校验请求头并返回 claims
func (v *ActorVerifier) Verify(h ActorHeaders) (*ActorClaims, error) {
	if h.Version == "" || h.Issuer == "" || h.Timestamp == 0 || h.Signature == "" || h.Actor == "" {
		return nil, unauthenticated("missing headers")
	}
	if h.Version != ActorHeaderVersionV1 {
		return nil, unauthenticated("unsupported version")
	}
	if len(v.cfg.AllowedIssuers) > 0 && !slices.Contains(v.cfg.AllowedIssuers, h.Issuer) {
		return nil, unauthenticated("issuer not allowed")
	}
	if h.Nonce == "" {
		return nil, unauthenticated("missing nonce")
	}

	secret := v.secretFor(h.Issuer)
	if secret == "" {
		return nil, unauthenticated("no secret for issuer")
	}
	if subtle.ConstantTimeCompare([]byte(sign(secret, h)), []byte(h.Signature)) != 1 {
		return nil, unauthenticated("bad signature")
	}

	issuedAt := time.Unix(h.Timestamp, 0)
	now := v.now()
	if now.Sub(issuedAt) > v.cfg.MaxAge {
		return nil, unauthenticated("expired")
	}
	if issuedAt.After(now.Add(v.cfg.ClockSkew)) {
		return nil, unauthenticated("issued in the future")
	}

	claims, err := DecodeActorClaims(h.Actor)
	if err != nil || claims == nil || claims.ActorID == "" {
		return nil, unauthenticated("bad actor payload")
	}
	return claims, nil
}

// VerifyHeader 从任意请求头读取函数校验（HTTP / gRPC metadata 共用）
func (v *ActorVerifier) VerifyHeader(get func(string) string) (*ActorClaims, error) {
	h, err := ParseActorHeaders(get)
	if err != nil {
		return nil, err
	}
	return v.Verify(h)
}

// Authenticate 校验 actor 请求头并放入 Locals
// 没有 actor 请求头的请求按匿名放行，由后续的租户解析与作用域拦截决定能否访问数据
func (v *ActorVerifier) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		if !v.Enabled() {
			return c.Next()
		}
		if c.Get(HeaderActorSignature) == "" {
			return c.Next()
		}
		claims, err := v.VerifyHeader(func(key string) string { return c.Get(key) })
		if err != nil {
			v.log.Warn("actor header rejected",
				zap.Error(err),
				zap.String("issuer", c.Get(HeaderActorIssuer)),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			return err
		}
		c.Locals(actorLocalKey, claims)
		return c.Next()
	}
}

// ClaimsFromContext 读取已校验的 claims
func ClaimsFromContext(c fiber.Ctx) (*ActorClaims, bool) {
	claims, ok := c.Locals(actorLocalKey).(*ActorClaims)
	return claims, ok && claims != nil
}

func (v *ActorVerifier) secretFor(issuer string) string {
	if s, ok := v.cfg.Secrets[issuer]; ok {
		return s
	}
	return v.cfg.Secret
}

// ParseActorHeaders 读取请求头
func ParseActorHeaders(get func(string) string) (ActorHeaders, error) {
	ts := strings.TrimSpace(get(HeaderActorTimestamp))
	if ts == "" {
		return ActorHeaders{}, unauthenticated("missing headers")
	}
	timestamp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || timestamp <= 0 {
		return ActorHeaders{}, unauthenticated("bad timestamp")
	}
	return ActorHeaders{
		Version:   strings.TrimSpace(get(HeaderActorVersion)),
		Issuer:    strings.TrimSpace(get(HeaderActorIssuer)),
		Timestamp: timestamp,
		Nonce:     strings.TrimSpace(get(HeaderActorNonce)),
		Actor:     strings.TrimSpace(get(HeaderActor)),
		Signature: strings.TrimSpace(get(HeaderActorSignature)),
	}, nil
}

// EncodeActorClaims base64url(JSON)
func EncodeActorClaims(c *ActorClaims) (string, error) {
	if c == nil {
		return "", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeActorClaims 解析 base64url(JSON)
func DecodeActorClaims(value string) (*ActorClaims, error) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	var c ActorClaims
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func sign(secret string, h ActorHeaders) string {
	payload := strings.Join([]string{h.Version, h.Issuer, strconv.FormatInt(h.Timestamp, 10), h.Nonce, h.Actor}, "|")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func newNonce() (string, error) {
	buf := make([]byte, actorNonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
