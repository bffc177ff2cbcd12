package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aisgo/ais-tenancy/filestore"
	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/metrics"
)

/* ========================================================================
 * Reconciler - 文件标记补偿
 * ========================================================================
 * 职责: 周期性重试 pending_file_tags 中到期的标记
 * 规则:
 *   - 退避: base * 2^(attempts-1)，不超过 max
 *   - 达到 MaxAttempts 后标记为 dead，保留记录供人工处理
 * ======================================================================== */

// Config 补偿配置
type Config struct {
	Interval    time.Duration `yaml:"interval" mapstructure:"interval"`
	BatchSize   int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseBackoff time.Duration `yaml:"base_backoff" mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// WithDefaults 填充默认值
func (c Config) WithDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Hour
	}
	return c
}

// Result 一轮补偿的结果
type Result struct {
	Retried int
	Done    int
	Failed  int
	Dead    int
}

// Reconciler 标记补偿器
type Reconciler struct {
	store  *Store
	tagger filestore.Tagger
	cfg    Config
	log    *logger.Logger
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReconciler 创建补偿器
func NewReconciler(store *Store, tagger filestore.Tagger, cfg Config, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Reconciler{
		store:  store,
		tagger: tagger,
		cfg:    cfg.WithDefaults(),
		log:    log,
		now:    time.Now,
	}
}

// RunOnce 处理一批到期的标记
func (r *Reconciler) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	rows, err := r.store.Due(ctx, r.now(), r.cfg.BatchSize)
	if err != nil {
		return res, err
	}

	for _, row := range rows {
		res.Retried++
		tagErr := r.tagger.Tag(ctx, row.DeletionTag())
		if tagErr == nil {
			metrics.FileTagTotal.WithLabelValues(r.tagger.Name(), "ok").Inc()
			if err := r.store.MarkDone(ctx, row.ID); err != nil {
				return res, err
			}
			res.Done++
			continue
		}

		metrics.FileTagTotal.WithLabelValues(r.tagger.Name(), "error").Inc()
		attempts := row.Attempts + 1
		dead := attempts >= r.cfg.MaxAttempts
		if err := r.store.MarkFailed(ctx, row.ID, attempts, tagErr, r.now().Add(r.backoff(attempts)), dead); err != nil {
			return res, err
		}
		if dead {
			res.Dead++
			r.log.Error("file tag abandoned after max attempts",
				zap.String("tag_id", row.ID),
				zap.String("tenant_id", row.TenantID),
				zap.String("bucket", row.BucketRef),
				zap.String("key", row.ObjectKey),
				zap.Int("attempts", attempts),
				zap.Error(tagErr),
			)
			continue
		}
		res.Failed++
		r.log.Warn("file tag retry failed",
			zap.String("tag_id", row.ID),
			zap.Int("attempts", attempts),
			zap.Error(tagErr),
		)
	}

	if n, err := r.store.CountPending(ctx); err == nil {
		metrics.PendingTagGauge.Set(float64(n))
	}
	return res, nil
}

func (r *Reconciler) backoff(attempts int) time.Duration {
	d := r.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= r.cfg.MaxBackoff {
			return r.cfg.MaxBackoff
		}
	}
	return d
}

// Start 启动后台循环
func (r *Reconciler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		for {
			if res, err := r.RunOnce(ctx); err != nil {
				r.log.Error("file tag reconciliation failed", zap.Error(err))
			} else if res.Retried > 0 {
				r.log.Info("file tag reconciliation",
					zap.Int("retried", res.Retried),
					zap.Int("done", res.Done),
					zap.Int("failed", res.Failed),
					zap.Int("dead", res.Dead),
				)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop 停止后台循环并等待退出
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}
