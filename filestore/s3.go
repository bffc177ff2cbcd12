package filestore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

/* ========================================================================
 * S3 Tagger - 对象标签
 * ========================================================================
 * 职责: 通过 PutObjectTagging 写入删除时间与保留天数
 * 说明: 实际清理由存储桶生命周期规则按标签完成
 * ======================================================================== */

// S3Config S3 连接配置
type S3Config struct {
	Region          string `yaml:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// NewS3Client 创建 S3 客户端
func NewS3Client(cfg S3Config) (s3iface.S3API, error) {
	awsCfg := aws.NewConfig().WithS3ForcePathStyle(cfg.ForcePathStyle)
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return s3.New(sess), nil
}

// S3Tagger S3 对象标记器
type S3Tagger struct {
	client s3iface.S3API
}

// NewS3Tagger 创建 S3 标记器
func NewS3Tagger(client s3iface.S3API) *S3Tagger {
	return &S3Tagger{client: client}
}

// Name 后端名称
func (t *S3Tagger) Name() string { return "s3" }

// Tag 写入对象标签（覆盖同名标签，重复调用结果一致）
func (t *S3Tagger) Tag(ctx context.Context, tag DeletionTag) error {
	if tag.BucketRef == "" || tag.ObjectKey == "" {
		return fmt.Errorf("s3 tag requires bucket and key")
	}

	tags := []*s3.Tag{
		{Key: aws.String(TagDeletedAt), Value: aws.String(tag.TaggedAt.UTC().Format(time.RFC3339))},
		{Key: aws.String(TagRetentionDays), Value: aws.String(strconv.Itoa(tag.RetentionDays))},
	}
	if tag.TenantID != "" {
		tags = append(tags, &s3.Tag{Key: aws.String(TagTenantID), Value: aws.String(tag.TenantID)})
	}

	_, err := t.client.PutObjectTaggingWithContext(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(tag.BucketRef),
		Key:     aws.String(tag.ObjectKey),
		Tagging: &s3.Tagging{TagSet: tags},
	})
	if err != nil {
		return fmt.Errorf("tagging s3://%s/%s: %w", tag.BucketRef, tag.ObjectKey, err)
	}
	return nil
}
