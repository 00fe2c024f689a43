package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"nus-fire-evac/backend/config"
)

// Uploader 报表归档目标
type Uploader interface {
	Put(ctx context.Context, name string, body []byte, contentType string) (string, error)
}

// S3Store 基于 S3 兼容存储（AWS S3 / MinIO）的归档
type S3Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewS3Store 按配置创建；未配置静态密钥时走默认凭证链
func NewS3Store(ctx context.Context, cfg *config.ArchiveConfig, optFns ...func(*s3.Options)) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("归档 bucket 不能为空")
	}
	region := cfg.Region
	if region == "" {
		region = "ap-southeast-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		for _, fn := range optFns {
			fn(o)
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}, nil
}

// Put 上传对象，返回对象 key
func (s *S3Store) Put(ctx context.Context, name string, body []byte, contentType string) (string, error) {
	key := path.Join(strings.TrimSuffix(s.keyPrefix, "/"), name)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("上传归档失败: %w", err)
	}
	return key, nil
}
