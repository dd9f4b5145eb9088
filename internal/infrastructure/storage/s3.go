// Package storage 电子书文件的私有对象存储
package storage

import (
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/infrastructure/config"
)

// S3Presigner 为私有桶中的电子书签发短时下载链接
// 桶本身不对外开放，链接过期后需要重新申请；桶名与对象key不写日志
type S3Presigner struct {
	presigner *s3.PresignClient
	bucket    string
}

// NewS3Presigner 未配置access_key时走默认凭证链（环境变量、实例角色）
func NewS3Presigner(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (*S3Presigner, error) {
	logger = logger.With().Str("component", "s3_presigner").Logger()

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("加载AWS配置失败: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	logger.Info().Str("region", cfg.Region).Bool("path_style", cfg.PathStyle).Msg("S3下载签名已初始化")

	return &S3Presigner{
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}, nil
}

// PresignGet 签发GET链接，浏览器按filename保存文件
func (p *S3Presigner) PresignGet(ctx context.Context, key, filename string, expiry time.Duration) (string, error) {
	req, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(p.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(contentDisposition(filename)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("签发下载链接失败: %w", err)
	}
	return req.URL, nil
}

// contentDisposition 非ASCII文件名按RFC 2231编码
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
