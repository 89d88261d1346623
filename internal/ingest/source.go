package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aihub/rag-gateway/internal/config"
)

// Document 待入库的原始文档
type Document struct {
	Name   string
	Reader io.ReadCloser
}

// DocumentSource 文档来源抽象，本地目录与对象存储共用同一入库管道
type DocumentSource interface {
	// Walk 遍历来源中的所有文档，对每个文档调用fn
	// fn负责关闭Document.Reader
	Walk(ctx context.Context, fn func(doc Document) error) error
}

// LocalDirSource 本地目录来源
type LocalDirSource struct {
	dir string
}

// NewLocalDirSource 创建本地目录来源
func NewLocalDirSource(dir string) *LocalDirSource {
	return &LocalDirSource{dir: dir}
}

func (s *LocalDirSource) Walk(ctx context.Context, fn func(doc Document) error) error {
	return filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("打开文件失败: %w", err)
		}
		return fn(Document{Name: info.Name(), Reader: file})
	})
}

// SingleFileSource 单文件来源（命令行指定单个文件时使用）
type SingleFileSource struct {
	path string
}

// NewSingleFileSource 创建单文件来源
func NewSingleFileSource(path string) *SingleFileSource {
	return &SingleFileSource{path: path}
}

func (s *SingleFileSource) Walk(ctx context.Context, fn func(doc Document) error) error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("打开文件失败: %w", err)
	}
	return fn(Document{Name: filepath.Base(s.path), Reader: file})
}

// MinIOSource 对象存储来源
type MinIOSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIOSource 根据对象存储配置创建MinIO来源
func NewMinIOSource(cfg config.ObjectStorageConfig) (*MinIOSource, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}

	// minio.New 不接受协议前缀
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "knowledge-files"
	}

	return &MinIOSource{
		client: client,
		bucket: bucket,
		prefix: cfg.BasePath,
	}, nil
}

func (s *MinIOSource) Walk(ctx context.Context, fn func(doc Document) error) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查bucket失败: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket不存在: %s", s.bucket)
	}

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return fmt.Errorf("列举对象失败: %w", object.Err)
		}

		reader, err := s.client.GetObject(ctx, s.bucket, object.Key, minio.GetObjectOptions{})
		if err != nil {
			return fmt.Errorf("读取对象失败: %w", err)
		}
		if err := fn(Document{Name: filepath.Base(object.Key), Reader: reader}); err != nil {
			return err
		}
	}

	return ctx.Err()
}

// NewSource 根据配置选择文档来源
func NewSource(cfg config.ObjectStorageConfig) (DocumentSource, error) {
	switch cfg.Provider {
	case "minio", "s3":
		return NewMinIOSource(cfg)
	default:
		return NewLocalDirSource(cfg.BasePath), nil
	}
}
