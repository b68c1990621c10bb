package objstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader 导出文件的对象存储接口
type Uploader interface {
	// Upload 上传对象，返回可下载的 URL
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Options 对象存储连接参数
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration // 预签名 URL 有效期
}

// MinioStore 基于 MinIO/S3 兼容接口的实现
type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinio 连接对象存储，桶不存在时创建
func NewMinio(ctx context.Context, opts Options) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("连接对象存储失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
	}

	expiry := opts.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &MinioStore{client: client, bucket: opts.Bucket, expiry: expiry}, nil
}

// Upload 上传对象并签出下载链接
func (m *MinioStore) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传对象失败: %w", err)
	}

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", name))
	u, err := m.client.PresignedGetObject(ctx, m.bucket, name, m.expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("签发下载链接失败: %w", err)
	}
	return u.String(), nil
}

// MemStore 内存实现，测试和未配置对象存储时使用
type MemStore struct {
	objects map[string][]byte
}

// NewMem 创建内存对象存储
func NewMem() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// Upload 保存到内存并返回伪 URL
func (m *MemStore) Upload(_ context.Context, name string, data []byte, _ string) (string, error) {
	m.objects[name] = data
	return "mem://" + name, nil
}

// Get 取回内存中的对象，测试断言用
func (m *MemStore) Get(name string) ([]byte, bool) {
	data, ok := m.objects[name]
	return data, ok
}
