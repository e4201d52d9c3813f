package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"coursecraft_backend/internal/config"
	"coursecraft_backend/internal/util"
	"coursecraft_backend/pkg/logger"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider hosts certificate template assets. File hosting itself is
// an external collaborator; these adapters only put, remove and address objects.
type StorageProvider interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, filepath.Clean("/"+key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.URL(ctx, key)
}

func (p *LocalStorageProvider) Delete(ctx context.Context, key string) error {
	return os.Remove(filepath.Join(p.Config.LocalPath, filepath.Clean("/"+key)))
}

func (p *LocalStorageProvider) URL(ctx context.Context, key string) (string, error) {
	return "/uploads/" + key, nil
}

type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
	Expiry time.Duration
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client, Expiry: time.Hour}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.URL(ctx, key)
}

func (p *MinioStorageProvider) Delete(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, key, minio.RemoveObjectOptions{})
}

// URL returns a presigned GET link, since certificate buckets are private.
func (p *MinioStorageProvider) URL(ctx context.Context, key string) (string, error) {
	u, err := p.Client.PresignedGetObject(ctx, p.Config.MinioBucket, key, p.Expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// OSSStorageProvider stores objects in an Aliyun OSS bucket.
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Bucket *oss.Bucket
	Expiry time.Duration
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	bucket, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", cfg.OSSBucket, err)
	}
	return &OSSStorageProvider{Config: cfg, Bucket: bucket, Expiry: time.Hour}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if err := p.Bucket.PutObject(key, reader, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", err
	}
	return p.URL(ctx, key)
}

func (p *OSSStorageProvider) Delete(ctx context.Context, key string) error {
	return p.Bucket.DeleteObject(key, oss.WithContext(ctx))
}

func (p *OSSStorageProvider) URL(ctx context.Context, key string) (string, error) {
	return p.Bucket.SignURL(key, oss.HTTPGet, int64(p.Expiry/time.Second))
}

type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("minio unavailable, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("oss unavailable, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	return &StorageService{Provider: provider}
}

func (s *StorageService) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	return s.Provider.Upload(ctx, key, reader, size, contentType)
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	return s.Provider.Delete(ctx, key)
}

// URL resolves key, returning "" for an empty key.
func (s *StorageService) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return s.Provider.URL(ctx, key)
}
