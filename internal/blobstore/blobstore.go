// Package blobstore keeps the original uploaded bytes in MinIO and hands out
// short-lived presigned URLs for downloads and inline viewing.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint   string `env:"MINIO_ENDPOINT" env-default:"minio:9000"`
	BucketName string `env:"MINIO_BUCKET_NAME" env-default:"storage"`
	AccessKey  string `env:"MINIO_ACCESS_KEY" env-default:"admin"`
	SecretKey  string `env:"MINIO_SECRET_KEY"`
	UseSSL     bool   `env:"MINIO_USE_SSL" env-default:"false"`
}

type Client struct {
	client *minio.Client
	bucket string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
		exists, errBucketExists := client.BucketExists(ctx, cfg.BucketName)
		if !(errBucketExists == nil && exists) {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.BucketName, err)
		}
	}

	return &Client{
		client: client,
		bucket: cfg.BucketName,
	}, nil
}

func (c *Client) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
}

// PresignedURL returns a time-limited URL for the object. With inline=false
// the response forces a download with the given filename.
func (c *Client) PresignedURL(ctx context.Context, key, filename string, inline bool, expiry time.Duration) (string, error) {
	params := make(url.Values)
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	params.Set("response-content-disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))

	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign object %q: %w", key, err)
	}
	return u.String(), nil
}
