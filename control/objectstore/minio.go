// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package objectstore

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the connection settings of the S3-compatible store.
type Config struct {
	Endpoint  string `help:"host:port of the S3-compatible object store" default:"localhost:9000"`
	AccessKey string `help:"object store access key" default:""`
	SecretKey string `help:"object store secret key" default:""`
	Bucket    string `help:"bucket holding attack resource files" default:"ouroboros-resources"`
	UseTLS    bool   `help:"whether to use TLS when talking to the object store" default:"false"`
}

// MinioClient implements Client using minio-go.
type MinioClient struct {
	client *minio.Client
	bucket string
}

var _ Client = (*MinioClient)(nil)

// NewMinioClient dials the configured S3-compatible endpoint.
func NewMinioClient(config Config) (*MinioClient, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseTLS,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &MinioClient{client: client, bucket: config.Bucket}, nil
}

// GetObject opens the object for reading.
func (store *MinioClient) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := store.client.GetObject(ctx, store.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, store.convertError(err)
	}
	// minio defers the request until the first read; surface missing
	// objects here so callers can branch on ErrNotFound.
	if _, err := object.Stat(); err != nil {
		_ = object.Close()
		return nil, store.convertError(err)
	}
	return object, nil
}

// StatObject returns object metadata.
func (store *MinioClient) StatObject(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := store.client.StatObject(ctx, store.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, store.convertError(err)
	}
	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// RemoveObject deletes the object. Removing a missing object is not an error.
func (store *MinioClient) RemoveObject(ctx context.Context, key string) error {
	err := store.client.RemoveObject(ctx, store.bucket, key, minio.RemoveObjectOptions{})
	return store.convertError(err)
}

// BucketExists reports whether the configured bucket exists.
func (store *MinioClient) BucketExists(ctx context.Context) (bool, error) {
	exists, err := store.client.BucketExists(ctx, store.bucket)
	return exists, Error.Wrap(err)
}

// PresignPut returns a presigned PUT URL for the key.
func (store *MinioClient) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	presigned, err := store.client.PresignedPutObject(ctx, store.bucket, key, expires)
	if err != nil {
		return "", Error.Wrap(err)
	}
	return (*url.URL)(presigned).String(), nil
}

func (store *MinioClient) convertError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return ErrNotFound.Wrap(err)
	}
	return Error.Wrap(err)
}
