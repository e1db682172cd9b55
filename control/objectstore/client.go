// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package objectstore wraps the S3-compatible store behind the narrow
// capability set the control plane needs, so tests can supply a fake.
package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/zeebo/errs"
)

var (
	// Error is the objectstore error class.
	Error = errs.Class("objectstore")
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errs.Class("object not found")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Client is the capability surface the control plane uses against the
// object store. Objects are keyed by resource UUID within a single bucket.
type Client interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, key string) (ObjectInfo, error)
	RemoveObject(ctx context.Context, key string) error
	BucketExists(ctx context.Context) (bool, error)
	PresignPut(ctx context.Context, key string, expires time.Duration) (string, error)
}
