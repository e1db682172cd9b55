// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package teststore implements an in-memory objectstore.Client for tests.
package teststore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/zeebo/errs"

	"ouroboros.dev/ouroboros/control/objectstore"
)

// Store keeps objects in memory. Error fields, when set, are returned by the
// corresponding call so tests can exercise failure paths.
type Store struct {
	mu      sync.Mutex
	objects map[string][]byte

	GetError    error
	StatError   error
	RemoveError error
	BucketError error
	Missing     bool // BucketExists returns false

	removed []string
}

var _ objectstore.Client = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{objects: map[string][]byte{}}
}

// Put stores an object directly, bypassing the presign flow.
func (store *Store) Put(key string, data []byte) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.objects[key] = append([]byte(nil), data...)
}

// Removed returns the keys removed so far.
func (store *Store) Removed() []string {
	store.mu.Lock()
	defer store.mu.Unlock()
	return append([]string(nil), store.removed...)
}

// GetObject implements objectstore.Client.
func (store *Store) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.GetError != nil {
		return nil, store.GetError
	}
	data, ok := store.objects[key]
	if !ok {
		return nil, objectstore.ErrNotFound.New("%s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// StatObject implements objectstore.Client.
func (store *Store) StatObject(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.StatError != nil {
		return objectstore.ObjectInfo{}, store.StatError
	}
	data, ok := store.objects[key]
	if !ok {
		return objectstore.ObjectInfo{}, objectstore.ErrNotFound.New("%s", key)
	}
	return objectstore.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         fmt.Sprintf("etag-%d", len(data)),
		LastModified: time.Now(),
	}, nil
}

// RemoveObject implements objectstore.Client.
func (store *Store) RemoveObject(ctx context.Context, key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.RemoveError != nil {
		return store.RemoveError
	}
	delete(store.objects, key)
	store.removed = append(store.removed, key)
	return nil
}

// BucketExists implements objectstore.Client.
func (store *Store) BucketExists(ctx context.Context) (bool, error) {
	if store.BucketError != nil {
		return false, errs.Wrap(store.BucketError)
	}
	return !store.Missing, nil
}

// PresignPut implements objectstore.Client.
func (store *Store) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://teststore.invalid/%s?expires=%d", key, int(expires.Seconds())), nil
}
