// Package storagetest provides an in-memory storage.Storage for tests.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/feichai0017/document-intake/pkg/storage"
)

var _ storage.Storage = (*Memory)(nil)

// ErrNoSuchKey is returned by Get for unknown keys.
var ErrNoSuchKey = errors.New("no such key")

type Object struct {
	Data        []byte
	ContentType string
}

// Memory keeps objects in a map. Set the *Err fields to inject failures.
type Memory struct {
	mu         sync.Mutex
	objects    map[string]Object
	ensured    int
	PutErr     error
	PresignErr error
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func (m *Memory) EnsureBucket(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured++
	return nil
}

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := m.EnsureBucket(ctx); err != nil {
		return err
	}
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch for %s: declared %d, read %d", key, size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Data: data, ContentType: contentType}
	return nil
}

func (m *Memory) PresignedGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	if m.PresignErr != nil {
		return "", m.PresignErr
	}
	return fmt.Sprintf("http://storage.test/bucket/%s?X-Amz-Expires=%d", key, int(ttl.Seconds())), nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNoSuchKey)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Object returns the stored object under key.
func (m *Memory) Object(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys lists every stored key.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// EnsureCalls counts EnsureBucket invocations.
func (m *Memory) EnsureCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensured
}
