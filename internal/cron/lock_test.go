package cron

import (
	"context"
	"strings"
	"testing"
	"time"
)

type memoryLocker struct {
	values map[string]string
}

func (m *memoryLocker) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLocker) ReleaseLock(_ context.Context, key, owner string) error {
	if m.values[key] == owner {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryLocker) LockKey(scope string, parts ...string) string {
	return "fx:lock:" + strings.Join(append([]string{scope}, parts...), ":")
}

func TestRedisLockSingleOwner(t *testing.T) {
	ctx := context.Background()
	store := &memoryLocker{values: map[string]string{}}
	a, err := NewRedisLock(store, "prod", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	b, _ := NewRedisLock(store, "prod", 0)
	if a.key != "fx:lock:cron-worker:prod" {
		t.Fatalf("unexpected lock key %s", a.key)
	}

	if ok, err := a.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire should succeed: ok=%v err=%v", ok, err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatalf("second replica must not acquire a held lock")
	}
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release without ownership: %v", err)
	}
	if len(store.values) != 1 {
		t.Fatalf("non-owner release must keep the lock")
	}
	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatalf("lock should be free after owner release")
	}
}

func TestNewRedisLockDefaults(t *testing.T) {
	if _, err := NewRedisLock(nil, "dev", 0); err == nil {
		t.Fatalf("expected error without client")
	}
	lock, err := NewRedisLock(&memoryLocker{values: map[string]string{}}, "", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if lock.ttl != defaultLockTTL || !strings.HasSuffix(lock.key, ":local") {
		t.Fatalf("unexpected defaults ttl=%v key=%s", lock.ttl, lock.key)
	}
}
