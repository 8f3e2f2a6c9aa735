package lock

import (
	"context"
	"sync"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
	"github.com/chiwei-platform/site-provisioner/internal/port"
)

var _ port.TenantLocker = (*MemoryLocker)(nil)

// MemoryLocker 是单实例部署时的进程内锁，未配置 Redis 时使用。
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, domain.ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
