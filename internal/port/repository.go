package port

import (
	"context"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
)

type TenantRepository interface {
	Save(ctx context.Context, tenant *domain.Tenant) error
	FindBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
	FindAll(ctx context.Context) ([]*domain.Tenant, error)
	Update(ctx context.Context, tenant *domain.Tenant) error
	SetDeployed(ctx context.Context, subdomain string, deployed bool) error
	Delete(ctx context.Context, subdomain string) error
}

// TenantLocker 为同一租户的编排调用提供互斥，编排器本身不加锁。
type TenantLocker interface {
	// Lock 获取锁失败时返回 domain.ErrLocked。
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
