package port

import (
	"context"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
)

// DNSProvider 管理租户子域名的 A 记录。name 为子域名 label，完整域名由实现拼接。
type DNSProvider interface {
	// IsAvailable 在没有任何匹配记录时返回 true，多条匹配同样视为不可用。
	IsAvailable(ctx context.Context, name string) (bool, error)
	// Create 在 provider 端不幂等，已存在时返回 domain.ErrAlreadyExists。
	Create(ctx context.Context, name, target string) error
	// Delete 删除所有匹配记录，没有记录时直接返回 nil。
	Delete(ctx context.Context, name string) error
}

// AppPlatform 管理托管平台上的应用。按名称查找是唯一的幂等手段。
type AppPlatform interface {
	// FindByName 精确匹配应用名，不存在时返回 (nil, nil)。
	FindByName(ctx context.Context, name string) (*domain.AppHandle, error)
	Create(ctx context.Context, spec domain.AppSpec) (*domain.AppHandle, error)
	// SetEnvironment 整体替换环境变量，调用方必须传入全集。
	SetEnvironment(ctx context.Context, app *domain.AppHandle, vars []domain.EnvVar) error
	// TriggerDeploy 平台接受部署请求即返回，不等待部署完成。
	TriggerDeploy(ctx context.Context, app *domain.AppHandle) error
	// Delete 在应用不存在时返回 domain.ErrNotFound。
	Delete(ctx context.Context, app *domain.AppHandle) error
}
