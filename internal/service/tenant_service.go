package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
	"github.com/chiwei-platform/site-provisioner/internal/port"
)

// TenantService 负责租户记录的增删改查，并在编排调用前后加锁、持久化部署标记。
type TenantService struct {
	repo   port.TenantRepository
	locker port.TenantLocker
	orch   *Orchestrator
	dns    port.DNSProvider
	logger *zap.Logger
}

func NewTenantService(
	repo port.TenantRepository,
	locker port.TenantLocker,
	orch *Orchestrator,
	dns port.DNSProvider,
	logger *zap.Logger,
) *TenantService {
	return &TenantService{repo: repo, locker: locker, orch: orch, dns: dns, logger: logger}
}

type CreateTenantRequest struct {
	Subdomain string `json:"subdomain"`
	domain.DisplayData
}

func (s *TenantService) CreateTenant(ctx context.Context, req CreateTenantRequest) (*domain.Tenant, error) {
	if err := domain.ValidateSubdomain(req.Subdomain); err != nil {
		return nil, err
	}
	if err := domain.ValidateDisplay(req.DisplayData); err != nil {
		return nil, err
	}
	now := time.Now()
	tenant := &domain.Tenant{
		ID:        uuid.NewString(),
		Subdomain: req.Subdomain,
		Display:   req.DisplayData,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *TenantService) GetTenant(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	return s.repo.FindBySubdomain(ctx, subdomain)
}

func (s *TenantService) ListTenants(ctx context.Context) ([]*domain.Tenant, error) {
	return s.repo.FindAll(ctx)
}

// UpdateTenant 保存新的展示数据；已部署的租户随后重新部署。
// 重新部署失败时数据已保存，deployed 标记保持不变，错误原样返回。
func (s *TenantService) UpdateTenant(ctx context.Context, subdomain string, display domain.DisplayData) (*domain.Tenant, error) {
	if err := domain.ValidateDisplay(display); err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, lockKey(subdomain))
	if err != nil {
		return nil, err
	}
	defer unlock()

	tenant, err := s.repo.FindBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	tenant.Display = display
	tenant.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, tenant); err != nil {
		return nil, err
	}
	if !tenant.Deployed {
		return tenant, nil
	}
	if err := s.orch.Update(ctx, tenant.Descriptor()); err != nil {
		return nil, err
	}
	return tenant, nil
}

// DeployTenant 执行部署 saga 并持久化结果。已部署时返回 ErrPrecondition。
func (s *TenantService) DeployTenant(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(subdomain))
	if err != nil {
		return nil, err
	}
	defer unlock()

	tenant, err := s.repo.FindBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	status, deployErr := s.orch.Deploy(ctx, tenant.Status(), tenant.Descriptor())
	if err := s.persistStatus(ctx, tenant, status); err != nil {
		return nil, err
	}
	if deployErr != nil {
		return nil, deployErr
	}
	return tenant, nil
}

// UndeployResult 描述一次下线的结果。Errors 非空时 Status 说明哪些资源可能残留。
type UndeployResult struct {
	Tenant *domain.Tenant
	Status domain.DeploymentStatus
	Errors []error
}

// Failed 表示两个阶段都失败，租户仍视为已部署。
func (r *UndeployResult) Failed() bool {
	return r.Status == domain.StatusDeployed
}

// Err 把各阶段错误合并为一个错误，没有错误时返回 nil。
func (r *UndeployResult) Err() error {
	return multierror.Append(nil, r.Errors...).ErrorOrNil()
}

// UndeployTenant 下线租户。下线是幂等的，未部署的租户也会清理残留资源。
// 返回的 error 只表示加锁或存储失败，provider 失败记录在 UndeployResult.Errors 中。
func (s *TenantService) UndeployTenant(ctx context.Context, subdomain string) (*UndeployResult, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(subdomain))
	if err != nil {
		return nil, err
	}
	defer unlock()

	tenant, err := s.repo.FindBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	return s.undeploy(ctx, tenant)
}

func (s *TenantService) undeploy(ctx context.Context, tenant *domain.Tenant) (*UndeployResult, error) {
	status, errs := s.orch.Undeploy(ctx, tenant.Descriptor())
	if err := s.persistStatus(ctx, tenant, status); err != nil {
		return nil, err
	}
	return &UndeployResult{Tenant: tenant, Status: status, Errors: errs}, nil
}

// DeleteTenant 删除租户记录。已部署的租户先下线；下线后仍为 deployed 则拒绝删除。
// 部分下线时继续删除，返回的 warnings 是残留资源的错误。
func (s *TenantService) DeleteTenant(ctx context.Context, subdomain string) ([]error, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(subdomain))
	if err != nil {
		return nil, err
	}
	defer unlock()

	tenant, err := s.repo.FindBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}

	var warnings []error
	if tenant.Deployed {
		result, err := s.undeploy(ctx, tenant)
		if err != nil {
			return nil, err
		}
		if result.Failed() {
			return nil, result.Err()
		}
		warnings = result.Errors
		if len(warnings) > 0 {
			s.logger.Warn("deleting partially undeployed tenant",
				zap.String("subdomain", subdomain),
				zap.Error(result.Err()),
			)
		}
	}
	if err := s.repo.Delete(ctx, subdomain); err != nil {
		return nil, err
	}
	return warnings, nil
}

type SubdomainAvailability struct {
	Subdomain string `json:"subdomain"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

const (
	reasonTaken     = "taken"
	reasonDNSExists = "dns_record_exists"
)

// CheckSubdomain 同时检查租户表和 DNS，二者都空闲才可用。
func (s *TenantService) CheckSubdomain(ctx context.Context, subdomain string) (*SubdomainAvailability, error) {
	if err := domain.ValidateSubdomain(subdomain); err != nil {
		return nil, err
	}
	res := &SubdomainAvailability{Subdomain: subdomain}

	_, err := s.repo.FindBySubdomain(ctx, subdomain)
	switch {
	case err == nil:
		res.Reason = reasonTaken
		return res, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	available, err := s.dns.IsAvailable(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	if !available {
		res.Reason = reasonDNSExists
		return res, nil
	}
	res.Available = true
	return res, nil
}

// persistStatus 只在标记变化时写库。
func (s *TenantService) persistStatus(ctx context.Context, tenant *domain.Tenant, status domain.DeploymentStatus) error {
	deployed := status.Deployed()
	if tenant.Deployed == deployed {
		return nil
	}
	if err := s.repo.SetDeployed(ctx, tenant.Subdomain, deployed); err != nil {
		s.logger.Error("failed to persist deployment flag",
			zap.String("subdomain", tenant.Subdomain),
			zap.Bool("deployed", deployed),
			zap.Error(err),
		)
		return err
	}
	tenant.Deployed = deployed
	return nil
}

func lockKey(subdomain string) string {
	return "tenant:" + subdomain
}
