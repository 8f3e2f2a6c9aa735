package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
	"github.com/chiwei-platform/site-provisioner/internal/metrics"
	"github.com/chiwei-platform/site-provisioner/internal/port"
)

const (
	opDeploy   = "deploy"
	opUpdate   = "update"
	opUndeploy = "undeploy"
)

type OrchestratorConfig struct {
	BaseDomain    string // 租户域名为 {subdomain}.{BaseDomain}
	TargetAddress string // A 记录指向的地址
}

// Orchestrator 驱动 DNS 与托管平台完成租户的部署/更新/下线。
// 它不读写租户存储，也不加锁：输入是 Descriptor，输出是部署状态，由调用方持久化。
// 每次调用都重新查询 provider 状态，按名称查找即幂等保证。
type Orchestrator struct {
	dns      port.DNSProvider
	platform port.AppPlatform
	cfg      OrchestratorConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewOrchestrator(
	dns port.DNSProvider,
	platform port.AppPlatform,
	cfg OrchestratorConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		dns:      dns,
		platform: platform,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// Deploy 依次执行 DNS 阶段和部署阶段。
// 只有两个阶段都成功才返回 StatusDeployed；部署阶段失败时尽力删除 DNS 记录，
// 补偿失败只记录日志并附加在返回的 PhaseError 上。
func (o *Orchestrator) Deploy(ctx context.Context, current domain.DeploymentStatus, d domain.Descriptor) (domain.DeploymentStatus, error) {
	start := time.Now()
	log := o.logger.With(zap.String("operation", opDeploy), zap.String("subdomain", d.Subdomain))

	if current.Deployed() {
		log.Warn("deploy rejected, tenant already deployed")
		o.metrics.ObserveOperation(opDeploy, metrics.ResultRejected, time.Since(start))
		return current, domain.ErrAlreadyDeployed
	}

	if err := o.provision(ctx, log, d, true); err != nil {
		o.metrics.ObserveOperation(opDeploy, metrics.ResultFailure, time.Since(start))
		return domain.StatusNotDeployed, err
	}

	log.Info("tenant deployed", zap.Duration("elapsed", time.Since(start)))
	o.metrics.ObserveOperation(opDeploy, metrics.ResultSuccess, time.Since(start))
	return domain.StatusDeployed, nil
}

// Update 用当前展示数据重建完整环境变量并重新部署，不涉及 DNS。
// 应用不存在时退化为 Deploy 的创建路径（含 DNS 阶段），保证应用可路由。
// 该路径失败时不删除 DNS 记录：调用方保留原有的 deployed 标记，记录必须随之保留。
func (o *Orchestrator) Update(ctx context.Context, d domain.Descriptor) error {
	start := time.Now()
	log := o.logger.With(zap.String("operation", opUpdate), zap.String("subdomain", d.Subdomain))

	err := o.update(ctx, log, d)
	if err != nil {
		o.metrics.ObserveOperation(opUpdate, metrics.ResultFailure, time.Since(start))
		return err
	}
	log.Info("tenant redeployed", zap.Duration("elapsed", time.Since(start)))
	o.metrics.ObserveOperation(opUpdate, metrics.ResultSuccess, time.Since(start))
	return nil
}

func (o *Orchestrator) update(ctx context.Context, log *zap.Logger, d domain.Descriptor) error {
	app, err := o.platform.FindByName(ctx, d.Subdomain)
	if err != nil {
		return &domain.PhaseError{Phase: domain.PhaseDeploy, Err: err}
	}
	if app == nil {
		log.Warn("application missing on update, falling back to create path")
		return o.provision(ctx, log, d, false)
	}
	if err := o.configureAndDeploy(ctx, d, app); err != nil {
		return &domain.PhaseError{Phase: domain.PhaseDeploy, Err: err}
	}
	return nil
}

// Undeploy 并发删除 DNS 记录和应用，两个阶段互不阻塞，错误分别返回。
//   - 都成功：StatusNotDeployed, nil
//   - 一个失败：StatusPartiallyUndeployed，附带失败阶段的错误
//   - 都失败：StatusDeployed，附带两个错误
func (o *Orchestrator) Undeploy(ctx context.Context, d domain.Descriptor) (domain.DeploymentStatus, []error) {
	start := time.Now()
	log := o.logger.With(zap.String("operation", opUndeploy), zap.String("subdomain", d.Subdomain))

	var dnsErr, appErr error
	var g errgroup.Group
	g.Go(func() error {
		dnsErr = o.dns.Delete(ctx, d.Subdomain)
		return nil
	})
	g.Go(func() error {
		appErr = o.removeApp(ctx, log, d.Subdomain)
		return nil
	})
	_ = g.Wait()

	var errs []error
	if dnsErr != nil {
		log.Error("dns removal failed", zap.Error(dnsErr))
		errs = append(errs, &domain.PhaseError{Phase: domain.PhaseDNS, Err: dnsErr})
	}
	if appErr != nil {
		log.Error("application removal failed", zap.Error(appErr))
		errs = append(errs, &domain.PhaseError{Phase: domain.PhaseDeploy, Err: appErr})
	}

	switch len(errs) {
	case 0:
		log.Info("tenant undeployed", zap.Duration("elapsed", time.Since(start)))
		o.metrics.ObserveOperation(opUndeploy, metrics.ResultSuccess, time.Since(start))
		return domain.StatusNotDeployed, nil
	case 1:
		log.Warn("tenant partially undeployed", zap.Any("failed_phases", domain.FailedPhases(errs)))
		o.metrics.ObserveOperation(opUndeploy, metrics.ResultPartial, time.Since(start))
		return domain.StatusPartiallyUndeployed, errs
	default:
		o.metrics.ObserveOperation(opUndeploy, metrics.ResultFailure, time.Since(start))
		return domain.StatusDeployed, errs
	}
}

// provision 是 Deploy 与 Update 回退路径共用的 DNS 阶段 + 部署阶段。
// compensate 为 true 时部署阶段失败会删除 DNS 记录。
func (o *Orchestrator) provision(ctx context.Context, log *zap.Logger, d domain.Descriptor, compensate bool) error {
	if err := o.ensureDNS(ctx, log, d.Subdomain); err != nil {
		log.Error("dns phase failed", zap.Error(err))
		return &domain.PhaseError{Phase: domain.PhaseDNS, Err: err}
	}

	err := ctx.Err()
	if err == nil {
		err = o.ensureApp(ctx, log, d)
	}
	if err == nil {
		return nil
	}
	if !compensate {
		log.Error("deployment phase failed, keeping dns record", zap.Error(err))
		return &domain.PhaseError{Phase: domain.PhaseDeploy, Err: err}
	}

	log.Error("deployment phase failed, compensating dns", zap.Error(err))
	// 即使调用方已取消，补偿也要执行
	cerr := o.dns.Delete(context.WithoutCancel(ctx), d.Subdomain)
	o.metrics.ObserveCompensation(cerr)
	if cerr != nil {
		log.Error("compensation failed", zap.Error(cerr))
	}
	return &domain.PhaseError{Phase: domain.PhaseDeploy, Err: err, Compensation: cerr}
}

// ensureDNS 确保 A 记录存在。记录已存在视为上一次部分成功的结果，继续执行。
func (o *Orchestrator) ensureDNS(ctx context.Context, log *zap.Logger, subdomain string) error {
	available, err := o.dns.IsAvailable(ctx, subdomain)
	if err != nil {
		return err
	}
	if !available {
		log.Info("dns record already present, continuing")
		return nil
	}
	if err := o.dns.Create(ctx, subdomain, o.cfg.TargetAddress); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			log.Info("dns record created concurrently, continuing")
			return nil
		}
		return err
	}
	return nil
}

// ensureApp 查找或创建应用，然后写入环境变量并触发部署。
func (o *Orchestrator) ensureApp(ctx context.Context, log *zap.Logger, d domain.Descriptor) error {
	app, err := o.platform.FindByName(ctx, d.Subdomain)
	if err != nil {
		return err
	}
	if app != nil {
		log.Info("reusing existing application", zap.String("uuid", app.UUID))
	} else {
		app, err = o.platform.Create(ctx, domain.AppSpec{
			Name:        d.Subdomain,
			Domain:      domain.FQDN(d.Subdomain, o.cfg.BaseDomain),
			Description: d.Display.Description,
		})
		if err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.configureAndDeploy(ctx, d, app)
}

func (o *Orchestrator) configureAndDeploy(ctx context.Context, d domain.Descriptor, app *domain.AppHandle) error {
	vars, err := domain.BuildEnvironment(d.Display)
	if err != nil {
		return err
	}
	if err := o.platform.SetEnvironment(ctx, app, vars); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.platform.TriggerDeploy(ctx, app)
}

// removeApp 删除应用，不存在视为成功。
func (o *Orchestrator) removeApp(ctx context.Context, log *zap.Logger, subdomain string) error {
	app, err := o.platform.FindByName(ctx, subdomain)
	if err != nil {
		return err
	}
	if app == nil {
		log.Debug("application already absent")
		return nil
	}
	if err := o.platform.Delete(ctx, app); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}
