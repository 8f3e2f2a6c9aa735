package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/chiwei-platform/site-provisioner/internal/adapter/cloudflare"
	"github.com/chiwei-platform/site-provisioner/internal/adapter/coolify"
	"github.com/chiwei-platform/site-provisioner/internal/adapter/kubernetes"
	"github.com/chiwei-platform/site-provisioner/internal/adapter/lock"
	"github.com/chiwei-platform/site-provisioner/internal/adapter/repository"
	"github.com/chiwei-platform/site-provisioner/internal/config"
	"github.com/chiwei-platform/site-provisioner/internal/metrics"
	"github.com/chiwei-platform/site-provisioner/internal/port"
	"github.com/chiwei-platform/site-provisioner/internal/service"
)

const lockPrefix = "site-provisioner:lock:"

type app struct {
	tenants  *service.TenantService
	registry *prometheus.Registry
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// buildApp 按配置构造 provider 客户端和服务层，所有客户端只在这里创建一次。
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 静态配置有误时不连接任何外部依赖
	platform, err := newPlatform(cfg, logger)
	if err != nil {
		return nil, err
	}

	// 数据库
	db, err := repository.OpenDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	locker, err := newLocker(ctx, cfg, logger, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	dns := cloudflare.NewClient(cloudflare.Config{
		BaseURL:    cfg.Cloudflare.BaseURL,
		APIToken:   cfg.Cloudflare.APIToken,
		ZoneID:     cfg.Cloudflare.ZoneID,
		BaseDomain: cfg.BaseDomain,
		Proxied:    cfg.Cloudflare.Proxied,
		Timeout:    cfg.ProviderTimeout,
	}, logger.Named("cloudflare"))

	orch := service.NewOrchestrator(dns, platform, service.OrchestratorConfig{
		BaseDomain:    cfg.BaseDomain,
		TargetAddress: cfg.TargetAddress,
	}, logger.Named("orchestrator"), metrics.New(a.registry))

	a.tenants = service.NewTenantService(repository.NewTenantRepo(db), locker, orch, dns, logger.Named("tenants"))
	return a, nil
}

func newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger, a *app) (port.TenantLocker, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, using in-process tenant lock")
		return lock.NewMemoryLocker(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	a.closers = append(a.closers, client.Close)
	return lock.NewRedisLocker(client, lockPrefix, cfg.LockTTL, logger.Named("lock")), nil
}

func newPlatform(cfg *config.Config, logger *zap.Logger) (port.AppPlatform, error) {
	switch cfg.PlatformProvider {
	case config.PlatformKubernetes:
		cs, err := kubernetes.NewClientset(cfg.Kubernetes.KubeconfigPath, cfg.ProviderTimeout)
		if err != nil {
			return nil, fmt.Errorf("k8s client: %w", err)
		}
		return kubernetes.NewK8sPlatform(cs, kubernetes.PlatformConfig{
			Namespace:   cfg.Kubernetes.DeployNamespace,
			Image:       cfg.Kubernetes.Image,
			Port:        cfg.Kubernetes.Port,
			HealthCheck: cfg.HealthCheck,
		}, logger.Named("kubernetes")), nil
	default:
		tmpl := coolify.AppTemplate{
			ProjectUUID:     cfg.Coolify.ProjectUUID,
			ServerUUID:      cfg.Coolify.ServerUUID,
			EnvironmentName: cfg.Coolify.EnvironmentName,
			GitRepository:   cfg.Coolify.GitRepository,
			GitBranch:       cfg.Coolify.GitBranch,
			BuildPack:       cfg.Coolify.BuildPack,
			PortsExposes:    cfg.Coolify.PortsExposes,
			HealthCheck:     cfg.HealthCheck,
		}
		if err := tmpl.Validate(); err != nil {
			return nil, err
		}
		return coolify.NewClient(coolify.Config{
			BaseURL:  cfg.Coolify.BaseURL,
			APIToken: cfg.Coolify.APIToken,
			Timeout:  cfg.ProviderTimeout,
			Template: tmpl,
		}, logger.Named("coolify")), nil
	}
}
