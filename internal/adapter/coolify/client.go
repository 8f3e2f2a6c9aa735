package coolify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/chiwei-platform/site-provisioner/internal/adapter/provider"
	"github.com/chiwei-platform/site-provisioner/internal/domain"
	"github.com/chiwei-platform/site-provisioner/internal/port"
)

var _ port.AppPlatform = (*Client)(nil)

const providerName = "coolify"

type Config struct {
	BaseURL  string // 含 /api/v1
	APIToken string
	Timeout  time.Duration
	Template AppTemplate
}

// Client 通过 Coolify API 管理租户应用。
type Client struct {
	http     *resty.Client
	template AppTemplate
	logger   *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		http:     provider.NewRestClient(cfg.BaseURL, cfg.APIToken, cfg.Timeout),
		template: cfg.Template,
		logger:   logger.With(zap.String("provider", providerName)),
	}
}

type application struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type createApplicationRequest struct {
	ProjectUUID            string `json:"project_uuid"`
	ServerUUID             string `json:"server_uuid"`
	EnvironmentName        string `json:"environment_name"`
	GitRepository          string `json:"git_repository"`
	GitBranch              string `json:"git_branch"`
	BuildPack              string `json:"build_pack"`
	PortsExposes           string `json:"ports_exposes"`
	Name                   string `json:"name"`
	Description            string `json:"description"`
	Domains                string `json:"domains"`
	InstantDeploy          bool   `json:"instant_deploy"`
	HealthCheckEnabled     bool   `json:"health_check_enabled"`
	HealthCheckPath        string `json:"health_check_path"`
	HealthCheckPort        string `json:"health_check_port"`
	HealthCheckScheme      string `json:"health_check_scheme"`
	HealthCheckInterval    int    `json:"health_check_interval"`
	HealthCheckTimeout     int    `json:"health_check_timeout"`
	HealthCheckRetries     int    `json:"health_check_retries"`
	HealthCheckStartPeriod int    `json:"health_check_start_period"`
}

type bulkEnvRequest struct {
	Data []domain.EnvVar `json:"data"`
}

// FindByName 拉取全部应用并做大小写敏感的精确匹配。
func (c *Client) FindByName(ctx context.Context, name string) (*domain.AppHandle, error) {
	var apps []application
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/applications")
	if err := provider.CheckResponse(providerName, resp, err); err != nil {
		return nil, err
	}
	if err := provider.DecodeJSON(providerName, resp, &apps); err != nil {
		return nil, err
	}
	for _, a := range apps {
		if a.Name == name {
			return &domain.AppHandle{UUID: a.UUID, Name: a.Name}, nil
		}
	}
	return nil, nil
}

func (c *Client) Create(ctx context.Context, spec domain.AppSpec) (*domain.AppHandle, error) {
	if err := c.template.Validate(); err != nil {
		return nil, err
	}
	t := c.template
	body := createApplicationRequest{
		ProjectUUID:            t.ProjectUUID,
		ServerUUID:             t.ServerUUID,
		EnvironmentName:        t.EnvironmentName,
		GitRepository:          t.GitRepository,
		GitBranch:              t.GitBranch,
		BuildPack:              t.BuildPack,
		PortsExposes:           t.PortsExposes,
		Name:                   spec.Name,
		Description:            spec.Description,
		Domains:                "https://" + spec.Domain,
		InstantDeploy:          false,
		HealthCheckEnabled:     true,
		HealthCheckPath:        t.HealthCheck.Path,
		HealthCheckPort:        strconv.Itoa(t.HealthCheck.Port),
		HealthCheckScheme:      t.HealthCheck.Scheme,
		HealthCheckInterval:    t.HealthCheck.Interval,
		HealthCheckTimeout:     t.HealthCheck.Timeout,
		HealthCheckRetries:     t.HealthCheck.Retries,
		HealthCheckStartPeriod: t.HealthCheck.StartPeriod,
	}

	var created application
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/applications/public")
	if err := provider.CheckResponse(providerName, resp, err); err != nil {
		return nil, err
	}
	if err := provider.DecodeJSON(providerName, resp, &created); err != nil {
		return nil, err
	}
	if created.UUID == "" {
		return nil, &domain.ProviderError{Provider: providerName, StatusCode: resp.StatusCode(), Kind: domain.ErrProvider, Message: "create application returned no uuid"}
	}
	c.logger.Info("application created", zap.String("name", spec.Name), zap.String("uuid", created.UUID))
	return &domain.AppHandle{UUID: created.UUID, Name: spec.Name}, nil
}

func (c *Client) SetEnvironment(ctx context.Context, app *domain.AppHandle, vars []domain.EnvVar) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("uuid", app.UUID).
		SetBody(bulkEnvRequest{Data: vars}).
		Patch("/applications/{uuid}/envs/bulk")
	if err := provider.CheckResponse(providerName, resp, err); err != nil {
		return fmt.Errorf("set environment for %s: %w", app.Name, err)
	}
	c.logger.Debug("environment replaced", zap.String("uuid", app.UUID), zap.Int("vars", len(vars)))
	return nil
}

func (c *Client) TriggerDeploy(ctx context.Context, app *domain.AppHandle) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("uuid", app.UUID).
		Get("/deploy")
	if err := provider.CheckResponse(providerName, resp, err); err != nil {
		return fmt.Errorf("trigger deploy for %s: %w", app.Name, err)
	}
	c.logger.Info("deploy triggered", zap.String("name", app.Name), zap.String("uuid", app.UUID))
	return nil
}

func (c *Client) Delete(ctx context.Context, app *domain.AppHandle) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("uuid", app.UUID).
		Delete("/applications/{uuid}")
	if err := provider.CheckResponse(providerName, resp, err); err != nil {
		return fmt.Errorf("delete application %s: %w", app.Name, err)
	}
	c.logger.Info("application deleted", zap.String("name", app.Name), zap.String("uuid", app.UUID))
	return nil
}
