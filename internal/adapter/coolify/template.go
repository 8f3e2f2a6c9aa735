package coolify

import (
	"fmt"
	"strings"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
)

// AppTemplate 是与租户无关的静态应用配置，创建应用前必须完整。
type AppTemplate struct {
	ProjectUUID     string
	ServerUUID      string
	EnvironmentName string
	GitRepository   string
	GitBranch       string
	BuildPack       string
	PortsExposes    string
	HealthCheck     domain.HealthCheck
}

// Validate 在发起任何网络请求前检查静态配置，缺失属于前置条件失败而不是 provider 错误。
func (t AppTemplate) Validate() error {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"project_uuid", t.ProjectUUID},
		{"server_uuid", t.ServerUUID},
		{"environment_name", t.EnvironmentName},
		{"git_repository", t.GitRepository},
		{"git_branch", t.GitBranch},
		{"build_pack", t.BuildPack},
		{"ports_exposes", t.PortsExposes},
		{"health_check_path", t.HealthCheck.Path},
		{"health_check_scheme", t.HealthCheck.Scheme},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	positive := []struct {
		name  string
		value int
	}{
		{"health_check_port", t.HealthCheck.Port},
		{"health_check_interval", t.HealthCheck.Interval},
		{"health_check_timeout", t.HealthCheck.Timeout},
		{"health_check_retries", t.HealthCheck.Retries},
	}
	for _, p := range positive {
		if p.value <= 0 {
			missing = append(missing, p.name)
		}
	}
	if t.HealthCheck.StartPeriod < 0 {
		missing = append(missing, "health_check_start_period")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: coolify application template missing %s", domain.ErrPrecondition, strings.Join(missing, ", "))
	}
	return nil
}
