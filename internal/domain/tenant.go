package domain

import "time"

// Flavor 决定租户站点的渲染方式。
type Flavor string

const (
	FlavorTemplate   Flavor = "template"
	FlavorCustomHTML Flavor = "customHtml"
)

// Link 是站点上展示的外部链接。
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// DisplayData 是租户站点的展示数据，编排器只负责序列化，不解读业务含义。
// HTMLCode 仅在 FlavorCustomHTML 下存在，写入部署环境时单独编码。
type DisplayData struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Links          []Link         `json:"links"`
	Customization  map[string]any `json:"customization"`
	LogoURL        string         `json:"logoUrl"`
	DeploymentType Flavor         `json:"deploymentType"`
	HTMLCode       string         `json:"htmlCode,omitempty"`
}

// Descriptor 是一次编排调用的输入，由调用方按需构造。
type Descriptor struct {
	Subdomain string
	Display   DisplayData
}

// Tenant 是持久化的租户记录。Deployed 是唯一由编排结果驱动的字段。
type Tenant struct {
	ID        string      `json:"id"`
	Subdomain string      `json:"subdomain"`
	Display   DisplayData `json:"display"`
	Deployed  bool        `json:"deployed"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Descriptor 从租户记录构造编排输入。
func (t *Tenant) Descriptor() Descriptor {
	return Descriptor{Subdomain: t.Subdomain, Display: t.Display}
}

// Status 把持久化的布尔标记还原为部署状态。
func (t *Tenant) Status() DeploymentStatus {
	if t.Deployed {
		return StatusDeployed
	}
	return StatusNotDeployed
}

// FQDN 返回租户的完整域名。
func FQDN(subdomain, baseDomain string) string {
	return subdomain + "." + baseDomain
}
