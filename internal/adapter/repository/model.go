package repository

import "time"

// TenantModel 是 Tenant 的数据库持久化模型。
type TenantModel struct {
	ID             string `gorm:"primaryKey"`
	Subdomain      string `gorm:"uniqueIndex;size:63"`
	Name           string
	Description    string
	Links          string // JSON 序列化的 []domain.Link
	Customization  string // JSON 序列化的 map[string]any
	LogoURL        string
	DeploymentType string
	HTMLCode       string `gorm:"type:text"`
	Deployed       bool   `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TenantModel) TableName() string { return "tenants" }
