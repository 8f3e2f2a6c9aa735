package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
	"github.com/chiwei-platform/site-provisioner/internal/port"
	"gorm.io/gorm"
)

var _ port.TenantRepository = (*TenantRepo)(nil)

type TenantRepo struct {
	db *gorm.DB
}

func NewTenantRepo(db *gorm.DB) *TenantRepo {
	return &TenantRepo{db: db}
}

func (r *TenantRepo) Save(ctx context.Context, tenant *domain.Tenant) error {
	m, err := tenantToModel(tenant)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Create(m)
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return domain.ErrAlreadyExists
		}
		return result.Error
	}
	return nil
}

func (r *TenantRepo) FindBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	var m TenantModel
	result := r.db.WithContext(ctx).First(&m, "subdomain = ?", subdomain)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, result.Error
	}
	return modelToTenant(&m)
}

func (r *TenantRepo) FindAll(ctx context.Context) ([]*domain.Tenant, error) {
	var models []TenantModel
	if err := r.db.WithContext(ctx).Order("subdomain").Find(&models).Error; err != nil {
		return nil, err
	}
	tenants := make([]*domain.Tenant, 0, len(models))
	for i := range models {
		t, err := modelToTenant(&models[i])
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, nil
}

// Update 只写展示数据，deployed 标记由 SetDeployed 单独维护。
func (r *TenantRepo) Update(ctx context.Context, tenant *domain.Tenant) error {
	m, err := tenantToModel(tenant)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&TenantModel{}).
		Where("subdomain = ?", tenant.Subdomain).
		Select("name", "description", "links", "customization", "logo_url", "deployment_type", "html_code", "updated_at").
		Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (r *TenantRepo) SetDeployed(ctx context.Context, subdomain string, deployed bool) error {
	result := r.db.WithContext(ctx).Model(&TenantModel{}).
		Where("subdomain = ?", subdomain).
		Updates(map[string]any{"deployed": deployed, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (r *TenantRepo) Delete(ctx context.Context, subdomain string) error {
	return r.db.WithContext(ctx).Delete(&TenantModel{}, "subdomain = ?", subdomain).Error
}

func tenantToModel(t *domain.Tenant) (*TenantModel, error) {
	linksJSON, err := json.Marshal(t.Display.Links)
	if err != nil {
		return nil, err
	}
	customizationJSON, err := json.Marshal(t.Display.Customization)
	if err != nil {
		return nil, err
	}
	return &TenantModel{
		ID:             t.ID,
		Subdomain:      t.Subdomain,
		Name:           t.Display.Name,
		Description:    t.Display.Description,
		Links:          string(linksJSON),
		Customization:  string(customizationJSON),
		LogoURL:        t.Display.LogoURL,
		DeploymentType: string(t.Display.DeploymentType),
		HTMLCode:       t.Display.HTMLCode,
		Deployed:       t.Deployed,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}, nil
}

func modelToTenant(m *TenantModel) (*domain.Tenant, error) {
	var links []domain.Link
	if m.Links != "" {
		if err := json.Unmarshal([]byte(m.Links), &links); err != nil {
			return nil, err
		}
	}
	var customization map[string]any
	if m.Customization != "" {
		if err := json.Unmarshal([]byte(m.Customization), &customization); err != nil {
			return nil, err
		}
	}
	return &domain.Tenant{
		ID:        m.ID,
		Subdomain: m.Subdomain,
		Display: domain.DisplayData{
			Name:           m.Name,
			Description:    m.Description,
			Links:          links,
			Customization:  customization,
			LogoURL:        m.LogoURL,
			DeploymentType: domain.Flavor(m.DeploymentType),
			HTMLCode:       m.HTMLCode,
		},
		Deployed:  m.Deployed,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}
