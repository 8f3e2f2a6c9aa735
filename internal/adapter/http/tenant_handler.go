package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
	"github.com/chiwei-platform/site-provisioner/internal/service"
)

type TenantHandler struct {
	svc    *service.TenantService
	logger *zap.Logger
}

func NewTenantHandler(svc *service.TenantService, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{svc: svc, logger: logger}
}

// undeployResponse 是下线类操作的响应体。
type undeployResponse struct {
	Subdomain string                  `json:"subdomain"`
	Status    domain.DeploymentStatus `json:"status"`
}

func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTenantRequest
	if !h.decode(w, r, &req) {
		return
	}
	tenant, err := h.svc.CreateTenant(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tenant)
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.svc.ListTenants(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.svc.GetTenant(r.Context(), chi.URLParam(r, "subdomain"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	var display domain.DisplayData
	if !h.decode(w, r, &display) {
		return
	}
	tenant, err := h.svc.UpdateTenant(r.Context(), chi.URLParam(r, "subdomain"), display)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subdomain := chi.URLParam(r, "subdomain")
	warnings, err := h.svc.DeleteTenant(r.Context(), subdomain)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	if len(warnings) > 0 {
		status = http.StatusAccepted
	}
	writeEnvelope(w, status, envelope{
		Data:     map[string]string{"deleted": subdomain},
		Warnings: errorStrings(warnings),
	})
}

func (h *TenantHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.svc.DeployTenant(r.Context(), chi.URLParam(r, "subdomain"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

// Undeploy 全部成功 200，部分成功 202 并附带 warnings，全部失败 502。
func (h *TenantHandler) Undeploy(w http.ResponseWriter, r *http.Request) {
	subdomain := chi.URLParam(r, "subdomain")
	result, err := h.svc.UndeployTenant(r.Context(), subdomain)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	body := envelope{
		Data:     undeployResponse{Subdomain: subdomain, Status: result.Status},
		Warnings: errorStrings(result.Errors),
	}
	switch {
	case result.Failed():
		body.Error = result.Err().Error()
		writeEnvelope(w, http.StatusBadGateway, body)
	case len(result.Errors) > 0:
		writeEnvelope(w, http.StatusAccepted, body)
	default:
		writeEnvelope(w, http.StatusOK, body)
	}
}

func (h *TenantHandler) CheckSubdomain(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CheckSubdomain(r.Context(), chi.URLParam(r, "subdomain"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *TenantHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return false
	}
	return true
}
