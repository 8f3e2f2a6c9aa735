package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrPrecondition  = errors.New("precondition failed")
	ErrLocked        = errors.New("operation in progress")

	ErrTenantNotFound  = fmt.Errorf("tenant %w", ErrNotFound)
	ErrAlreadyDeployed = fmt.Errorf("%w: tenant is already deployed", ErrPrecondition)

	// provider 错误分类，Cloudflare / Coolify / K8s 共用。
	ErrUnauthorized = errors.New("provider unauthorized")
	ErrForbidden    = errors.New("provider forbidden")
	ErrRateLimited  = errors.New("provider rate limited")
	ErrProvider     = errors.New("provider error")
	ErrTransport    = errors.New("provider transport error")

	ErrDNSPhaseFailed     = errors.New("dns phase failed")
	ErrDeployPhaseFailed  = errors.New("deployment phase failed")
	ErrCompensationFailed = errors.New("compensation failed")
)

// ProviderError 携带 provider 返回的原始信息，Unwrap 到对应的分类哨兵错误。
type ProviderError struct {
	Provider   string
	StatusCode int
	Kind       error
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %v (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Kind }

// Phase 标识 saga 中的一个阶段。
type Phase string

const (
	PhaseDNS    Phase = "dns"
	PhaseDeploy Phase = "deployment"
)

// PhaseError 是编排器对外返回的阶段失败。
// Compensation 只是附加诊断信息，errors.Is 不会穿透到它。
type PhaseError struct {
	Phase        Phase
	Err          error
	Compensation error
}

func (e *PhaseError) Error() string {
	msg := fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
	if e.Compensation != nil {
		msg += fmt.Sprintf(" (%v: %v)", ErrCompensationFailed, e.Compensation)
	}
	return msg
}

func (e *PhaseError) Unwrap() error { return e.Err }

func (e *PhaseError) Is(target error) bool {
	switch target {
	case ErrDNSPhaseFailed:
		return e.Phase == PhaseDNS
	case ErrDeployPhaseFailed:
		return e.Phase == PhaseDeploy
	}
	return false
}

// FailedPhases 提取错误列表中失败的阶段，顺序与输入一致。
func FailedPhases(errs []error) []Phase {
	phases := make([]Phase, 0, len(errs))
	for _, err := range errs {
		var pe *PhaseError
		if errors.As(err, &pe) {
			phases = append(phases, pe.Phase)
		}
	}
	return phases
}
