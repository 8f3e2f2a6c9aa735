package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
)

// --- in-memory provider fakes ---

type fakeDNS struct {
	mu      sync.Mutex
	records map[string]int // name -> 匹配记录数

	availableErr error
	createErr    error
	deleteErr    error

	creates int
	deletes int
	calls   int
}

func newFakeDNS(existing ...string) *fakeDNS {
	d := &fakeDNS{records: map[string]int{}}
	for _, name := range existing {
		d.records[name]++
	}
	return d
}

func (d *fakeDNS) has(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.records[name] > 0
}

func (d *fakeDNS) IsAvailable(_ context.Context, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.availableErr != nil {
		return false, d.availableErr
	}
	return d.records[name] == 0, nil
}

func (d *fakeDNS) Create(_ context.Context, name, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.createErr != nil {
		return d.createErr
	}
	d.creates++
	d.records[name]++
	return nil
}

func (d *fakeDNS) Delete(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.deleteErr != nil {
		return d.deleteErr
	}
	if d.records[name] > 0 {
		d.deletes++
	}
	delete(d.records, name)
	return nil
}

type fakePlatform struct {
	mu     sync.Mutex
	apps   map[string]string // name -> uuid
	envs   map[string][]domain.EnvVar
	nextID int

	findErr    error
	createErr  error
	setEnvErr  error
	triggerErr error
	deleteErr  error

	creates  int
	triggers int
	deletes  int
	calls    int
}

func newFakePlatform(existing ...string) *fakePlatform {
	p := &fakePlatform{apps: map[string]string{}, envs: map[string][]domain.EnvVar{}}
	for _, name := range existing {
		p.nextID++
		p.apps[name] = fmt.Sprintf("uuid-%d", p.nextID)
	}
	return p
}

func (p *fakePlatform) has(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.apps[name]
	return ok
}

func (p *fakePlatform) env(name string) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.EnvMap(p.envs[name])
}

func (p *fakePlatform) FindByName(_ context.Context, name string) (*domain.AppHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.findErr != nil {
		return nil, p.findErr
	}
	if uuid, ok := p.apps[name]; ok {
		return &domain.AppHandle{UUID: uuid, Name: name}, nil
	}
	return nil, nil
}

func (p *fakePlatform) Create(_ context.Context, spec domain.AppSpec) (*domain.AppHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.creates++
	p.nextID++
	uuid := fmt.Sprintf("uuid-%d", p.nextID)
	p.apps[spec.Name] = uuid
	return &domain.AppHandle{UUID: uuid, Name: spec.Name}, nil
}

func (p *fakePlatform) SetEnvironment(_ context.Context, app *domain.AppHandle, vars []domain.EnvVar) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.setEnvErr != nil {
		return p.setEnvErr
	}
	p.envs[app.Name] = vars
	return nil
}

func (p *fakePlatform) TriggerDeploy(_ context.Context, _ *domain.AppHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.triggerErr != nil {
		return p.triggerErr
	}
	p.triggers++
	return nil
}

func (p *fakePlatform) Delete(_ context.Context, app *domain.AppHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.deleteErr != nil {
		return p.deleteErr
	}
	if _, ok := p.apps[app.Name]; !ok {
		return domain.ErrNotFound
	}
	p.deletes++
	delete(p.apps, app.Name)
	delete(p.envs, app.Name)
	return nil
}

func providerErr(status int, kind error, msg string) error {
	return &domain.ProviderError{Provider: "fake", StatusCode: status, Kind: kind, Message: msg}
}

// --- tenant store fakes ---

type memTenantRepo struct {
	mu      sync.Mutex
	tenants map[string]domain.Tenant

	setDeployedErr error
}

func newMemTenantRepo(tenants ...*domain.Tenant) *memTenantRepo {
	r := &memTenantRepo{tenants: map[string]domain.Tenant{}}
	for _, t := range tenants {
		r.tenants[t.Subdomain] = *t
	}
	return r
}

func (r *memTenantRepo) get(subdomain string) (domain.Tenant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[subdomain]
	return t, ok
}

func (r *memTenantRepo) Save(_ context.Context, t *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenants[t.Subdomain]; ok {
		return domain.ErrAlreadyExists
	}
	r.tenants[t.Subdomain] = *t
	return nil
}

func (r *memTenantRepo) FindBySubdomain(_ context.Context, subdomain string) (*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[subdomain]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	return &t, nil
}

func (r *memTenantRepo) FindAll(_ context.Context) ([]*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		t := t
		out = append(out, &t)
	}
	return out, nil
}

func (r *memTenantRepo) Update(_ context.Context, t *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenants[t.Subdomain]; !ok {
		return domain.ErrTenantNotFound
	}
	r.tenants[t.Subdomain] = *t
	return nil
}

func (r *memTenantRepo) SetDeployed(_ context.Context, subdomain string, deployed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setDeployedErr != nil {
		return r.setDeployedErr
	}
	t, ok := r.tenants[subdomain]
	if !ok {
		return domain.ErrTenantNotFound
	}
	t.Deployed = deployed
	r.tenants[subdomain] = t
	return nil
}

func (r *memTenantRepo) Delete(_ context.Context, subdomain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tenants, subdomain)
	return nil
}

type stubLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	locks  int
	always error
}

func newStubLocker() *stubLocker {
	return &stubLocker{held: map[string]bool{}}
}

func (l *stubLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.always != nil {
		return nil, l.always
	}
	if l.held[key] {
		return nil, domain.ErrLocked
	}
	l.held[key] = true
	l.locks++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}
