package kubernetes

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
	"github.com/chiwei-platform/site-provisioner/internal/port"
)

var _ port.AppPlatform = (*K8sPlatform)(nil)

const (
	defaultNamespace = "default"
	providerName     = "kubernetes"

	labelManagedBy        = "app.kubernetes.io/managed-by"
	labelName             = "app.kubernetes.io/name"
	managedByValue        = "site-provisioner"
	annotationDomain      = "site-provisioner/domain"
	annotationRestarted   = "site-provisioner/restartedAt"
	annotationDescription = "site-provisioner/description"
)

type PlatformConfig struct {
	Namespace   string
	Image       string
	Port        int
	HealthCheck domain.HealthCheck
}

// K8sPlatform 把租户应用映射为 Deployment + Service + ConfigMap。
// 环境变量保存在 {name}-env ConfigMap 中，Deployment 通过 envFrom 引用。
type K8sPlatform struct {
	client    kubernetes.Interface
	namespace string
	image     string
	port      int
	health    domain.HealthCheck
	logger    *zap.Logger
	now       func() time.Time
}

func NewK8sPlatform(client kubernetes.Interface, cfg PlatformConfig, logger *zap.Logger) *K8sPlatform {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	return &K8sPlatform{
		client:    client,
		namespace: cfg.Namespace,
		image:     cfg.Image,
		port:      cfg.Port,
		health:    cfg.HealthCheck,
		logger:    logger.With(zap.String("provider", providerName)),
		now:       time.Now,
	}
}

func envConfigMapName(app string) string {
	return app + "-env"
}

// FindByName 只在本服务管理的 Deployment 中做精确匹配。
func (p *K8sPlatform) FindByName(ctx context.Context, name string) (*domain.AppHandle, error) {
	list, err := p.client.AppsV1().Deployments(p.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelManagedBy + "=" + managedByValue,
	})
	if err != nil {
		return nil, mapError(err)
	}
	for i := range list.Items {
		if list.Items[i].Name == name {
			return handleFor(&list.Items[i]), nil
		}
	}
	return nil, nil
}

func (p *K8sPlatform) Create(ctx context.Context, spec domain.AppSpec) (*domain.AppHandle, error) {
	if p.image == "" || p.port <= 0 {
		return nil, fmt.Errorf("%w: kubernetes platform requires image and port", domain.ErrPrecondition)
	}
	if err := p.applyConfigMap(ctx, spec.Name, map[string]string{}); err != nil {
		return nil, fmt.Errorf("apply configmap: %w", err)
	}
	deploy, err := p.applyDeployment(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("apply deployment: %w", err)
	}
	if err := p.applyService(ctx, spec.Name); err != nil {
		return nil, fmt.Errorf("apply service: %w", err)
	}
	p.logger.Info("application created", zap.String("name", spec.Name), zap.String("namespace", p.namespace))
	return handleFor(deploy), nil
}

// SetEnvironment 整体替换 ConfigMap 的 data。
func (p *K8sPlatform) SetEnvironment(ctx context.Context, app *domain.AppHandle, vars []domain.EnvVar) error {
	if err := p.applyConfigMap(ctx, app.Name, domain.EnvMap(vars)); err != nil {
		return fmt.Errorf("set environment for %s: %w", app.Name, err)
	}
	return nil
}

// TriggerDeploy 通过更新 Pod 模板注解触发滚动重启，不等待 rollout 完成。
func (p *K8sPlatform) TriggerDeploy(ctx context.Context, app *domain.AppHandle) error {
	patch := fmt.Sprintf(`{"spec":{"template":{"metadata":{"annotations":{%q:%q}}}}}`,
		annotationRestarted, p.now().UTC().Format(time.RFC3339))
	_, err := p.client.AppsV1().Deployments(p.namespace).Patch(ctx, app.Name, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("trigger deploy for %s: %w", app.Name, mapError(err))
	}
	p.logger.Info("deploy triggered", zap.String("name", app.Name))
	return nil
}

// Delete 在 Deployment 不存在时返回 domain.ErrNotFound；Service 和 ConfigMap 缺失不算错误。
func (p *K8sPlatform) Delete(ctx context.Context, app *domain.AppHandle) error {
	name := app.Name
	if err := p.client.AppsV1().Deployments(p.namespace).Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return fmt.Errorf("delete deployment %s: %w", name, mapError(err))
	}

	var result *multierror.Error
	if err := p.client.CoreV1().Services(p.namespace).Delete(ctx, name, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		result = multierror.Append(result, fmt.Errorf("delete service %s: %w", name, mapError(err)))
	}
	cm := envConfigMapName(name)
	if err := p.client.CoreV1().ConfigMaps(p.namespace).Delete(ctx, cm, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		result = multierror.Append(result, fmt.Errorf("delete configmap %s: %w", cm, mapError(err)))
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	p.logger.Info("application deleted", zap.String("name", name))
	return nil
}

func (p *K8sPlatform) labels(name string) map[string]string {
	return map[string]string{
		labelManagedBy: managedByValue,
		labelName:      name,
	}
}

func (p *K8sPlatform) applyConfigMap(ctx context.Context, name string, data map[string]string) error {
	cmName := envConfigMapName(name)
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      cmName,
			Namespace: p.namespace,
			Labels:    p.labels(name),
		},
		Data: data,
	}

	existing, err := p.client.CoreV1().ConfigMaps(p.namespace).Get(ctx, cmName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err = p.client.CoreV1().ConfigMaps(p.namespace).Create(ctx, cm, metav1.CreateOptions{})
		return mapError(err)
	}
	if err != nil {
		return mapError(err)
	}
	existing.Data = data
	_, err = p.client.CoreV1().ConfigMaps(p.namespace).Update(ctx, existing, metav1.UpdateOptions{})
	return mapError(err)
}

func (p *K8sPlatform) applyDeployment(ctx context.Context, spec domain.AppSpec) (*appsv1.Deployment, error) {
	labels := p.labels(spec.Name)
	replicas := int32(1)
	revisionHistoryLimit := int32(2)

	deploy := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: p.namespace,
			Labels:    labels,
			Annotations: map[string]string{
				annotationDomain:      spec.Domain,
				annotationDescription: spec.Description,
			},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas:             &replicas,
			RevisionHistoryLimit: &revisionHistoryLimit,
			Selector:             &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  spec.Name,
							Image: p.image,
							Ports: []corev1.ContainerPort{
								{ContainerPort: int32(p.port)},
							},
							EnvFrom: []corev1.EnvFromSource{
								{
									ConfigMapRef: &corev1.ConfigMapEnvSource{
										LocalObjectReference: corev1.LocalObjectReference{Name: envConfigMapName(spec.Name)},
									},
								},
							},
							ReadinessProbe: p.readinessProbe(),
						},
					},
				},
			},
		},
	}

	existing, err := p.client.AppsV1().Deployments(p.namespace).Get(ctx, spec.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		created, err := p.client.AppsV1().Deployments(p.namespace).Create(ctx, deploy, metav1.CreateOptions{})
		return created, mapError(err)
	}
	if err != nil {
		return nil, mapError(err)
	}
	existing.Spec = deploy.Spec
	existing.Labels = deploy.Labels
	existing.Annotations = deploy.Annotations
	updated, err := p.client.AppsV1().Deployments(p.namespace).Update(ctx, existing, metav1.UpdateOptions{})
	return updated, mapError(err)
}

func (p *K8sPlatform) applyService(ctx context.Context, name string) error {
	labels := p.labels(name)
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: p.namespace,
			Labels:    labels,
		},
		Spec: corev1.ServiceSpec{
			Selector: labels,
			Ports: []corev1.ServicePort{
				{
					Port:       int32(p.port),
					TargetPort: intstr.FromInt(p.port),
				},
			},
		},
	}

	existing, err := p.client.CoreV1().Services(p.namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err = p.client.CoreV1().Services(p.namespace).Create(ctx, svc, metav1.CreateOptions{})
		return mapError(err)
	}
	if err != nil {
		return mapError(err)
	}
	existing.Spec.Ports = svc.Spec.Ports
	_, err = p.client.CoreV1().Services(p.namespace).Update(ctx, existing, metav1.UpdateOptions{})
	return mapError(err)
}

func (p *K8sPlatform) readinessProbe() *corev1.Probe {
	if p.health.Path == "" {
		return nil
	}
	port := p.health.Port
	if port <= 0 {
		port = p.port
	}
	scheme := corev1.URISchemeHTTP
	if p.health.Scheme == "https" {
		scheme = corev1.URISchemeHTTPS
	}
	return &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path:   p.health.Path,
				Port:   intstr.FromInt(port),
				Scheme: scheme,
			},
		},
		InitialDelaySeconds: int32(p.health.StartPeriod),
		PeriodSeconds:       int32(p.health.Interval),
		TimeoutSeconds:      int32(p.health.Timeout),
		FailureThreshold:    int32(p.health.Retries),
	}
}

func handleFor(d *appsv1.Deployment) *domain.AppHandle {
	return &domain.AppHandle{UUID: string(d.UID), Name: d.Name}
}

// mapError 把 apiserver 错误映射为与 HTTP provider 相同的分类。
func mapError(err error) error {
	if err == nil {
		return nil
	}
	kind := domain.ErrProvider
	switch {
	case apierrors.IsUnauthorized(err):
		kind = domain.ErrUnauthorized
	case apierrors.IsForbidden(err):
		kind = domain.ErrForbidden
	case apierrors.IsNotFound(err):
		kind = domain.ErrNotFound
	case apierrors.IsTooManyRequests(err):
		kind = domain.ErrRateLimited
	case apierrors.IsAlreadyExists(err):
		kind = domain.ErrAlreadyExists
	}
	code := 0
	var status apierrors.APIStatus
	if stderrors.As(err, &status) {
		code = int(status.Status().Code)
	} else {
		kind = domain.ErrTransport
	}
	return &domain.ProviderError{
		Provider:   providerName,
		StatusCode: code,
		Kind:       kind,
		Message:    err.Error(),
	}
}
