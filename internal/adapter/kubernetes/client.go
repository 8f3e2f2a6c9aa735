package kubernetes

import (
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewClientset 优先使用 kubeconfig，否则回退到 in-cluster 配置。
// timeout 作用于每个 apiserver 请求，超时会被映射为 transport 错误。
func NewClientset(kubeconfigPath string, timeout time.Duration) (kubernetes.Interface, error) {
	var cfg *rest.Config
	var err error

	if kubeconfigPath != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	} else {
		cfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, err
	}
	cfg.Timeout = timeout
	cfg.UserAgent = managedByValue

	return kubernetes.NewForConfig(cfg)
}
