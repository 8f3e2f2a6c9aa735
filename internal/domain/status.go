package domain

// DeploymentStatus 是编排结果，调用方把它映射回租户的 deployed 标记。
type DeploymentStatus string

const (
	StatusNotDeployed DeploymentStatus = "not_deployed"
	StatusDeployed    DeploymentStatus = "deployed"
	// StatusPartiallyUndeployed 只出现在 Undeploy 结果中：一个阶段成功、另一个失败。
	StatusPartiallyUndeployed DeploymentStatus = "partially_undeployed"
)

// Deployed 报告调用方是否应把 deployed 标记置为 true。
func (s DeploymentStatus) Deployed() bool {
	return s == StatusDeployed
}
