package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// 写入托管平台的环境变量名，已部署的站点模板直接读取这些 key，不能改名。
const (
	EnvClientData       = "CLIENT_DATA"
	EnvPublicClientData = "NEXT_PUBLIC_CLIENT_DATA"
	EnvNodeEnv          = "NODE_ENV"
	EnvClientHTML       = "CLIENT_HTML_BASE64"

	nodeEnvProduction = "production"
)

// EnvVar 是一条平台环境变量。IsLiteral 为 true 时平台不会对值做变量插值。
type EnvVar struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	IsLiteral bool   `json:"is_literal"`
}

// BuildEnvironment 根据展示数据构造完整的环境变量集合。
// SetEnvironment 是整体替换，所以每次都要返回全集而不是增量。
// HTMLCode 不进入 JSON，改为 base64 单独传递，避免平台配置文件的转义问题。
func BuildEnvironment(display DisplayData) ([]EnvVar, error) {
	payload := display
	payload.HTMLCode = ""

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode client data: %v", ErrInvalidInput, err)
	}

	// NEXT_PUBLIC_ 前缀的副本供前端构建期可见，平台要求保留两份。
	vars := []EnvVar{
		{Key: EnvClientData, Value: string(data), IsLiteral: true},
		{Key: EnvPublicClientData, Value: string(data), IsLiteral: true},
		{Key: EnvNodeEnv, Value: nodeEnvProduction, IsLiteral: true},
	}
	if display.HTMLCode != "" {
		vars = append(vars, EnvVar{
			Key:       EnvClientHTML,
			Value:     base64.StdEncoding.EncodeToString([]byte(display.HTMLCode)),
			IsLiteral: true,
		})
	}
	return vars, nil
}

// EnvMap 把环境变量列表转为 map，供 K8s ConfigMap 等按 key 存储的平台使用。
func EnvMap(vars []EnvVar) map[string]string {
	m := make(map[string]string, len(vars))
	for _, v := range vars {
		m[v.Key] = v.Value
	}
	return m
}
