package domain

// DNSRecord 是 DNS provider 上的一条记录，每次调用重新查询，不做缓存。
type DNSRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
}

// AppHandle 是托管平台上应用的句柄，通过按名称查找得到。
type AppHandle struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// AppSpec 是创建应用时与租户相关的字段，静态构建配置由各平台适配器自己持有。
type AppSpec struct {
	Name        string
	Domain      string
	Description string
}

// HealthCheck 是应用的健康检查配置，所有租户共用。
type HealthCheck struct {
	Path        string
	Port        int
	Scheme      string
	Interval    int // 秒
	Timeout     int // 秒
	Retries     int
	StartPeriod int // 秒
}
