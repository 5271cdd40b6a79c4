package llm

import (
	"strings"
	"time"
)

// EndpointKind 推理端点的两种去向，路由结果只派生一次并随请求传递
type EndpointKind int8

const (
	EndpointLocal EndpointKind = iota
	EndpointRemote
)

func (k EndpointKind) String() string {
	if k == EndpointRemote {
		return "remote"
	}
	return "local"
}

// Route 一次推理调用的完整路由决策
type Route struct {
	Kind      EndpointKind
	ModelName string
	BaseURL   string
	Timeout   time.Duration
}

// Router 按模型名选择本地或云端端点。纯函数，不做负载均衡、重试或健康检查，
// 这些属于推理客户端自身的职责。
type Router struct {
	localBaseURL  string
	remoteBaseURL string
	remoteMarker  string
	defaultModel  string
	timeout       time.Duration
}

func NewRouter(localBaseURL, remoteBaseURL, remoteMarker, defaultModel string, timeout time.Duration) *Router {
	if strings.TrimSpace(remoteMarker) == "" {
		remoteMarker = "cloud"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Router{
		localBaseURL:  strings.TrimSpace(localBaseURL),
		remoteBaseURL: strings.TrimSpace(remoteBaseURL),
		remoteMarker:  remoteMarker,
		defaultModel:  strings.TrimSpace(defaultModel),
		timeout:       timeout,
	}
}

// Route 模型名包含 remoteMarker 子串则走云端，否则走本地；空模型名落到默认模型
func (r *Router) Route(modelName string) Route {
	name := strings.TrimSpace(modelName)
	if name == "" {
		name = r.defaultModel
	}
	route := Route{ModelName: name, Timeout: r.timeout}
	if strings.Contains(name, r.remoteMarker) {
		route.Kind = EndpointRemote
		route.BaseURL = r.remoteBaseURL
	} else {
		route.Kind = EndpointLocal
		route.BaseURL = r.localBaseURL
	}
	return route
}
