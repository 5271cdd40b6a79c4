package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"TubeSage/internal/config"

	arkModel "github.com/cloudwego/eino-ext/components/model/ark"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// ModelProvider 按路由结果产出聊天模型客户端，pipeline 只依赖本接口
type ModelProvider interface {
	GetModel(ctx context.Context, route Route) (model.BaseChatModel, error)
}

// chatModelProvider 按 (endpoint, model) 缓存已创建的客户端，避免每次请求重建
type chatModelProvider struct {
	conf *config.Config

	mu    sync.Mutex
	cache map[string]model.BaseChatModel
}

func NewChatModelProvider(conf *config.Config) ModelProvider {
	return &chatModelProvider{conf: conf, cache: make(map[string]model.BaseChatModel)}
}

func (p *chatModelProvider) GetModel(ctx context.Context, route Route) (model.BaseChatModel, error) {
	if p.conf == nil {
		return nil, fmt.Errorf("nil config")
	}
	key := fmt.Sprintf("%s|%s", route.Kind, route.ModelName)

	p.mu.Lock()
	defer p.mu.Unlock()
	if cm, ok := p.cache[key]; ok {
		return cm, nil
	}

	cm, err := p.newModel(ctx, route)
	if err != nil {
		return nil, err
	}
	p.cache[key] = cm
	return cm, nil
}

// newModel 按配置的 provider 创建客户端。openai 分支同时服务 Ollama：
// 本地与云端端点都暴露 OpenAI 兼容 API，路由只切换 BaseURL。
func (p *chatModelProvider) newModel(ctx context.Context, route Route) (model.BaseChatModel, error) {
	cmConf := p.conf.AIConfig.ChatModel
	provider := strings.ToLower(strings.TrimSpace(cmConf.Provider))
	if route.ModelName == "" {
		return nil, fmt.Errorf("chat model name is empty")
	}

	timeout := route.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	switch provider {
	case "", "openai", "ollama":
		apiKey := strings.TrimSpace(cmConf.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("OLLAMA_API_KEY"))
		}
		if apiKey == "" {
			// 本地 Ollama 不校验 key，但客户端要求非空
			apiKey = "ollama"
		}
		return openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:  apiKey,
			Model:   route.ModelName,
			BaseURL: route.BaseURL,
			Timeout: timeout,
		})

	case "ark":
		apiKey := strings.TrimSpace(cmConf.APIKey)
		accessKey := strings.TrimSpace(cmConf.AccessKey)
		secretKey := strings.TrimSpace(cmConf.SecretKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		}
		if apiKey == "" && (accessKey == "" || secretKey == "") {
			return nil, fmt.Errorf("ark chat model missing apiKey or accessKey/secretKey")
		}
		return arkModel.NewChatModel(ctx, &arkModel.ChatModelConfig{
			APIKey:    apiKey,
			AccessKey: accessKey,
			SecretKey: secretKey,
			Model:     route.ModelName,
			BaseURL:   route.BaseURL,
			Region:    strings.TrimSpace(cmConf.Region),
			Timeout:   &timeout,
		})

	default:
		return nil, fmt.Errorf("unknown chat model provider: %s", provider)
	}
}
