package embedding

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"TubeSage/internal/config"

	arkEmbed "github.com/cloudwego/eino-ext/components/embedding/ark"
	dashscopeEmbed "github.com/cloudwego/eino-ext/components/embedding/dashscope"
	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

type EmbedderMeta struct {
	Provider string
	Model    string
	Dim      int
}

// NewEmbedderFromConfig 按配置创建 embedding 提供方。
// 摄取与查询必须共用同一个实例：混用 embedding 模型会破坏相似度排序。
func NewEmbedderFromConfig(ctx context.Context, conf *config.Config) (embedding.Embedder, EmbedderMeta, error) {
	if conf == nil {
		return nil, EmbedderMeta{}, fmt.Errorf("nil config")
	}

	dim := conf.MilvusConfig.VectorDim
	provider := strings.ToLower(strings.TrimSpace(conf.AIConfig.Embedding.Provider))
	model := strings.TrimSpace(conf.AIConfig.Embedding.Model)
	if conf.AIConfig.Embedding.Dimensions > 0 {
		dim = conf.AIConfig.Embedding.Dimensions
	}

	timeout := 30 * time.Second
	if conf.AIConfig.Embedding.TimeoutSeconds > 0 {
		timeout = time.Duration(conf.AIConfig.Embedding.TimeoutSeconds) * time.Second
	}

	switch provider {
	case "", "mock":
		if model == "" {
			model = "mock"
		}
		return NewMockEmbedder(dim), EmbedderMeta{Provider: "mock", Model: model, Dim: dim}, nil

	case "openai", "ollama":
		// Ollama 的 /v1/embeddings 与 OpenAI 兼容，nomic-embed-text 走这里
		apiKey := strings.TrimSpace(conf.AIConfig.Embedding.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
		if apiKey == "" {
			apiKey = "ollama"
		}
		baseURL := strings.TrimSpace(conf.AIConfig.Embedding.BaseURL)
		if model == "" {
			return nil, EmbedderMeta{}, fmt.Errorf("openai embedding missing model")
		}
		emb, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
			APIKey:  apiKey,
			Model:   model,
			BaseURL: baseURL,
			Timeout: timeout,
		})
		if err != nil {
			return nil, EmbedderMeta{}, err
		}
		return emb, EmbedderMeta{Provider: "openai", Model: model, Dim: dim}, nil

	case "ark":
		apiKey := strings.TrimSpace(conf.AIConfig.Embedding.APIKey)
		accessKey := strings.TrimSpace(conf.AIConfig.Embedding.AccessKey)
		secretKey := strings.TrimSpace(conf.AIConfig.Embedding.SecretKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		}
		if apiKey == "" && (accessKey == "" || secretKey == "") {
			return nil, EmbedderMeta{}, fmt.Errorf("ark embedding missing apiKey or accessKey/secretKey")
		}
		if model == "" {
			return nil, EmbedderMeta{}, fmt.Errorf("ark embedding missing model")
		}
		emb, err := arkEmbed.NewEmbedder(ctx, &arkEmbed.EmbeddingConfig{
			APIKey:    apiKey,
			AccessKey: accessKey,
			SecretKey: secretKey,
			Model:     model,
			BaseURL:   strings.TrimSpace(conf.AIConfig.Embedding.BaseURL),
			Region:    strings.TrimSpace(conf.AIConfig.Embedding.Region),
			Timeout:   &timeout,
		})
		if err != nil {
			return nil, EmbedderMeta{}, err
		}
		return emb, EmbedderMeta{Provider: "ark", Model: model, Dim: dim}, nil

	case "dashscope":
		apiKey := strings.TrimSpace(conf.AIConfig.Embedding.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("DASHSCOPE_API_KEY"))
		}
		if apiKey == "" || model == "" {
			return nil, EmbedderMeta{}, fmt.Errorf("dashscope embedding missing apiKey/model")
		}
		emb, err := dashscopeEmbed.NewEmbedder(ctx, &dashscopeEmbed.EmbeddingConfig{
			APIKey:     apiKey,
			Model:      model,
			Timeout:    timeout,
			Dimensions: &dim,
		})
		if err != nil {
			return nil, EmbedderMeta{}, err
		}
		return emb, EmbedderMeta{Provider: "dashscope", Model: model, Dim: dim}, nil

	default:
		return nil, EmbedderMeta{}, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}
