package config

import (
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
}

type MilvusConfig struct {
	Address        string `toml:"address"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	DBName         string `toml:"dbName"`
	CollectionName string `toml:"collectionName"`
	VectorDim      int    `toml:"vectorDim"`
	MetricType     string `toml:"metricType"`
}

type KafkaConfig struct {
	Brokers     []string `toml:"brokers"`
	ClientID    string   `toml:"clientID"`
	IngestTopic string   `toml:"ingestTopic"`
}

// TranscriptConfig 字幕抓取配置
type TranscriptConfig struct {
	Language       string `toml:"language"`       // 字幕语言，默认 en
	TimeoutSeconds int    `toml:"timeoutSeconds"` // 抓取超时，默认 30s
	BaseURL        string `toml:"baseURL"`        // 留空使用 youtube 官方 timedtext 接口
}

// ChunkConfig 切片配置：窗口大小与重叠长度（按字符）
type ChunkConfig struct {
	ChunkSize    int  `toml:"chunkSize"`    // 默认 1000
	ChunkOverlap int  `toml:"chunkOverlap"` // 默认 200
	UseRecursive bool `toml:"useRecursive"` // 使用递归切分器（按分隔符优先）
}

// RetrievalConfig 召回与笔记合成配置
type RetrievalConfig struct {
	TopK             int `toml:"topK"`             // 问答召回条数，默认 5
	GroupBudgetChars int `toml:"groupBudgetChars"` // 笔记 map 阶段单组字符预算，默认 6000
}

type AIEmbeddingConfig struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"apiKey"`
	AccessKey      string `toml:"accessKey"`
	SecretKey      string `toml:"secretKey"`
	BaseURL        string `toml:"baseURL"`
	Region         string `toml:"region"`
	Model          string `toml:"model"`
	Dimensions     int    `toml:"dimensions"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

// AIChatModelConfig 推理端点配置：本地与云端两个 Ollama 兼容端点
type AIChatModelConfig struct {
	Provider       string `toml:"provider"`       // openai(兼容 ollama) / ark
	APIKey         string `toml:"apiKey"`
	AccessKey      string `toml:"accessKey"`
	SecretKey      string `toml:"secretKey"`
	Region         string `toml:"region"`
	LocalBaseURL   string `toml:"localBaseURL"`   // 默认 http://localhost:11434/v1
	RemoteBaseURL  string `toml:"remoteBaseURL"`  // 默认 https://ollama.com/v1
	RemoteMarker   string `toml:"remoteMarker"`   // 模型名包含该子串时走云端，默认 cloud
	DefaultModel   string `toml:"defaultModel"`   // 请求未指定时的默认模型
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

type AIConfig struct {
	Embedding AIEmbeddingConfig `toml:"embedding"`
	ChatModel AIChatModelConfig `toml:"chatModel"`
}

type Config struct {
	MainConfig       `toml:"mainConfig"`
	LogConfig        `toml:"logConfig"`
	MilvusConfig     `toml:"milvusConfig"`
	KafkaConfig      `toml:"kafkaConfig"`
	TranscriptConfig `toml:"transcriptConfig"`
	ChunkConfig      `toml:"chunkConfig"`
	RetrievalConfig  `toml:"retrievalConfig"`
	AIConfig         `toml:"aiConfig"`
}

var config *Config

func LoadConfig() error {
	configPath := os.Getenv("TUBESAGE_CONFIG")
	if configPath == "" {
		configPath = "configs/config_local.toml"
	}
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Printf("加载配置文件失败: %v, 尝试使用默认设置", err)
		return err
	}
	return nil
}

func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig()
		config.applyDefaults()
	}
	return config
}

// applyDefaults 缺省项兜底，保证零配置也能跑通(内存索引 + mock embedding)
func (c *Config) applyDefaults() {
	if c.TranscriptConfig.Language == "" {
		c.TranscriptConfig.Language = "en"
	}
	if c.TranscriptConfig.TimeoutSeconds <= 0 {
		c.TranscriptConfig.TimeoutSeconds = 30
	}
	if c.ChunkConfig.ChunkSize <= 0 {
		c.ChunkConfig.ChunkSize = 1000
	}
	if c.ChunkConfig.ChunkOverlap < 0 {
		c.ChunkConfig.ChunkOverlap = 200
	}
	if c.RetrievalConfig.TopK <= 0 {
		c.RetrievalConfig.TopK = 5
	}
	if c.RetrievalConfig.GroupBudgetChars <= 0 {
		c.RetrievalConfig.GroupBudgetChars = 6000
	}
	if c.AIConfig.ChatModel.LocalBaseURL == "" {
		c.AIConfig.ChatModel.LocalBaseURL = "http://localhost:11434/v1"
	}
	if c.AIConfig.ChatModel.RemoteBaseURL == "" {
		c.AIConfig.ChatModel.RemoteBaseURL = "https://ollama.com/v1"
	}
	if c.AIConfig.ChatModel.RemoteMarker == "" {
		c.AIConfig.ChatModel.RemoteMarker = "cloud"
	}
	if c.AIConfig.ChatModel.DefaultModel == "" {
		c.AIConfig.ChatModel.DefaultModel = "mistral-large-3:675b-cloud"
	}
	if c.AIConfig.ChatModel.TimeoutSeconds <= 0 {
		c.AIConfig.ChatModel.TimeoutSeconds = 120
	}
	if c.MilvusConfig.VectorDim <= 0 {
		c.MilvusConfig.VectorDim = 768
	}
}
