package pipeline

import (
	"context"
	"fmt"

	"TubeSage/internal/modules/rag/domain/repository"
	"TubeSage/internal/modules/rag/infrastructure/llm"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"
)

// QueryRequest 问答 Pipeline 的输入
type QueryRequest struct {
	VideoID   string
	Question  string
	ModelName string // 已由上层落到默认模型
}

// QueryResult 问答 Pipeline 的输出
type QueryResult struct {
	QueryID      string
	VideoID      string
	Question     string
	Answer       string
	Source       string
	Hits         []repository.VectorSearchHit // 按召回排名
	Route        llm.Route
	DurationMs   int64
	EmbeddingMs  int64
	SearchMs     int64
	LLMMs        int64
}

// QueryPipeline 问答 Pipeline（基于 Eino compose.Graph）。
//
// 设计约束：
// 1. 问题必须用与摄取相同的 embedder 向量化，否则相似度排序失真。
// 2. 路由决策在 Validate 节点派生一次，随状态传递，不在各节点重新判断。
// 3. prompt 只允许模型依据召回上下文作答（grounded prompt）。
type QueryPipeline struct {
	vs       repository.VectorStore
	embedder embedding.Embedder
	router   *llm.Router
	models   llm.ModelProvider
	topK     int
	r        compose.Runnable[*QueryRequest, *QueryResult]
}

func NewQueryPipeline(vs repository.VectorStore, embedder embedding.Embedder, router *llm.Router, models llm.ModelProvider, topK int) (*QueryPipeline, error) {
	if vs == nil {
		return nil, fmt.Errorf("vector store is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if router == nil {
		return nil, fmt.Errorf("router is nil")
	}
	if models == nil {
		return nil, fmt.Errorf("model provider is nil")
	}
	if topK <= 0 {
		topK = 5
	}
	p := &QueryPipeline{vs: vs, embedder: embedder, router: router, models: models, topK: topK}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Answer 执行一次问答（封装 Eino Runnable.Invoke）
func (p *QueryPipeline) Answer(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	return p.r.Invoke(ctx, &req)
}
