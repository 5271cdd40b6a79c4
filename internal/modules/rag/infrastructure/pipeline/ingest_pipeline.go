package pipeline

import (
	"context"
	"fmt"

	"TubeSage/internal/modules/rag/domain/repository"
	"TubeSage/internal/modules/rag/infrastructure/chunking"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"
)

// IngestRequest 摄取 Pipeline 的输入
type IngestRequest struct {
	VideoID string
}

// IngestResult 摄取 Pipeline 的输出
type IngestResult struct {
	VideoID    string `json:"video_id"`
	Segments   int    `json:"segments"`
	Chunks     int    `json:"chunks"`
	VectorsOK  int    `json:"vectors_ok"`
	DurationMs int64  `json:"duration_ms"`
}

// IngestPipeline 摄取 Pipeline：抓字幕 → 切片 → 向量化 → 写索引。
// 失败时整体报错，不会留下读者可见的半成品集合（回滚由上层编排负责）。
type IngestPipeline struct {
	source    repository.TranscriptSource
	vs        repository.VectorStore
	embedder  embedding.Embedder
	chunker   *chunking.OverlapChunker
	vectorDim int
	r         compose.Runnable[*IngestRequest, *IngestResult]
}

func NewIngestPipeline(source repository.TranscriptSource, vs repository.VectorStore, embedder embedding.Embedder, chunker *chunking.OverlapChunker, vectorDim int) (*IngestPipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("transcript source is nil")
	}
	if vs == nil {
		return nil, fmt.Errorf("vector store is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if chunker == nil {
		return nil, fmt.Errorf("chunker is nil")
	}
	p := &IngestPipeline{source: source, vs: vs, embedder: embedder, chunker: chunker, vectorDim: vectorDim}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Ingest 执行一次完整摄取（封装 Eino Runnable.Invoke）
func (p *IngestPipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	return p.r.Invoke(ctx, &req)
}
