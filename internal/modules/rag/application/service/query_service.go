package service

import (
	"context"

	"TubeSage/internal/modules/rag/application/dto/request"
	"TubeSage/internal/modules/rag/application/dto/respond"
	"TubeSage/internal/modules/rag/infrastructure/pipeline"
)

// QueryService 视频问答服务接口
type QueryService interface {
	// Ask 对指定视频提问，首次访问会自动触发摄取
	Ask(ctx context.Context, req request.QueryRequest) (*respond.QueryRespond, error)
}

type queryServiceImpl struct {
	ingest IngestService
	pipe   *pipeline.QueryPipeline
}

// NewQueryService 创建 QueryService
func NewQueryService(ingest IngestService, pipe *pipeline.QueryPipeline) QueryService {
	return &queryServiceImpl{ingest: ingest, pipe: pipe}
}

func (s *queryServiceImpl) Ask(ctx context.Context, req request.QueryRequest) (*respond.QueryRespond, error) {
	if err := s.ingest.EnsureIngested(ctx, req.VideoID); err != nil {
		return nil, err
	}

	res, err := s.pipe.Answer(ctx, pipeline.QueryRequest{
		VideoID:   req.VideoID,
		Question:  req.Question,
		ModelName: req.ModelName,
	})
	if err != nil {
		return nil, err
	}

	out := &respond.QueryRespond{
		QueryID:     res.QueryID,
		VideoID:     res.VideoID,
		Question:    res.Question,
		Answer:      res.Answer,
		Source:      res.Source,
		Model:       res.Route.ModelName,
		Endpoint:    res.Route.Kind.String(),
		DurationMs:  res.DurationMs,
		EmbeddingMs: res.EmbeddingMs,
		SearchMs:    res.SearchMs,
		LLMMs:       res.LLMMs,
	}
	for _, h := range res.Hits {
		out.SourceChunks = append(out.SourceChunks, respond.SourceChunk{
			ChunkIndex: h.ChunkIndex,
			Score:      h.Score,
			Content:    h.Content,
			StartMs:    h.StartMs,
			EndMs:      h.EndMs,
		})
	}
	return out, nil
}
