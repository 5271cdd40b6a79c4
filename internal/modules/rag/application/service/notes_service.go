package service

import (
	"context"

	"TubeSage/internal/modules/rag/application/dto/request"
	"TubeSage/internal/modules/rag/application/dto/respond"
	"TubeSage/internal/modules/rag/infrastructure/pipeline"
)

// NotesService 视频笔记合成服务接口
type NotesService interface {
	// Synthesize 按主题合成整视频笔记，首次访问会自动触发摄取
	Synthesize(ctx context.Context, req request.NotesRequest) (*respond.NotesRespond, error)
}

type notesServiceImpl struct {
	ingest IngestService
	pipe   *pipeline.NotesPipeline
}

// NewNotesService 创建 NotesService
func NewNotesService(ingest IngestService, pipe *pipeline.NotesPipeline) NotesService {
	return &notesServiceImpl{ingest: ingest, pipe: pipe}
}

func (s *notesServiceImpl) Synthesize(ctx context.Context, req request.NotesRequest) (*respond.NotesRespond, error) {
	if err := s.ingest.EnsureIngested(ctx, req.VideoID); err != nil {
		return nil, err
	}

	res, err := s.pipe.Synthesize(ctx, pipeline.NotesRequest{
		VideoID:   req.VideoID,
		Topic:     req.Topic,
		ModelName: req.ModelName,
	})
	if err != nil {
		return nil, err
	}

	return &respond.NotesRespond{
		NotesID:       res.NotesID,
		VideoID:       res.VideoID,
		Topic:         res.Topic,
		Notes:         res.Notes,
		Model:         res.Route.ModelName,
		Endpoint:      res.Route.Kind.String(),
		Groups:        res.Groups,
		SkippedGroups: res.SkippedGroups,
		Incomplete:    res.Incomplete,
		DurationMs:    res.DurationMs,
		LLMMs:         res.LLMMs,
	}, nil
}
