package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"TubeSage/internal/modules/rag/application/dto/request"
	"TubeSage/internal/modules/rag/application/dto/respond"
	"TubeSage/internal/modules/rag/domain/repository"
	"TubeSage/internal/modules/rag/domain/video"
	"TubeSage/internal/modules/rag/infrastructure/mq"
	"TubeSage/internal/modules/rag/infrastructure/pipeline"
	"TubeSage/pkg/xerr"
	"TubeSage/pkg/zlog"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// IngestService 视频字幕摄取服务接口
type IngestService interface {
	// Ingest 显式摄取一个视频（已就绪则直接复用）
	Ingest(ctx context.Context, req request.IngestRequest) (*respond.IngestRespond, error)

	// EnsureIngested 确保视频已建好索引；未建则就地构建。
	// 问答 / 笔记入口在查询前都会先走这里。
	EnsureIngested(ctx context.Context, videoID string) error

	// State 返回视频当前的摄取状态
	State(videoID string) video.IngestionState
}

type ingestServiceImpl struct {
	pipe      *pipeline.IngestPipeline
	vs        repository.VectorStore
	publisher mq.Publisher // 可为 nil，事件发布是尽力而为
	topic     string

	mu     sync.Mutex
	states map[string]video.IngestionState
	group  singleflight.Group
}

// NewIngestService 创建 IngestService。publisher 传 nil 时不发事件。
func NewIngestService(pipe *pipeline.IngestPipeline, vs repository.VectorStore, publisher mq.Publisher, topic string) IngestService {
	return &ingestServiceImpl{
		pipe:      pipe,
		vs:        vs,
		publisher: publisher,
		topic:     topic,
		states:    make(map[string]video.IngestionState),
	}
}

func (s *ingestServiceImpl) State(videoID string) video.IngestionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[videoID]
}

func (s *ingestServiceImpl) setState(videoID string, st video.IngestionState) {
	s.mu.Lock()
	s.states[videoID] = st
	s.mu.Unlock()
}

func (s *ingestServiceImpl) Ingest(ctx context.Context, req request.IngestRequest) (*respond.IngestRespond, error) {
	videoID := strings.TrimSpace(req.VideoID)
	if videoID == "" {
		return nil, xerr.ErrParam
	}

	start := time.Now()
	res, reused, err := s.ensure(ctx, videoID)
	if err != nil {
		return nil, err
	}

	out := &respond.IngestRespond{
		VideoID:    videoID,
		State:      s.State(videoID).String(),
		Reused:     reused,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if res != nil {
		out.Segments = res.Segments
		out.Chunks = res.Chunks
	}
	return out, nil
}

func (s *ingestServiceImpl) EnsureIngested(ctx context.Context, videoID string) error {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return xerr.ErrParam
	}
	_, _, err := s.ensure(ctx, videoID)
	return err
}

// ensure 摄取的核心编排。
// 1. READY 快路径：不碰任何外部服务直接返回。
// 2. 进程重启后内存状态丢失：用索引里的存在性查询恢复 READY。
// 3. 同一视频的并发摄取合并成一次构建（singleflight），其余请求等结果。
// 4. FAILED 不粘滞：下一次请求会重新触发构建。
func (s *ingestServiceImpl) ensure(ctx context.Context, videoID string) (*pipeline.IngestResult, bool, error) {
	if s.State(videoID) == video.StateReady {
		return nil, true, nil
	}

	exists, err := s.vs.Exists(ctx, videoID)
	if err != nil {
		return nil, false, xerr.Wrap(xerr.KindIndexCorruption, "index existence check failed", err)
	}
	if exists {
		s.setState(videoID, video.StateReady)
		return nil, true, nil
	}

	res, err, shared := s.group.Do(videoID, func() (interface{}, error) {
		return s.build(ctx, videoID)
	})
	if err != nil {
		return nil, false, err
	}
	return res.(*pipeline.IngestResult), shared, nil
}

// build 执行一次真正的构建。调用方取消不终止构建：
// 同一飞行可能挂着多个等待者，上下文故意与请求方脱钩。
func (s *ingestServiceImpl) build(ctx context.Context, videoID string) (*pipeline.IngestResult, error) {
	// 双重检查：并发等待者可能在上一轮飞行结束后才进入新飞行
	if s.State(videoID) == video.StateReady {
		return nil, nil
	}

	s.setState(videoID, video.StateIngesting)
	buildCtx := context.WithoutCancel(ctx)

	res, err := s.pipe.Ingest(buildCtx, pipeline.IngestRequest{VideoID: videoID})
	if err != nil {
		// 失败索引必须清干净，否则下次 Exists 会把半成品当 READY
		if purgeErr := s.vs.DeleteByVideo(buildCtx, videoID); purgeErr != nil {
			zlog.Error("failed to purge partial index",
				zap.String("video_id", videoID),
				zap.Error(purgeErr))
		}
		s.setState(videoID, video.StateFailed)
		return nil, err
	}

	s.setState(videoID, video.StateReady)
	s.publishIngested(buildCtx, videoID, res)
	return res, nil
}

type videoIngestedEvent struct {
	VideoID    string `json:"video_id"`
	Segments   int    `json:"segments"`
	Chunks     int    `json:"chunks"`
	DurationMs int64  `json:"duration_ms"`
	IngestedAt int64  `json:"ingested_at"`
}

func (s *ingestServiceImpl) publishIngested(ctx context.Context, videoID string, res *pipeline.IngestResult) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	payload, err := json.Marshal(videoIngestedEvent{
		VideoID:    videoID,
		Segments:   res.Segments,
		Chunks:     res.Chunks,
		DurationMs: res.DurationMs,
		IngestedAt: time.Now().Unix(),
	})
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, mq.Message{
		Topic: s.topic,
		Key:   []byte(videoID),
		Value: payload,
	}); err != nil {
		zlog.Warn("failed to publish video ingested event",
			zap.String("video_id", videoID),
			zap.Error(err))
	}
}
