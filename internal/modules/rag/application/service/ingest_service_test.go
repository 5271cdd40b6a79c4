package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"TubeSage/internal/modules/rag/application/dto/request"
	"TubeSage/internal/modules/rag/domain/video"
	"TubeSage/internal/modules/rag/infrastructure/chunking"
	"TubeSage/internal/modules/rag/infrastructure/embedding"
	"TubeSage/internal/modules/rag/infrastructure/pipeline"
	"TubeSage/internal/modules/rag/infrastructure/vectordb"
	"TubeSage/pkg/xerr"
)

const testDim = 32

// flakySource 字幕源测试替身：可切换失败模式，统计抓取次数
type flakySource struct {
	mu    sync.Mutex
	fail  error
	calls atomic.Int32
}

func (f *flakySource) Fetch(ctx context.Context, videoID string) (*video.Transcript, error) {
	f.calls.Add(1)
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return &video.Transcript{
		VideoID: videoID,
		Segments: []video.Segment{
			{Text: "a transcript segment long enough to produce at least one chunk", StartMs: 0, DurationMs: 8000},
		},
	}, nil
}

func (f *flakySource) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func newTestService(t *testing.T) (IngestService, *flakySource, *vectordb.MemoryStore) {
	t.Helper()
	source := &flakySource{}
	vs := vectordb.NewMemoryStore(testDim)
	pipe, err := pipeline.NewIngestPipeline(source, vs, embedding.NewMockEmbedder(testDim), chunking.NewOverlapChunker(80, 16), testDim)
	if err != nil {
		t.Fatalf("NewIngestPipeline: %v", err)
	}
	return NewIngestService(pipe, vs, nil, ""), source, vs
}

func TestIngestBuildsOnce(t *testing.T) {
	svc, source, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, request.IngestRequest{VideoID: "vid-1"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if first.Reused {
		t.Error("first ingest marked as reused")
	}
	if first.Chunks == 0 {
		t.Error("first ingest produced no chunks")
	}

	second, err := svc.Ingest(ctx, request.IngestRequest{VideoID: "vid-1"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !second.Reused {
		t.Error("second ingest rebuilt the index")
	}
	if source.calls.Load() != 1 {
		t.Errorf("transcript fetched %d times", source.calls.Load())
	}
}

func TestEnsureIngestedReadyFastPathSkipsStore(t *testing.T) {
	svc, source, vs := newTestService(t)
	ctx := context.Background()

	if err := svc.EnsureIngested(ctx, "vid-1"); err != nil {
		t.Fatalf("EnsureIngested: %v", err)
	}
	if svc.State("vid-1") != video.StateReady {
		t.Fatalf("state = %s", svc.State("vid-1"))
	}

	// READY 后清掉底层索引：快路径不应发现，也不应重新抓取
	if err := vs.DeleteByVideo(ctx, "vid-1"); err != nil {
		t.Fatalf("DeleteByVideo: %v", err)
	}
	if err := svc.EnsureIngested(ctx, "vid-1"); err != nil {
		t.Fatalf("EnsureIngested: %v", err)
	}
	if source.calls.Load() != 1 {
		t.Errorf("fast path still touched the source, %d fetches", source.calls.Load())
	}
}

func TestEnsureIngestedRecoversFromExistingIndex(t *testing.T) {
	source := &flakySource{}
	vs := vectordb.NewMemoryStore(testDim)
	pipe, err := pipeline.NewIngestPipeline(source, vs, embedding.NewMockEmbedder(testDim), chunking.NewOverlapChunker(80, 16), testDim)
	if err != nil {
		t.Fatalf("NewIngestPipeline: %v", err)
	}

	// 第一个服务实例建好索引
	first := NewIngestService(pipe, vs, nil, "")
	if err := first.EnsureIngested(context.Background(), "vid-1"); err != nil {
		t.Fatalf("EnsureIngested: %v", err)
	}

	// 模拟进程重启：新实例丢失内存状态，但索引还在
	restarted := NewIngestService(pipe, vs, nil, "")
	if err := restarted.EnsureIngested(context.Background(), "vid-1"); err != nil {
		t.Fatalf("EnsureIngested after restart: %v", err)
	}
	if source.calls.Load() != 1 {
		t.Errorf("restart re-fetched the transcript, %d fetches", source.calls.Load())
	}
	if restarted.State("vid-1") != video.StateReady {
		t.Errorf("state after recovery = %s", restarted.State("vid-1"))
	}
}

func TestConcurrentIngestSingleFlight(t *testing.T) {
	svc, source, _ := newTestService(t)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.EnsureIngested(context.Background(), "vid-1")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
	}
	if got := source.calls.Load(); got != 1 {
		t.Errorf("expected a single transcript fetch, got %d", got)
	}
}

func TestIngestFailurePurgesAndRetries(t *testing.T) {
	svc, source, vs := newTestService(t)
	ctx := context.Background()

	source.setFail(xerr.Wrap(xerr.KindTranscriptsUnavailable, "upstream down", nil))
	_, err := svc.Ingest(ctx, request.IngestRequest{VideoID: "vid-1"})
	if err == nil {
		t.Fatal("expected ingest failure")
	}
	if xerr.KindOf(err) != xerr.KindTranscriptsUnavailable {
		t.Errorf("error kind = %s", xerr.KindOf(err))
	}
	if svc.State("vid-1") != video.StateFailed {
		t.Errorf("state after failure = %s", svc.State("vid-1"))
	}
	if ok, _ := vs.Exists(ctx, "vid-1"); ok {
		t.Error("partial index left behind after failure")
	}

	// 失败不粘滞：修好上游后重新请求要再次触发构建
	source.setFail(nil)
	res, err := svc.Ingest(ctx, request.IngestRequest{VideoID: "vid-1"})
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if res.Reused {
		t.Error("retry did not rebuild")
	}
	if svc.State("vid-1") != video.StateReady {
		t.Errorf("state after retry = %s", svc.State("vid-1"))
	}
}

func TestIngestEmptyVideoID(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Ingest(context.Background(), request.IngestRequest{VideoID: "  "})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if xerr.KindOf(err) != xerr.KindBadRequest {
		t.Errorf("error kind = %s", xerr.KindOf(err))
	}
}
