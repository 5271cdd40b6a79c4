package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TubeSage/internal/modules/rag/domain/repository"
	"TubeSage/internal/modules/rag/domain/video"
	"TubeSage/pkg/xerr"
	"TubeSage/pkg/zlog"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

// ingestState 摄取 Pipeline 的中间状态（在节点间传递）
type ingestState struct {
	Req *IngestRequest

	Transcript *video.Transcript
	Chunks     []video.Chunk
	Items      []repository.VectorUpsertItem
	Upserted   int

	Start time.Time
	Err   error
}

func (p *IngestPipeline) buildGraph(ctx context.Context) (compose.Runnable[*IngestRequest, *IngestResult], error) {
	const (
		Fetch       = "Fetch"
		Chunk       = "Chunk"
		Embed       = "Embed"
		Upsert      = "Upsert"
		BuildResult = "BuildResult"
	)

	g := compose.NewGraph[*IngestRequest, *IngestResult]()

	_ = g.AddLambdaNode(Fetch, compose.InvokableLambdaWithOption(p.fetchNode), compose.WithNodeName(Fetch))
	_ = g.AddLambdaNode(Chunk, compose.InvokableLambdaWithOption(p.chunkNode), compose.WithNodeName(Chunk))
	_ = g.AddLambdaNode(Embed, compose.InvokableLambdaWithOption(p.embedNode), compose.WithNodeName(Embed))
	_ = g.AddLambdaNode(Upsert, compose.InvokableLambdaWithOption(p.upsertNode), compose.WithNodeName(Upsert))
	_ = g.AddLambdaNode(BuildResult, compose.InvokableLambdaWithOption(p.buildResultNode), compose.WithNodeName(BuildResult))

	_ = g.AddEdge(compose.START, Fetch)
	_ = g.AddEdge(Fetch, Chunk)
	_ = g.AddEdge(Chunk, Embed)
	_ = g.AddEdge(Embed, Upsert)
	_ = g.AddEdge(Upsert, BuildResult)
	_ = g.AddEdge(BuildResult, compose.END)

	return g.Compile(ctx, compose.WithGraphName("TranscriptIngestPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// fetchNode 节点 1：抓取字幕
func (p *IngestPipeline) fetchNode(ctx context.Context, req *IngestRequest, _ ...any) (*ingestState, error) {
	st := &ingestState{Req: req, Start: time.Now()}
	if req == nil || strings.TrimSpace(req.VideoID) == "" {
		st.Err = xerr.ErrParam
		return st, nil
	}
	req.VideoID = strings.TrimSpace(req.VideoID)

	t, err := p.source.Fetch(ctx, req.VideoID)
	if err != nil {
		st.Err = err
		return st, nil
	}
	if t == nil || len(t.Segments) == 0 {
		st.Err = xerr.Wrap(xerr.KindNotFound, fmt.Sprintf("empty transcript for video %s", req.VideoID), nil)
		return st, nil
	}
	st.Transcript = t
	return st, nil
}

// chunkNode 节点 2：切片
func (p *IngestPipeline) chunkNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	chunks, err := p.chunker.Split(ctx, st.Transcript)
	if err != nil {
		st.Err = err
		return st, nil
	}
	if len(chunks) == 0 {
		st.Err = xerr.Wrap(xerr.KindNotFound, fmt.Sprintf("transcript for video %s produced no chunks", st.Req.VideoID), nil)
		return st, nil
	}
	st.Chunks = chunks
	return st, nil
}

// embedNode 节点 3：向量化全部切片
func (p *IngestPipeline) embedNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	texts := make([]string, 0, len(st.Chunks))
	for _, ch := range st.Chunks {
		texts = append(texts, ch.Text)
	}

	vecs, err := p.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		st.Err = mapProviderErr("embed chunks", err)
		return st, nil
	}
	if len(vecs) != len(st.Chunks) {
		st.Err = xerr.Wrap(xerr.KindProviderError, fmt.Sprintf("embedding count mismatch got=%d want=%d", len(vecs), len(st.Chunks)), nil)
		return st, nil
	}

	items := make([]repository.VectorUpsertItem, 0, len(st.Chunks))
	for i, ch := range st.Chunks {
		if p.vectorDim > 0 && len(vecs[i]) != p.vectorDim {
			st.Err = xerr.Wrap(xerr.KindProviderError, fmt.Sprintf("vector dim mismatch got=%d want=%d", len(vecs[i]), p.vectorDim), nil)
			return st, nil
		}
		items = append(items, repository.VectorUpsertItem{
			ID:         ch.Key(),
			Vector:     toFloat32(vecs[i]),
			VideoID:    ch.VideoID,
			ChunkIndex: ch.ChunkIndex,
			Content:    ch.Text,
			StartMs:    ch.StartMs,
			EndMs:      ch.EndMs,
		})
	}
	st.Items = items
	return st, nil
}

// upsertNode 节点 4：整批写入向量索引
func (p *IngestPipeline) upsertNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	ids, err := p.vs.Upsert(ctx, st.Items)
	if err != nil {
		st.Err = mapProviderErr("upsert vectors", err)
		return st, nil
	}
	st.Upserted = len(ids)
	return st, nil
}

// buildResultNode 节点 5：汇总结果；有错则让整个 Invoke 报错
func (p *IngestPipeline) buildResultNode(ctx context.Context, st *ingestState, _ ...any) (*IngestResult, error) {
	if st == nil {
		return nil, fmt.Errorf("nil state")
	}
	if st.Err != nil {
		return nil, st.Err
	}

	res := &IngestResult{
		VideoID:    st.Req.VideoID,
		Segments:   len(st.Transcript.Segments),
		Chunks:     len(st.Chunks),
		VectorsOK:  st.Upserted,
		DurationMs: time.Since(st.Start).Milliseconds(),
	}
	zlog.Info("transcript ingested",
		zap.String("video_id", res.VideoID),
		zap.Int("segments", res.Segments),
		zap.Int("chunks", res.Chunks),
		zap.Int64("ms", res.DurationMs))
	return res, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(v[i])
	}
	return out
}
