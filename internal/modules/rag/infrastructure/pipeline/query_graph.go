package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TubeSage/internal/modules/rag/domain/repository"
	"TubeSage/internal/modules/rag/infrastructure/llm"
	"TubeSage/pkg/xerr"
	"TubeSage/pkg/zlog"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// queryState 问答 Pipeline 的中间状态
type queryState struct {
	Req *QueryRequest

	QueryID  string
	Route    llm.Route
	QueryVec []float32
	Hits     []repository.VectorSearchHit
	Answer   string
	Source   string

	Start       time.Time
	EmbeddingMs int64
	SearchMs    int64
	LLMMs       int64
	Err         error
}

func (p *QueryPipeline) buildGraph(ctx context.Context) (compose.Runnable[*QueryRequest, *QueryResult], error) {
	const (
		Validate      = "Validate"
		EmbedQuestion = "EmbedQuestion"
		SearchVector  = "SearchVector"
		Generate      = "Generate"
		BuildResult   = "BuildResult"
	)

	g := compose.NewGraph[*QueryRequest, *QueryResult]()

	_ = g.AddLambdaNode(Validate, compose.InvokableLambdaWithOption(p.validateNode), compose.WithNodeName(Validate))
	_ = g.AddLambdaNode(EmbedQuestion, compose.InvokableLambdaWithOption(p.embedQuestionNode), compose.WithNodeName(EmbedQuestion))
	_ = g.AddLambdaNode(SearchVector, compose.InvokableLambdaWithOption(p.searchVectorNode), compose.WithNodeName(SearchVector))
	_ = g.AddLambdaNode(Generate, compose.InvokableLambdaWithOption(p.generateNode), compose.WithNodeName(Generate))
	_ = g.AddLambdaNode(BuildResult, compose.InvokableLambdaWithOption(p.buildResultNode), compose.WithNodeName(BuildResult))

	_ = g.AddEdge(compose.START, Validate)
	_ = g.AddEdge(Validate, EmbedQuestion)
	_ = g.AddEdge(EmbedQuestion, SearchVector)
	_ = g.AddEdge(SearchVector, Generate)
	_ = g.AddEdge(Generate, BuildResult)
	_ = g.AddEdge(BuildResult, compose.END)

	return g.Compile(ctx, compose.WithGraphName("TranscriptQueryPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// validateNode 节点 1：校验参数
func (p *QueryPipeline) validateNode(ctx context.Context, req *QueryRequest, _ ...any) (*queryState, error) {
	st := &queryState{Req: req, Start: time.Now(), QueryID: fmt.Sprintf("q_%s", uuid.NewString())}
	if req == nil {
		st.Err = fmt.Errorf("query request is nil")
		return st, nil
	}
	req.VideoID = strings.TrimSpace(req.VideoID)
	req.Question = strings.TrimSpace(req.Question)
	if req.VideoID == "" || req.Question == "" {
		st.Err = xerr.ErrParam
		return st, nil
	}
	st.Route = p.router.Route(req.ModelName)
	return st, nil
}

// embedQuestionNode 节点 2：问题向量化（与摄取共用同一 embedder）
func (p *QueryPipeline) embedQuestionNode(ctx context.Context, st *queryState, _ ...any) (*queryState, error) {
	if st == nil {
		return &queryState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	start := time.Now()
	vecs, err := p.embedder.EmbedStrings(ctx, []string{st.Req.Question})
	if err != nil {
		st.Err = mapProviderErr("embed question", err)
		return st, nil
	}
	if len(vecs) != 1 {
		st.Err = xerr.Wrap(xerr.KindProviderError, "embedding returned no vector", nil)
		return st, nil
	}
	st.QueryVec = toFloat32(vecs[0])
	st.EmbeddingMs = time.Since(start).Milliseconds()
	return st, nil
}

// searchVectorNode 节点 3：top-k 召回，只在该视频的集合内检索
func (p *QueryPipeline) searchVectorNode(ctx context.Context, st *queryState, _ ...any) (*queryState, error) {
	if st == nil {
		return &queryState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	start := time.Now()
	hits, err := p.vs.Search(ctx, st.Req.VideoID, st.QueryVec, p.topK)
	if err != nil {
		st.Err = mapProviderErr("vector search", err)
		return st, nil
	}
	st.Hits = hits
	st.SearchMs = time.Since(start).Milliseconds()
	return st, nil
}

// generateNode 节点 4：组 grounded prompt 并调用 LLM
func (p *QueryPipeline) generateNode(ctx context.Context, st *queryState, _ ...any) (*queryState, error) {
	if st == nil {
		return &queryState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	contexts := make([]string, 0, len(st.Hits))
	for _, h := range st.Hits {
		contexts = append(contexts, h.Content)
	}
	prompt := buildAnswerPrompt(strings.Join(contexts, "\n\n"), st.Req.Question)

	cm, err := p.models.GetModel(ctx, st.Route)
	if err != nil {
		st.Err = mapProviderErr("create chat model", err)
		return st, nil
	}

	start := time.Now()
	resp, err := cm.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		st.Err = mapProviderErr("chat completion", err)
		return st, nil
	}
	st.LLMMs = time.Since(start).Milliseconds()
	st.Answer, st.Source = parseAnswer(resp.Content)
	return st, nil
}

// buildResultNode 节点 5：汇总
func (p *QueryPipeline) buildResultNode(ctx context.Context, st *queryState, _ ...any) (*QueryResult, error) {
	if st == nil {
		return nil, fmt.Errorf("nil state")
	}
	if st.Err != nil {
		return nil, st.Err
	}

	res := &QueryResult{
		QueryID:     st.QueryID,
		VideoID:     st.Req.VideoID,
		Question:    st.Req.Question,
		Answer:      st.Answer,
		Source:      st.Source,
		Hits:        st.Hits,
		Route:       st.Route,
		DurationMs:  time.Since(st.Start).Milliseconds(),
		EmbeddingMs: st.EmbeddingMs,
		SearchMs:    st.SearchMs,
		LLMMs:       st.LLMMs,
	}
	zlog.Info("transcript query answered",
		zap.String("query_id", res.QueryID),
		zap.String("video_id", res.VideoID),
		zap.String("endpoint", st.Route.Kind.String()),
		zap.Int("hits", len(res.Hits)),
		zap.Int64("ms", res.DurationMs))
	return res, nil
}
