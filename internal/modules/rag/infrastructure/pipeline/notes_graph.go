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

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notesState 笔记 Pipeline 的中间状态
type notesState struct {
	Req *NotesRequest

	NotesID string
	Route   llm.Route
	Groups  []string // 按时间线切好的原文分组
	Partial []string // map 阶段产出的分组笔记
	Skipped []int
	Notes   string

	Start time.Time
	LLMMs int64
	Err   error
}

func (p *NotesPipeline) buildGraph(ctx context.Context) (compose.Runnable[*NotesRequest, *NotesResult], error) {
	const (
		Validate    = "Validate"
		LoadChunks  = "LoadChunks"
		MapGroups   = "MapGroups"
		Reduce      = "Reduce"
		BuildResult = "BuildResult"
	)

	g := compose.NewGraph[*NotesRequest, *NotesResult]()

	_ = g.AddLambdaNode(Validate, compose.InvokableLambdaWithOption(p.validateNode), compose.WithNodeName(Validate))
	_ = g.AddLambdaNode(LoadChunks, compose.InvokableLambdaWithOption(p.loadChunksNode), compose.WithNodeName(LoadChunks))
	_ = g.AddLambdaNode(MapGroups, compose.InvokableLambdaWithOption(p.mapGroupsNode), compose.WithNodeName(MapGroups))
	_ = g.AddLambdaNode(Reduce, compose.InvokableLambdaWithOption(p.reduceNode), compose.WithNodeName(Reduce))
	_ = g.AddLambdaNode(BuildResult, compose.InvokableLambdaWithOption(p.buildResultNode), compose.WithNodeName(BuildResult))

	_ = g.AddEdge(compose.START, Validate)
	_ = g.AddEdge(Validate, LoadChunks)
	_ = g.AddEdge(LoadChunks, MapGroups)
	_ = g.AddEdge(MapGroups, Reduce)
	_ = g.AddEdge(Reduce, BuildResult)
	_ = g.AddEdge(BuildResult, compose.END)

	return g.Compile(ctx, compose.WithGraphName("NotesSynthesisPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// validateNode 节点 1：校验参数并派生路由
func (p *NotesPipeline) validateNode(ctx context.Context, req *NotesRequest, _ ...any) (*notesState, error) {
	st := &notesState{Req: req, Start: time.Now(), NotesID: fmt.Sprintf("n_%s", uuid.NewString())}
	if req == nil {
		st.Err = fmt.Errorf("notes request is nil")
		return st, nil
	}
	req.VideoID = strings.TrimSpace(req.VideoID)
	req.Topic = strings.TrimSpace(req.Topic)
	if req.VideoID == "" || req.Topic == "" {
		st.Err = xerr.ErrParam
		return st, nil
	}
	st.Route = p.router.Route(req.ModelName)
	return st, nil
}

// loadChunksNode 节点 2：取全量分块并按字符预算分组
func (p *NotesPipeline) loadChunksNode(ctx context.Context, st *notesState, _ ...any) (*notesState, error) {
	if st == nil {
		return &notesState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	hits, err := p.vs.ListByVideo(ctx, st.Req.VideoID)
	if err != nil {
		st.Err = mapProviderErr("list video chunks", err)
		return st, nil
	}
	if len(hits) == 0 {
		st.Err = xerr.Wrap(xerr.KindNotFound, "video has no indexed transcript", nil)
		return st, nil
	}
	st.Groups = partitionByBudget(hits, p.groupBudget)
	return st, nil
}

// mapGroupsNode 节点 3：对每组做一次抽取。
// 单组失败或模型判定无关（NONE）时跳过该组并记下下标，不终止整体流程。
func (p *NotesPipeline) mapGroupsNode(ctx context.Context, st *notesState, _ ...any) (*notesState, error) {
	if st == nil {
		return &notesState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	cm, err := p.models.GetModel(ctx, st.Route)
	if err != nil {
		st.Err = mapProviderErr("create chat model", err)
		return st, nil
	}

	start := time.Now()
	for i, group := range st.Groups {
		out, err := p.generate(ctx, cm, buildMapPrompt(group, st.Req.Topic))
		if err != nil {
			zlog.Warn("notes map step failed, skipping group",
				zap.String("video_id", st.Req.VideoID),
				zap.Int("group", i),
				zap.Error(err))
			st.Skipped = append(st.Skipped, i)
			continue
		}
		if isNoneAnswer(out) {
			st.Skipped = append(st.Skipped, i)
			continue
		}
		st.Partial = append(st.Partial, out)
	}
	st.LLMMs += time.Since(start).Milliseconds()

	if len(st.Partial) == 0 {
		st.Err = xerr.Wrap(xerr.KindSynthesisIncomplete, "all note groups failed or were irrelevant", nil)
		return st, nil
	}
	return st, nil
}

// reduceNode 节点 4：分层归并。
// 每轮把相邻分组笔记按字符预算并批归并，直到只剩一份。
func (p *NotesPipeline) reduceNode(ctx context.Context, st *notesState, _ ...any) (*notesState, error) {
	if st == nil {
		return &notesState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	cm, err := p.models.GetModel(ctx, st.Route)
	if err != nil {
		st.Err = mapProviderErr("create chat model", err)
		return st, nil
	}

	start := time.Now()
	partials := st.Partial
	for len(partials) > 1 {
		batches := batchByBudget(partials, p.groupBudget)
		next := make([]string, 0, len(batches))
		for _, batch := range batches {
			out, err := p.generate(ctx, cm, buildReducePrompt(batch, st.Req.Topic))
			if err != nil {
				st.LLMMs += time.Since(start).Milliseconds()
				st.Err = mapProviderErr("notes reduce step", err)
				return st, nil
			}
			next = append(next, out)
		}
		// 预算过小时 batchByBudget 也保证每批至少两项，轮数严格递减
		partials = next
	}
	st.LLMMs += time.Since(start).Milliseconds()

	// 只有一组时仍走一次 reduce，保证输出带标题且格式统一
	if len(st.Partial) == 1 && partials[0] == st.Partial[0] {
		out, err := p.generate(ctx, cm, buildReducePrompt(partials, st.Req.Topic))
		if err != nil {
			st.Err = mapProviderErr("notes reduce step", err)
			return st, nil
		}
		partials[0] = out
	}
	st.Notes = partials[0]
	return st, nil
}

// buildResultNode 节点 5：汇总
func (p *NotesPipeline) buildResultNode(ctx context.Context, st *notesState, _ ...any) (*NotesResult, error) {
	if st == nil {
		return nil, fmt.Errorf("nil state")
	}
	if st.Err != nil {
		return nil, st.Err
	}

	res := &NotesResult{
		NotesID:       st.NotesID,
		VideoID:       st.Req.VideoID,
		Topic:         st.Req.Topic,
		Notes:         st.Notes,
		Route:         st.Route,
		Groups:        len(st.Groups),
		SkippedGroups: st.Skipped,
		Incomplete:    len(st.Skipped) > 0,
		DurationMs:    time.Since(st.Start).Milliseconds(),
		LLMMs:         st.LLMMs,
	}
	zlog.Info("video notes synthesized",
		zap.String("notes_id", res.NotesID),
		zap.String("video_id", res.VideoID),
		zap.String("endpoint", st.Route.Kind.String()),
		zap.Int("groups", res.Groups),
		zap.Int("skipped", len(res.SkippedGroups)),
		zap.Int64("ms", res.DurationMs))
	return res, nil
}

func (p *NotesPipeline) generate(ctx context.Context, cm model.BaseChatModel, prompt string) (string, error) {
	resp, err := cm.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", err
	}
	return cleanModelOutput(resp.Content), nil
}

// partitionByBudget 把分块按时间线顺序拼成若干组，每组不超过 budget 个字符；
// 单个分块超预算时独占一组，保证不丢内容。
func partitionByBudget(hits []repository.VectorSearchHit, budget int) []string {
	var groups []string
	var cur strings.Builder
	for _, h := range hits {
		if cur.Len() > 0 && cur.Len()+len(h.Content)+1 > budget {
			groups = append(groups, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(h.Content)
	}
	if cur.Len() > 0 {
		groups = append(groups, cur.String())
	}
	return groups
}

// batchByBudget 把分组笔记按预算并批，且每批至少两项（最后一批可能只剩一项）
func batchByBudget(partials []string, budget int) [][]string {
	var batches [][]string
	var cur []string
	size := 0
	for _, part := range partials {
		if len(cur) >= 2 && size+len(part) > budget {
			batches = append(batches, cur)
			cur = nil
			size = 0
		}
		cur = append(cur, part)
		size += len(part)
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

func isNoneAnswer(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "NONE")
}
