package pipeline

import (
	"context"
	"fmt"

	"TubeSage/internal/modules/rag/domain/repository"
	"TubeSage/internal/modules/rag/infrastructure/llm"

	"github.com/cloudwego/eino/compose"
)

// NotesRequest 笔记合成 Pipeline 的输入
type NotesRequest struct {
	VideoID   string
	Topic     string
	ModelName string
}

// NotesResult 笔记合成 Pipeline 的输出
type NotesResult struct {
	NotesID       string
	VideoID       string
	Topic         string
	Notes         string
	Route         llm.Route
	Groups        int
	SkippedGroups []int // 失败或无关被跳过的分组下标（0 起）
	Incomplete    bool
	DurationMs    int64
	LLMMs         int64
}

// NotesPipeline 按时间线 map-reduce 合成整视频笔记。
//
// 1. 取出该视频全部分块（按 chunk_index 升序，即时间线顺序）。
// 2. 按字符预算切成若干组，对每组做一次抽取（map）。
// 3. 抽取结果分层归并（reduce），直到单次归并放得下为止。
// 部分组失败不终止合成，结果标记 Incomplete；全部失败才报错。
type NotesPipeline struct {
	vs          repository.VectorStore
	router      *llm.Router
	models      llm.ModelProvider
	groupBudget int
	r           compose.Runnable[*NotesRequest, *NotesResult]
}

func NewNotesPipeline(vs repository.VectorStore, router *llm.Router, models llm.ModelProvider, groupBudgetChars int) (*NotesPipeline, error) {
	if vs == nil {
		return nil, fmt.Errorf("vector store is nil")
	}
	if router == nil {
		return nil, fmt.Errorf("router is nil")
	}
	if models == nil {
		return nil, fmt.Errorf("model provider is nil")
	}
	if groupBudgetChars <= 0 {
		groupBudgetChars = 6000
	}
	p := &NotesPipeline{vs: vs, router: router, models: models, groupBudget: groupBudgetChars}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Synthesize 执行一次笔记合成（封装 Eino Runnable.Invoke）
func (p *NotesPipeline) Synthesize(ctx context.Context, req NotesRequest) (*NotesResult, error) {
	return p.r.Invoke(ctx, &req)
}
