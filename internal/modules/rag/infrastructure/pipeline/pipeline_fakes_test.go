package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"TubeSage/internal/modules/rag/domain/video"
	"TubeSage/internal/modules/rag/infrastructure/llm"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeSource 可编程的字幕源，记录抓取次数
type fakeSource struct {
	transcript *video.Transcript
	err        error
	calls      atomic.Int32
}

func (f *fakeSource) Fetch(ctx context.Context, videoID string) (*video.Transcript, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	t := *f.transcript
	t.VideoID = videoID
	return &t, nil
}

// fakeChatModel 按脚本应答的聊天模型
type fakeChatModel struct {
	reply func(prompt string) (string, error)
	calls atomic.Int32
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls.Add(1)
	if len(in) == 0 {
		return nil, errors.New("no messages")
	}
	content, err := f.reply(in[len(in)-1].Content)
	if err != nil {
		return nil, err
	}
	return &schema.Message{Role: schema.Assistant, Content: content}, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

// fakeModelProvider 所有路由都返回同一个假模型
type fakeModelProvider struct {
	model *fakeChatModel
}

func (f *fakeModelProvider) GetModel(ctx context.Context, route llm.Route) (model.BaseChatModel, error) {
	return f.model, nil
}

func testTranscript(text string) *video.Transcript {
	return &video.Transcript{
		Segments: []video.Segment{
			{Text: text, StartMs: 0, DurationMs: 10000},
		},
	}
}

func testRouter() *llm.Router {
	return llm.NewRouter("http://localhost:11434/v1", "https://ollama.com/v1", "cloud", "test-model", time.Minute)
}
