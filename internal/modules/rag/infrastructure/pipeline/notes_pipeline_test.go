package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"TubeSage/internal/modules/rag/domain/repository"
	"TubeSage/internal/modules/rag/infrastructure/vectordb"
	"TubeSage/pkg/xerr"
)

// seedChunks 直接灌入带序号的分块，方便控制分组
func seedChunks(t *testing.T, vs *vectordb.MemoryStore, videoID string, contents []string) {
	t.Helper()
	items := make([]repository.VectorUpsertItem, 0, len(contents))
	vec := make([]float32, testDim)
	vec[0] = 1
	for i, c := range contents {
		items = append(items, repository.VectorUpsertItem{
			ID:         videoID + ":" + itoa(i),
			Vector:     vec,
			VideoID:    videoID,
			ChunkIndex: i,
			Content:    c,
			StartMs:    int64(i) * 1000,
			EndMs:      int64(i+1) * 1000,
		})
	}
	if _, err := vs.Upsert(context.Background(), items); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func TestNotesPipelineEndToEnd(t *testing.T) {
	vs := vectordb.NewMemoryStore(testDim)
	seedChunks(t, vs, "vid-n", []string{
		"first the speaker introduces goroutines",
		"then channels are explained with examples",
		"finally the select statement ties it together",
	})

	cm := &fakeChatModel{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "merging partial notes") {
			return "# Concurrency in Go\n- goroutines\n- channels\n- select", nil
		}
		return "- a point from this section", nil
	}}

	pipe, err := NewNotesPipeline(vs, testRouter(), &fakeModelProvider{model: cm}, 50)
	if err != nil {
		t.Fatalf("NewNotesPipeline: %v", err)
	}

	res, err := pipe.Synthesize(context.Background(), NotesRequest{VideoID: "vid-n", Topic: "concurrency"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(res.Notes, "Concurrency in Go") {
		t.Errorf("unexpected notes: %q", res.Notes)
	}
	if res.Groups != 3 {
		t.Errorf("expected 3 groups with a 50 char budget, got %d", res.Groups)
	}
	if res.Incomplete || len(res.SkippedGroups) != 0 {
		t.Errorf("unexpected incomplete flag: %v %v", res.Incomplete, res.SkippedGroups)
	}
	if !strings.HasPrefix(res.NotesID, "n_") {
		t.Errorf("bad notes id: %q", res.NotesID)
	}
}

func TestNotesPipelineSkipsFailedGroups(t *testing.T) {
	vs := vectordb.NewMemoryStore(testDim)
	seedChunks(t, vs, "vid-s", []string{
		"group zero talks about the topic",
		"group one is broken somehow",
		"group two talks about the topic again",
	})

	cm := &fakeChatModel{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "merging partial notes") {
			return "merged notes", nil
		}
		if strings.Contains(prompt, "group one") {
			return "", errors.New("model hiccup")
		}
		return "- extracted point", nil
	}}

	pipe, err := NewNotesPipeline(vs, testRouter(), &fakeModelProvider{model: cm}, 40)
	if err != nil {
		t.Fatalf("NewNotesPipeline: %v", err)
	}

	res, err := pipe.Synthesize(context.Background(), NotesRequest{VideoID: "vid-s", Topic: "the topic"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !res.Incomplete {
		t.Error("expected incomplete flag after a skipped group")
	}
	if len(res.SkippedGroups) != 1 || res.SkippedGroups[0] != 1 {
		t.Errorf("unexpected skipped groups: %v", res.SkippedGroups)
	}
	if res.Notes != "merged notes" {
		t.Errorf("unexpected notes: %q", res.Notes)
	}
}

func TestNotesPipelineSkipsIrrelevantGroups(t *testing.T) {
	vs := vectordb.NewMemoryStore(testDim)
	seedChunks(t, vs, "vid-i", []string{
		"relevant material about rust lifetimes",
		"a long advertisement break for socks",
	})

	cm := &fakeChatModel{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "merging partial notes") {
			return "final notes", nil
		}
		if strings.Contains(prompt, "advertisement") {
			return "NONE", nil
		}
		return "- lifetimes bullet", nil
	}}

	pipe, err := NewNotesPipeline(vs, testRouter(), &fakeModelProvider{model: cm}, 45)
	if err != nil {
		t.Fatalf("NewNotesPipeline: %v", err)
	}

	res, err := pipe.Synthesize(context.Background(), NotesRequest{VideoID: "vid-i", Topic: "lifetimes"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(res.SkippedGroups) != 1 {
		t.Errorf("expected 1 skipped group, got %v", res.SkippedGroups)
	}
}

func TestNotesPipelineAllGroupsFail(t *testing.T) {
	vs := vectordb.NewMemoryStore(testDim)
	seedChunks(t, vs, "vid-x", []string{"some content", "more content"})

	cm := &fakeChatModel{reply: func(string) (string, error) {
		return "", errors.New("provider down")
	}}

	pipe, err := NewNotesPipeline(vs, testRouter(), &fakeModelProvider{model: cm}, 30)
	if err != nil {
		t.Fatalf("NewNotesPipeline: %v", err)
	}

	_, err = pipe.Synthesize(context.Background(), NotesRequest{VideoID: "vid-x", Topic: "t"})
	if err == nil {
		t.Fatal("expected synthesis failure")
	}
	if xerr.KindOf(err) != xerr.KindSynthesisIncomplete {
		t.Errorf("error kind = %s", xerr.KindOf(err))
	}
}

func TestNotesPipelineUnknownVideo(t *testing.T) {
	vs := vectordb.NewMemoryStore(testDim)
	cm := &fakeChatModel{reply: func(string) (string, error) { return "ok", nil }}

	pipe, err := NewNotesPipeline(vs, testRouter(), &fakeModelProvider{model: cm}, 100)
	if err != nil {
		t.Fatalf("NewNotesPipeline: %v", err)
	}

	_, err = pipe.Synthesize(context.Background(), NotesRequest{VideoID: "vid-missing", Topic: "t"})
	if err == nil {
		t.Fatal("expected error for unindexed video")
	}
	if xerr.KindOf(err) != xerr.KindNotFound {
		t.Errorf("error kind = %s", xerr.KindOf(err))
	}
}

func TestPartitionByBudget(t *testing.T) {
	hits := []repository.VectorSearchHit{
		{ChunkIndex: 0, Content: "aaaa"},
		{ChunkIndex: 1, Content: "bbbb"},
		{ChunkIndex: 2, Content: "cccc"},
	}
	groups := partitionByBudget(hits, 10)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %v", len(groups), groups)
	}
	if groups[0] != "aaaa\nbbbb" || groups[1] != "cccc" {
		t.Errorf("unexpected grouping: %v", groups)
	}

	// 单块超预算时独占一组，不丢内容
	big := []repository.VectorSearchHit{{Content: strings.Repeat("z", 50)}, {Content: "tail"}}
	groups = partitionByBudget(big, 10)
	if len(groups) != 2 {
		t.Fatalf("oversized chunk not isolated: %v", groups)
	}
}

func TestBatchByBudget(t *testing.T) {
	batches := batchByBudget([]string{"aa", "bb", "cc", "dd"}, 5)
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total != 4 {
		t.Errorf("batching dropped items: %v", batches)
	}
	// 每批至少两项，保证归并轮数递减
	for i, b := range batches {
		if len(b) < 2 && i != len(batches)-1 {
			t.Errorf("batch %d has %d items", i, len(b))
		}
	}
}

func TestIsNoneAnswer(t *testing.T) {
	for _, s := range []string{"NONE", "none", "  None  "} {
		if !isNoneAnswer(s) {
			t.Errorf("%q not recognized as none", s)
		}
	}
	if isNoneAnswer("- NONE of this matters, here are notes") {
		t.Error("substring misdetected as none answer")
	}
}
