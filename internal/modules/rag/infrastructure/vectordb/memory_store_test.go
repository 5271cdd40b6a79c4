package vectordb

import (
	"context"
	"fmt"
	"testing"

	"TubeSage/internal/modules/rag/domain/repository"
)

func testItem(videoID string, idx int, vec []float32) repository.VectorUpsertItem {
	return repository.VectorUpsertItem{
		ID:         fmt.Sprintf("%s:%d", videoID, idx),
		Vector:     vec,
		VideoID:    videoID,
		ChunkIndex: idx,
		Content:    fmt.Sprintf("chunk %d", idx),
		StartMs:    int64(idx) * 1000,
		EndMs:      int64(idx+1) * 1000,
	}
}

func TestUpsertAndSearch(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	_, err := s.Upsert(ctx, []repository.VectorUpsertItem{
		testItem("v1", 0, []float32{1, 0, 0}),
		testItem("v1", 1, []float32{0, 1, 0}),
		testItem("v1", 2, []float32{0, 0, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := s.Search(ctx, "v1", []float32{1, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkIndex != 0 {
		t.Errorf("expected closest chunk 0 first, got %d", hits[0].ChunkIndex)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("hits not sorted by score: %f < %f", hits[0].Score, hits[1].Score)
	}
}

func TestUpsertOverwritesSameKey(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	first := testItem("v1", 0, []float32{1, 0, 0})
	if _, err := s.Upsert(ctx, []repository.VectorUpsertItem{first}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// 同主键重写，不产生重复行
	second := first
	second.Content = "rewritten"
	if _, err := s.Upsert(ctx, []repository.VectorUpsertItem{second}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := s.ListByVideo(ctx, "v1")
	if err != nil {
		t.Fatalf("ListByVideo: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 record after overwrite, got %d", len(hits))
	}
	if hits[0].Content != "rewritten" {
		t.Errorf("overwrite did not take effect: %q", hits[0].Content)
	}
}

func TestSearchIsolatedPerVideo(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	_, err := s.Upsert(ctx, []repository.VectorUpsertItem{
		testItem("v1", 0, []float32{1, 0, 0}),
		testItem("v2", 0, []float32{1, 0, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := s.Search(ctx, "v1", []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.VideoID != "v1" {
			t.Errorf("hit from another video leaked into results: %s", h.VideoID)
		}
	}
}

func TestSearchTieBreakByChunkIndex(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	// 三个相同向量：分数一致，必须按 chunk_index 升序
	vec := []float32{1, 1, 0}
	_, err := s.Upsert(ctx, []repository.VectorUpsertItem{
		testItem("v1", 2, vec),
		testItem("v1", 0, vec),
		testItem("v1", 1, vec),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := s.Search(ctx, "v1", vec, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, h := range hits {
		if h.ChunkIndex != i {
			t.Errorf("position %d has chunk_index %d", i, h.ChunkIndex)
		}
	}
}

func TestListByVideoTimelineOrder(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	_, err := s.Upsert(ctx, []repository.VectorUpsertItem{
		testItem("v1", 3, []float32{0, 0, 1}),
		testItem("v1", 1, []float32{0, 1, 0}),
		testItem("v1", 0, []float32{1, 0, 0}),
		testItem("v1", 2, []float32{1, 1, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := s.ListByVideo(ctx, "v1")
	if err != nil {
		t.Fatalf("ListByVideo: %v", err)
	}
	for i, h := range hits {
		if h.ChunkIndex != i {
			t.Errorf("position %d has chunk_index %d, want timeline order", i, h.ChunkIndex)
		}
	}
}

func TestExistsAndDelete(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "v1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("empty store reports video as indexed")
	}

	if _, err := s.Upsert(ctx, []repository.VectorUpsertItem{testItem("v1", 0, []float32{1, 0, 0})}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ok, _ = s.Exists(ctx, "v1"); !ok {
		t.Error("indexed video reported missing")
	}

	if err := s.DeleteByVideo(ctx, "v1"); err != nil {
		t.Fatalf("DeleteByVideo: %v", err)
	}
	if ok, _ = s.Exists(ctx, "v1"); ok {
		t.Error("deleted video still reported as indexed")
	}
}

func TestUpsertRejectsDimMismatch(t *testing.T) {
	s := NewMemoryStore(3)
	_, err := s.Upsert(context.Background(), []repository.VectorUpsertItem{
		testItem("v1", 0, []float32{1, 0}),
	})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
