package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"TubeSage/internal/modules/rag/domain/repository"
)

// MemoryStore 进程内向量索引：按 video_id 分集合，暴力余弦相似度。
// 用于离线开发与测试；语义与 MilvusStore 一致（幂等覆盖、按视频隔离、确定性排序）。
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	// videoID -> 主键 -> 记录
	collections map[string]map[string]memoryRecord
}

type memoryRecord struct {
	item repository.VectorUpsertItem
}

var _ repository.VectorStore = (*MemoryStore)(nil)

func NewMemoryStore(dimension int) *MemoryStore {
	if dimension <= 0 {
		dimension = 768
	}
	return &MemoryStore{
		dimension:   dimension,
		collections: make(map[string]map[string]memoryRecord),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, items []repository.VectorUpsertItem) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			return nil, errors.New("upsert item missing ID")
		}
		if len(it.Vector) != s.dimension {
			return nil, fmt.Errorf("vector dim mismatch for id=%s, got=%d want=%d", it.ID, len(it.Vector), s.dimension)
		}
		coll, ok := s.collections[it.VideoID]
		if !ok {
			coll = make(map[string]memoryRecord)
			s.collections[it.VideoID] = coll
		}
		// 同主键覆盖而不是追加
		coll[it.ID] = memoryRecord{item: it}
		ids = append(ids, it.ID)
	}
	return ids, nil
}

func (s *MemoryStore) Search(ctx context.Context, videoID string, vector []float32, topK int) ([]repository.VectorSearchHit, error) {
	if topK <= 0 {
		topK = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[videoID]
	hits := make([]repository.VectorSearchHit, 0, len(coll))
	for _, rec := range coll {
		hits = append(hits, toHit(rec.item, cosine(vector, rec.item.Vector)))
	}
	sortHits(hits)
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) ListByVideo(ctx context.Context, videoID string) ([]repository.VectorSearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[videoID]
	hits := make([]repository.VectorSearchHit, 0, len(coll))
	for _, rec := range coll {
		hits = append(hits, toHit(rec.item, 0))
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ChunkIndex < hits[j].ChunkIndex })
	return hits, nil
}

func (s *MemoryStore) Exists(ctx context.Context, videoID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[videoID]) > 0, nil
}

func (s *MemoryStore) DeleteByVideo(ctx context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, videoID)
	return nil
}

func toHit(it repository.VectorUpsertItem, score float32) repository.VectorSearchHit {
	return repository.VectorSearchHit{
		ID:         it.ID,
		Score:      score,
		VideoID:    it.VideoID,
		ChunkIndex: it.ChunkIndex,
		Content:    it.Content,
		StartMs:    it.StartMs,
		EndMs:      it.EndMs,
	}
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
