package vectordb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"TubeSage/internal/modules/rag/domain/repository"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusStore 基于 Milvus 的向量索引实现。
// 每条向量带 video_id 字段，检索与枚举都强制按 video_id 过滤，保证视频间隔离；
// 主键为 "<video_id>:<chunk_index>"，Upsert 天然幂等。
type MilvusStore struct {
	cli         mclient.Client
	collection  string
	vectorField string
	metricType  entity.MetricType
	vectorDim   int
	searchParam entity.SearchParam
}

var _ repository.VectorStore = (*MilvusStore)(nil)

var outputFields = []string{"video_id", "chunk_index", "content", "start_ms", "end_ms"}

func NewMilvusStore(cli mclient.Client, collection string, vectorDim int, metricType entity.MetricType) (*MilvusStore, error) {
	if cli == nil {
		return nil, errors.New("milvus client is nil")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("collection is empty")
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("invalid vectorDim: %d", vectorDim)
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	return &MilvusStore{
		cli:         cli,
		collection:  collection,
		vectorField: "vector",
		metricType:  metricType,
		vectorDim:   vectorDim,
		searchParam: sp,
	}, nil
}

func (s *MilvusStore) Upsert(ctx context.Context, items []repository.VectorUpsertItem) ([]string, error) {
	if len(items) == 0 {
		return []string{}, nil
	}
	ids := make([]string, 0, len(items))
	vectors := make([][]float32, 0, len(items))
	videoIDs := make([]string, 0, len(items))
	chunkIdxs := make([]int64, 0, len(items))
	contents := make([]string, 0, len(items))
	startMs := make([]int64, 0, len(items))
	endMs := make([]int64, 0, len(items))

	for _, it := range items {
		if it.ID == "" {
			return nil, errors.New("upsert item missing ID")
		}
		if len(it.Vector) != s.vectorDim {
			return nil, fmt.Errorf("vector dim mismatch for id=%s, got=%d want=%d", it.ID, len(it.Vector), s.vectorDim)
		}
		ids = append(ids, it.ID)
		vectors = append(vectors, it.Vector)
		videoIDs = append(videoIDs, it.VideoID)
		chunkIdxs = append(chunkIdxs, int64(it.ChunkIndex))
		contents = append(contents, it.Content)
		startMs = append(startMs, it.StartMs)
		endMs = append(endMs, it.EndMs)
	}

	_, err := s.cli.Upsert(
		ctx,
		s.collection,
		"",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector(s.vectorField, s.vectorDim, vectors),
		entity.NewColumnVarChar("video_id", videoIDs),
		entity.NewColumnInt64("chunk_index", chunkIdxs),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnInt64("start_ms", startMs),
		entity.NewColumnInt64("end_ms", endMs),
	)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *MilvusStore) Search(ctx context.Context, videoID string, vector []float32, topK int) ([]repository.VectorSearchHit, error) {
	if len(vector) != s.vectorDim {
		return nil, fmt.Errorf("vector dim mismatch, got=%d want=%d", len(vector), s.vectorDim)
	}
	if topK <= 0 {
		topK = 5
	}
	res, err := s.cli.Search(
		ctx,
		s.collection,
		[]string{},
		videoFilterExpr(videoID),
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		s.vectorField,
		s.metricType,
		topK,
		s.searchParam,
	)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return []repository.VectorSearchHit{}, nil
	}
	hits, err := parseSearchResult(res[0])
	if err != nil {
		return nil, err
	}
	sortHits(hits)
	return hits, nil
}

func (s *MilvusStore) ListByVideo(ctx context.Context, videoID string) ([]repository.VectorSearchHit, error) {
	rs, err := s.cli.Query(ctx, s.collection, []string{}, videoFilterExpr(videoID), outputFields)
	if err != nil {
		return nil, err
	}
	hits, err := parseResultSet(rs)
	if err != nil {
		return nil, err
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ChunkIndex < hits[j].ChunkIndex })
	return hits, nil
}

func (s *MilvusStore) Exists(ctx context.Context, videoID string) (bool, error) {
	rs, err := s.cli.Query(ctx, s.collection, []string{}, videoFilterExpr(videoID), []string{"chunk_index"}, mclient.WithLimit(1))
	if err != nil {
		return false, err
	}
	hits, err := parseResultSet(rs)
	if err != nil {
		return false, err
	}
	return len(hits) > 0, nil
}

func (s *MilvusStore) DeleteByVideo(ctx context.Context, videoID string) error {
	return s.cli.Delete(ctx, s.collection, "", videoFilterExpr(videoID))
}

// videoFilterExpr video_id 过滤表达式，所有读路径都必须带上，防止跨视频串数据
func videoFilterExpr(videoID string) string {
	return fmt.Sprintf(`video_id == "%s"`, strings.ReplaceAll(videoID, `"`, ``))
}

// sortHits 保证得分非递增，平分按 chunk_index 升序（排序结果确定）
func sortHits(hits []repository.VectorSearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
}

func parseSearchResult(sr mclient.SearchResult) ([]repository.VectorSearchHit, error) {
	if sr.Err != nil {
		return nil, sr.Err
	}
	hits := make([]repository.VectorSearchHit, 0, sr.ResultCount)

	idCol := sr.IDs
	videoCol := columnByName(sr.Fields, "video_id")
	chunkIdxCol := columnByName(sr.Fields, "chunk_index")
	contentCol := columnByName(sr.Fields, "content")
	startCol := columnByName(sr.Fields, "start_ms")
	endCol := columnByName(sr.Fields, "end_ms")

	for i := 0; i < sr.ResultCount; i++ {
		id, _ := idCol.GetAsString(i)
		score := float32(0)
		if i < len(sr.Scores) {
			score = sr.Scores[i]
		}
		h := repository.VectorSearchHit{ID: id, Score: score}
		fillHit(&h, i, videoCol, chunkIdxCol, contentCol, startCol, endCol)
		hits = append(hits, h)
	}
	return hits, nil
}

func parseResultSet(rs mclient.ResultSet) ([]repository.VectorSearchHit, error) {
	videoCol := columnByName(rs, "video_id")
	chunkIdxCol := columnByName(rs, "chunk_index")
	contentCol := columnByName(rs, "content")
	startCol := columnByName(rs, "start_ms")
	endCol := columnByName(rs, "end_ms")

	n := 0
	if chunkIdxCol != nil {
		n = chunkIdxCol.Len()
	}
	hits := make([]repository.VectorSearchHit, 0, n)
	for i := 0; i < n; i++ {
		var h repository.VectorSearchHit
		fillHit(&h, i, videoCol, chunkIdxCol, contentCol, startCol, endCol)
		if h.VideoID != "" && h.ChunkIndex >= 0 {
			h.ID = fmt.Sprintf("%s:%d", h.VideoID, h.ChunkIndex)
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func fillHit(h *repository.VectorSearchHit, i int, videoCol, chunkIdxCol, contentCol, startCol, endCol entity.Column) {
	if videoCol != nil {
		v, _ := videoCol.GetAsString(i)
		h.VideoID = v
	}
	if chunkIdxCol != nil {
		v, _ := chunkIdxCol.GetAsInt64(i)
		h.ChunkIndex = int(v)
	}
	if contentCol != nil {
		v, _ := contentCol.GetAsString(i)
		h.Content = v
	}
	if startCol != nil {
		v, _ := startCol.GetAsInt64(i)
		h.StartMs = v
	}
	if endCol != nil {
		v, _ := endCol.GetAsInt64(i)
		h.EndMs = v
	}
}

func columnByName(cols mclient.ResultSet, name string) entity.Column {
	for _, c := range cols {
		if c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}
