package repository

import "context"

// VectorStore 是 domain 层定义的“向量库能力抽象”。
//
// 设计约束：
// 1) application / domain 只能依赖本接口，不应直接依赖 Milvus SDK 或 Eino。
// 2) infrastructure 通过适配器实现本接口（MilvusStore / MemoryStore），从而做到可替换。
//
// 隔离约定：所有读写都以 video_id 为命名空间，检索永远不会跨视频返回结果。
// 幂等约定：主键为 "<video_id>:<chunk_index>"，重复写入覆盖而不是追加。

// VectorUpsertItem 向量写入所需的标准字段
type VectorUpsertItem struct {
	ID         string
	Vector     []float32
	VideoID    string
	ChunkIndex int
	Content    string
	StartMs    int64
	EndMs      int64
}

// VectorSearchHit 向量检索命中
type VectorSearchHit struct {
	ID         string
	Score      float32
	VideoID    string
	ChunkIndex int
	Content    string
	StartMs    int64
	EndMs      int64
}

// VectorStore 向量数据库接口
type VectorStore interface {
	Upsert(ctx context.Context, items []VectorUpsertItem) ([]string, error)
	// Search 在指定视频的集合内做 k 近邻检索，得分非递增，平分按 chunk_index 升序
	Search(ctx context.Context, videoID string, vector []float32, topK int) ([]VectorSearchHit, error)
	// ListByVideo 按 chunk_index 升序枚举一个视频的全部 chunk（笔记合成需要时间线顺序）
	ListByVideo(ctx context.Context, videoID string) ([]VectorSearchHit, error)
	// Exists 判断视频集合是否已建立
	Exists(ctx context.Context, videoID string) (bool, error)
	// DeleteByVideo 清除一个视频的全部向量（失败回滚用，保证不留半成品集合）
	DeleteByVideo(ctx context.Context, videoID string) error
}
