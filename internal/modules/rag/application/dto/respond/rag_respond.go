package respond

// 答案来源标记，沿用上游约定：命中上下文 / 模型自身知识 / 两者结合
const (
	SourceContext           = "context"
	SourceInternalKnowledge = "internal_knowledge"
	SourceMixed             = "context_and_internal_knowledge"
)

// SourceChunk 召回命中的单个 chunk，按相似度排名返回，调用方可据此审计出处
type SourceChunk struct {
	ChunkIndex int     `json:"chunk_index"` // 时间线上的切片序号
	Score      float32 `json:"score"`       // 相似度得分（越高越相关）
	Content    string  `json:"content"`     // chunk 文本内容
	StartMs    int64   `json:"start_ms"`    // 对应视频时间轴起点
	EndMs      int64   `json:"end_ms"`      // 对应视频时间轴终点
}

// IngestRespond 摄取结果
type IngestRespond struct {
	VideoID    string `json:"video_id"`
	State      string `json:"state"`    // READY / FAILED
	Segments   int    `json:"segments"` // 抓到的字幕片段数
	Chunks     int    `json:"chunks"`   // 写入索引的 chunk 数
	Reused     bool   `json:"reused"`   // 命中幂等快路径，未重新构建
	DurationMs int64  `json:"duration_ms"`
}

// QueryRespond 问答结果
type QueryRespond struct {
	QueryID      string        `json:"query_id"` // 本次查询唯一 ID（便于追踪回放）
	VideoID      string        `json:"video_id"`
	Question     string        `json:"question"`
	Answer       string        `json:"answer"`
	Source       string        `json:"source"`        // context / internal_knowledge
	SourceChunks []SourceChunk `json:"source_chunks"` // 按召回排名排序
	Model        string        `json:"model"`
	Endpoint     string        `json:"endpoint"` // local / remote
	DurationMs   int64         `json:"duration_ms"`
	EmbeddingMs  int64         `json:"embedding_ms"`
	SearchMs     int64         `json:"search_ms"`
	LLMMs        int64         `json:"llm_ms"`
}

// NotesRespond 笔记合成结果
type NotesRespond struct {
	NotesID       string `json:"notes_id"`
	VideoID       string `json:"video_id"`
	Topic         string `json:"topic"`
	Notes         string `json:"notes"`
	Model         string `json:"model"`
	Endpoint      string `json:"endpoint"`
	Groups        int    `json:"groups"`         // map 阶段分组数
	SkippedGroups []int  `json:"skipped_groups"` // map 失败被跳过的组（空表示全覆盖）
	Incomplete    bool   `json:"incomplete"`     // 有组被跳过时为 true
	DurationMs    int64  `json:"duration_ms"`
	LLMMs         int64  `json:"llm_ms"`
}
