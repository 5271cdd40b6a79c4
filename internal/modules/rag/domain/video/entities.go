package video

import "fmt"

// Segment 字幕中的一条带时间戳文本
type Segment struct {
	Text       string
	StartMs    int64
	DurationMs int64
}

// Transcript 一个视频的完整字幕，抓取后不可变，不做持久化
type Transcript struct {
	VideoID  string
	Segments []Segment
}

// Chunk 切片后的文本窗口，embedding 与召回的基本单位
type Chunk struct {
	VideoID    string
	ChunkIndex int
	Text       string
	StartMs    int64 // 覆盖的原始片段起始时间
	EndMs      int64 // 覆盖的原始片段结束时间
}

// Key 向量主键：同一 (video_id, chunk_index) 重复写入即覆盖
func (c Chunk) Key() string {
	return fmt.Sprintf("%s:%d", c.VideoID, c.ChunkIndex)
}

// IngestionState 单个视频的摄取状态机
type IngestionState int8

const (
	StateNotIngested IngestionState = iota
	StateIngesting
	StateReady
	StateFailed
)

func (s IngestionState) String() string {
	switch s {
	case StateIngesting:
		return "INGESTING"
	case StateReady:
		return "READY"
	case StateFailed:
		return "FAILED"
	default:
		return "NOT_INGESTED"
	}
}
