package request

// IngestRequest 摄取请求：只需视频 ID，幂等，可重复调用
type IngestRequest struct {
	VideoID string `json:"video_id" binding:"required"` // YouTube 视频 ID（必填）
}

// QueryRequest 问答请求
type QueryRequest struct {
	VideoID   string `json:"video_id" binding:"required"` // 视频 ID（必填）
	Question  string `json:"question" binding:"required"` // 用户问题（必填）
	ModelName string `json:"model_name"`                  // 留空使用默认模型
}

// NotesRequest 笔记合成请求
type NotesRequest struct {
	VideoID   string `json:"video_id" binding:"required"` // 视频 ID（必填）
	Topic     string `json:"topic" binding:"required"`    // 笔记主题（必填）
	ModelName string `json:"model_name"`                  // 留空使用默认模型
}
