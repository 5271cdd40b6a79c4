package repository

import (
	"context"

	"TubeSage/internal/modules/rag/domain/video"
)

// TranscriptSource 字幕来源抽象。失败时返回 xerr.KindNotFound（无字幕轨）
// 或 xerr.KindTranscriptsUnavailable（上游服务不可用）。
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) (*video.Transcript, error)
}
