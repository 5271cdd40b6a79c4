package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TubeSage/internal/modules/rag/domain/repository"
	"TubeSage/internal/modules/rag/domain/video"
	"TubeSage/pkg/xerr"
	"TubeSage/pkg/zlog"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://www.youtube.com/api/timedtext"

// YouTubeSource 通过 timedtext 接口抓取字幕（json3 格式）。
// 优先人工字幕轨，没有则回退自动字幕轨（asr），与原始行为保持一致。
type YouTubeSource struct {
	baseURL  string
	language string
	client   *http.Client
}

var _ repository.TranscriptSource = (*YouTubeSource)(nil)

func NewYouTubeSource(baseURL, language string, timeout time.Duration) *YouTubeSource {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if strings.TrimSpace(language) == "" {
		language = "en"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YouTubeSource{
		baseURL:  baseURL,
		language: language,
		client:   &http.Client{Timeout: timeout},
	}
}

// timedtext json3 结构：events[].segs[].utf8 携带文本，tStartMs/dDurationMs 携带时间轴
type json3Body struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	TStartMs    int64      `json:"tStartMs"`
	DDurationMs int64      `json:"dDurationMs"`
	Segs        []json3Seg `json:"segs"`
}

type json3Seg struct {
	UTF8 string `json:"utf8"`
}

// Fetch 抓取一个视频的字幕。无字幕轨返回 KindNotFound，上游异常返回
// KindTranscriptsUnavailable，超时返回 KindTimeout。
func (s *YouTubeSource) Fetch(ctx context.Context, videoID string) (*video.Transcript, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, xerr.ErrParam
	}

	// 1. 人工字幕轨
	segs, err := s.fetchTrack(ctx, videoID, false)
	if err == nil && len(segs) > 0 {
		return &video.Transcript{VideoID: videoID, Segments: segs}, nil
	}
	if err != nil && !errors.Is(err, xerr.ErrNotFound) {
		return nil, err
	}

	// 2. 自动字幕轨兜底
	segs, err = s.fetchTrack(ctx, videoID, true)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, xerr.Wrap(xerr.KindNotFound, fmt.Sprintf("no %s subtitles for video %s", s.language, videoID), nil)
	}
	zlog.Info("transcript fetched from asr track", zap.String("video_id", videoID), zap.Int("segments", len(segs)))
	return &video.Transcript{VideoID: videoID, Segments: segs}, nil
}

func (s *YouTubeSource) fetchTrack(ctx context.Context, videoID string, asr bool) ([]video.Segment, error) {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", s.language)
	q.Set("fmt", "json3")
	if asr {
		q.Set("kind", "asr")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindTranscriptsUnavailable, "build timedtext request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, xerr.Wrap(xerr.KindTimeout, "timedtext request timed out", err)
		}
		return nil, xerr.Wrap(xerr.KindTranscriptsUnavailable, "timedtext request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, xerr.Wrap(xerr.KindNotFound, fmt.Sprintf("no subtitle track for video %s", videoID), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, xerr.Wrap(xerr.KindTranscriptsUnavailable, fmt.Sprintf("timedtext status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, xerr.Wrap(xerr.KindTranscriptsUnavailable, "read timedtext body", err)
	}
	// 没有对应字幕轨时接口会返回空 body
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, xerr.Wrap(xerr.KindNotFound, fmt.Sprintf("empty subtitle track for video %s", videoID), nil)
	}

	var parsed json3Body
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, xerr.Wrap(xerr.KindTranscriptsUnavailable, "parse timedtext json3", err)
	}

	return flattenEvents(parsed.Events), nil
}

// flattenEvents 把 json3 事件压平成有序片段，跳过纯格式事件与换行
func flattenEvents(events []json3Event) []video.Segment {
	segments := make([]video.Segment, 0, len(events))
	for _, ev := range events {
		if len(ev.Segs) == 0 {
			continue
		}
		var b strings.Builder
		for _, seg := range ev.Segs {
			if seg.UTF8 == "\n" {
				continue
			}
			b.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		segments = append(segments, video.Segment{
			Text:       text,
			StartMs:    ev.TStartMs,
			DurationMs: ev.DDurationMs,
		})
	}
	return segments
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
