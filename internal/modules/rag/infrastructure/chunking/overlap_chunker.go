package chunking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"TubeSage/internal/modules/rag/domain/video"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// boundaryScanBack 在切点附近回退寻找空白的最大距离，超过则直接硬切
const boundaryScanBack = 64

// OverlapChunker 将字幕文本切分为固定大小、带重叠的多个窗口。
// 同一份字幕与同一份配置永远产出字节一致的切片序列（纯函数）。
type OverlapChunker struct {
	ChunkSize    int
	ChunkOverlap int
	useRecursive bool

	initOnce      sync.Once
	initErr       error
	recursiveImpl document.Transformer
}

// NewOverlapChunker 创建一个切片器，并设置窗口大小与重叠长度
func NewOverlapChunker(size, overlap int) *OverlapChunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &OverlapChunker{ChunkSize: size, ChunkOverlap: overlap}
}

func NewRecursiveChunker(size, overlap int) *OverlapChunker {
	c := NewOverlapChunker(size, overlap)
	c.useRecursive = true
	return c
}

// segmentSpan 记录每个字幕片段在拼接文本中的 rune 区间，用于把窗口映射回时间轴
type segmentSpan struct {
	runeStart int
	runeEnd   int
	startMs   int64
	endMs     int64
}

// Split 把一份字幕切成带重叠的窗口序列。
// 切点尽量落在空白处，避免把词切开；短于一个窗口的字幕恰好产出一个切片。
func (c *OverlapChunker) Split(ctx context.Context, t *video.Transcript) ([]video.Chunk, error) {
	if t == nil || len(t.Segments) == 0 {
		return nil, nil
	}

	runes, spans := flatten(t)
	total := len(runes)
	if total == 0 {
		return nil, nil
	}

	if c.useRecursive {
		return c.splitRecursive(ctx, t.VideoID, string(runes), spans)
	}

	var chunks []video.Chunk
	i := 0
	idx := 0
	for {
		end := i + c.ChunkSize
		if end >= total {
			chunks = appendChunk(chunks, t.VideoID, idx, runes, i, total, spans)
			break
		}
		end = backToBoundary(runes, i, end)
		chunks = appendChunk(chunks, t.VideoID, idx, runes, i, end, spans)
		idx++

		next := end - c.ChunkOverlap
		if next <= i {
			next = i + 1
		}
		i = forwardToWordStart(runes, next)
		if i >= total {
			break
		}
	}
	return chunks, nil
}

// flatten 把片段拼接为 rune 序列，片段之间补一个空格，并记录各片段的区间
func flatten(t *video.Transcript) ([]rune, []segmentSpan) {
	var runes []rune
	spans := make([]segmentSpan, 0, len(t.Segments))
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if len(runes) > 0 {
			runes = append(runes, ' ')
		}
		start := len(runes)
		runes = append(runes, []rune(text)...)
		spans = append(spans, segmentSpan{
			runeStart: start,
			runeEnd:   len(runes),
			startMs:   seg.StartMs,
			endMs:     seg.StartMs + seg.DurationMs,
		})
	}
	return runes, spans
}

// backToBoundary 从 end 向前找最近的空白作为切点；scanBack 范围内找不到则保持硬切
func backToBoundary(runes []rune, start, end int) int {
	if end >= len(runes) || unicode.IsSpace(runes[end]) || unicode.IsSpace(runes[end-1]) {
		return end
	}
	low := end - boundaryScanBack
	if low <= start {
		low = start + 1
	}
	for j := end - 1; j > low; j-- {
		if unicode.IsSpace(runes[j]) {
			return j
		}
	}
	return end
}

// forwardToWordStart 把窗口起点推进到下一个词首，避免窗口以半个词开头
func forwardToWordStart(runes []rune, pos int) int {
	if pos <= 0 {
		return 0
	}
	limit := pos + boundaryScanBack
	if limit > len(runes) {
		limit = len(runes)
	}
	j := pos
	for j < limit && !unicode.IsSpace(runes[j-1]) {
		j++
	}
	if j == limit && j < len(runes) && !unicode.IsSpace(runes[j-1]) {
		// 附近没有词边界，保持原起点
		j = pos
	}
	for j < len(runes) && unicode.IsSpace(runes[j]) {
		j++
	}
	return j
}

func appendChunk(chunks []video.Chunk, videoID string, idx int, runes []rune, start, end int, spans []segmentSpan) []video.Chunk {
	text := strings.TrimSpace(string(runes[start:end]))
	if text == "" {
		return chunks
	}
	startMs, endMs := spanRange(spans, start, end)
	return append(chunks, video.Chunk{
		VideoID:    videoID,
		ChunkIndex: idx,
		Text:       text,
		StartMs:    startMs,
		EndMs:      endMs,
	})
}

// spanRange 求窗口 [start,end) 覆盖的片段时间范围
func spanRange(spans []segmentSpan, start, end int) (int64, int64) {
	var startMs, endMs int64
	first := true
	for _, sp := range spans {
		if sp.runeEnd <= start || sp.runeStart >= end {
			continue
		}
		if first {
			startMs = sp.startMs
			first = false
		}
		endMs = sp.endMs
	}
	return startMs, endMs
}

// splitRecursive 使用 Eino 递归切分器（按分隔符优先级切），再把片段定位回时间轴
func (c *OverlapChunker) splitRecursive(ctx context.Context, videoID, text string, spans []segmentSpan) ([]video.Chunk, error) {
	c.initOnce.Do(func() {
		impl, err := recursive.NewSplitter(ctx, &recursive.Config{
			ChunkSize:   c.ChunkSize,
			OverlapSize: c.ChunkOverlap,
			Separators:  []string{"\n\n", "\n", ". ", "! ", "? ", " "},
			LenFunc: func(s string) int {
				return len([]rune(s))
			},
			KeepType: recursive.KeepTypeEnd,
		})
		if err != nil {
			c.initErr = err
			return
		}
		c.recursiveImpl = impl
	})
	if c.initErr != nil {
		return nil, c.initErr
	}
	if c.recursiveImpl == nil {
		return nil, fmt.Errorf("recursive splitter not initialized")
	}

	frags, err := c.recursiveImpl.Transform(ctx, []*schema.Document{{Content: text}})
	if err != nil {
		return nil, err
	}

	runes := []rune(text)
	chunks := make([]video.Chunk, 0, len(frags))
	cursor := 0
	for i, f := range frags {
		if f == nil || strings.TrimSpace(f.Content) == "" {
			continue
		}
		from := cursor - c.ChunkOverlap
		if from < 0 {
			from = 0
		}
		pos := indexRunes(runes, []rune(f.Content), from)
		if pos < 0 {
			pos = cursor
		}
		start := pos
		end := pos + len([]rune(f.Content))
		if end > len(runes) {
			end = len(runes)
		}
		startMs, endMs := spanRange(spans, start, end)
		chunks = append(chunks, video.Chunk{
			VideoID:    videoID,
			ChunkIndex: i,
			Text:       strings.TrimSpace(f.Content),
			StartMs:    startMs,
			EndMs:      endMs,
		})
		cursor = start + 1
	}
	return chunks, nil
}

func indexRunes(haystack, needle []rune, from int) int {
	if from < 0 {
		from = 0
	}
	if len(needle) == 0 || from >= len(haystack) {
		return -1
	}
	idx := strings.Index(string(haystack[from:]), string(needle))
	if idx < 0 {
		return -1
	}
	return from + len([]rune(string(haystack[from:])[:idx]))
}
