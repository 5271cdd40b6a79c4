package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
)

// MockEmbedder 本地确定性 embedding：词袋哈希投影到固定维度后做 L2 归一化。
// 同一文本永远得到同一向量，相同文本的相似度为 1，适合离线开发与测试。
type MockEmbedder struct {
	Dim int
}

func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 768
	}
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	result := make([][]float64, len(texts))
	for i, text := range texts {
		result[i] = m.embedOne(text)
	}
	return result, nil
}

func (m *MockEmbedder) embedOne(text string) []float64 {
	vec := make([]float64, m.Dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%m.Dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// 确保实现接口
var _ embedding.Embedder = (*MockEmbedder)(nil)
