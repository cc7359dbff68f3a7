package embedding

import "context"

// DegenerateProvider 在没有任何可用凭据时返回固定维度的全零向量。
// 这是刻意的优雅降级契约：相似度检索、排序可以继续运行而不崩溃，
// 代价是相似度分数没有语义。调用方必须把零向量理解为"没有真实嵌入"，
// 而不是错误。
type DegenerateProvider struct {
	dims int
}

// NewDegenerateProvider 创建零向量提供者。dims <= 0 时使用默认维度。
func NewDegenerateProvider(dims int) *DegenerateProvider {
	if dims <= 0 {
		dims = DegenerateDimensions
	}
	return &DegenerateProvider{dims: dims}
}

func (p *DegenerateProvider) Name() string    { return "degenerate" }
func (p *DegenerateProvider) Dimensions() int { return p.dims }

func (p *DegenerateProvider) EmbedQuery(_ context.Context, _ string) ([]float64, error) {
	return make([]float64, p.dims), nil
}

func (p *DegenerateProvider) EmbedDocuments(_ context.Context, documents []string) ([][]float64, error) {
	out := make([][]float64, len(documents))
	for i := range out {
		out[i] = make([]float64, p.dims)
	}
	return out, nil
}
