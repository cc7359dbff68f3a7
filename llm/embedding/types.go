// Package embedding 提供统一的嵌入提供者接口和实现.
package embedding

import "context"

// DegenerateDimensions 是无凭据降级时零向量的固定维度，
// 与 OpenAI text-embedding 系列的默认维度保持一致。
const DegenerateDimensions = 1536

// Provider 定义统一的嵌入提供者接口.
type Provider interface {
	// EmbedQuery 嵌入单个查询字符串.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// EmbedDocuments 嵌入多个文档.
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	// Name 返回提供者名称.
	Name() string

	// Dimensions 返回嵌入维度.
	Dimensions() int
}
