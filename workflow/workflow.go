// Package workflow 提供固定步骤序列与按路由分派的轻量工作流原语。
// 这里刻意不做通用图执行引擎：团队助手的图永远是
// 分类 → 至多一个专门步骤 → 回复 的两层树，顺序分派表足够。
package workflow

import (
	"context"
	"fmt"
)

// Runnable 是 Step 与 Handler 共享的执行接口。
type Runnable interface {
	Execute(ctx context.Context, input any) (any, error)
}

// Step 工作流步骤接口
type Step interface {
	Runnable
	// Name 返回步骤名称
	Name() string
}

// StepFunc 步骤函数类型
type StepFunc func(ctx context.Context, input any) (any, error)

// FuncStep 函数步骤实现
type FuncStep struct {
	name string
	fn   StepFunc
}

// NewFuncStep 创建函数步骤
func NewFuncStep(name string, fn StepFunc) *FuncStep {
	return &FuncStep{name: name, fn: fn}
}

func (s *FuncStep) Execute(ctx context.Context, input any) (any, error) {
	return s.fn(ctx, input)
}

func (s *FuncStep) Name() string { return s.name }

// Chain 固定步骤序列工作流：按顺序执行每个步骤，
// 前一步的输出作为下一步的输入。
type Chain struct {
	name  string
	steps []Step
}

// NewChain 创建步骤链。
func NewChain(name string, steps ...Step) *Chain {
	return &Chain{name: name, steps: steps}
}

func (c *Chain) Name() string { return c.name }

// Execute 顺序执行全部步骤。
func (c *Chain) Execute(ctx context.Context, input any) (any, error) {
	current := input
	for i, step := range c.steps {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := step.Execute(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		current = result
	}
	return current, nil
}
