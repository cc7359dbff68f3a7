package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendStep(name string) Step {
	return NewFuncStep(name, func(_ context.Context, input any) (any, error) {
		return input.(string) + "->" + name, nil
	})
}

func TestChain_ExecutesStepsInOrder(t *testing.T) {
	// 前一步输出作为下一步输入，最终结果体现完整顺序
	chain := NewChain("pipeline", appendStep("a"), appendStep("b"), appendStep("c"))

	out, err := chain.Execute(context.Background(), "in")
	require.NoError(t, err)
	assert.Equal(t, "in->a->b->c", out)
	assert.Equal(t, "pipeline", chain.Name())
}

func TestChain_EmptyChainPassesInputThrough(t *testing.T) {
	chain := NewChain("noop")

	out, err := chain.Execute(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestChain_StepErrorStopsExecution(t *testing.T) {
	boom := errors.New("boom")
	executed := false
	chain := NewChain("pipeline",
		appendStep("a"),
		NewFuncStep("broken", func(_ context.Context, _ any) (any, error) {
			return nil, boom
		}),
		NewFuncStep("never", func(_ context.Context, input any) (any, error) {
			executed = true
			return input, nil
		}),
	)

	_, err := chain.Execute(context.Background(), "in")
	require.Error(t, err)
	// 错误包含步骤序号与名称，且保留原始错误链
	assert.Contains(t, err.Error(), "step 2 (broken) failed")
	assert.ErrorIs(t, err, boom)
	assert.False(t, executed, "失败后不应执行后续步骤")
}

func TestChain_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chain := NewChain("pipeline",
		NewFuncStep("cancel", func(_ context.Context, input any) (any, error) {
			cancel() // 第一步中取消，第二步不应再执行
			return input, nil
		}),
		appendStep("after"),
	)

	_, err := chain.Execute(ctx, "in")
	assert.ErrorIs(t, err, context.Canceled)
}

func routeByPrefix(handlers map[string]Handler, def string) *RoutingStep {
	router := RouterFunc(func(_ context.Context, input any) (string, error) {
		return input.(string), nil
	})
	return NewRoutingStep("dispatch", router, handlers, def)
}

func echoHandler(name string) Handler {
	return NewFuncHandler(name, func(_ context.Context, input any) (any, error) {
		return fmt.Sprintf("%s:%v", name, input), nil
	})
}

func TestRoutingStep_DispatchesToHandler(t *testing.T) {
	step := routeByPrefix(map[string]Handler{
		"planning":  echoHandler("planning"),
		"technical": echoHandler("technical"),
	}, "planning")

	out, err := step.Execute(context.Background(), "technical")
	require.NoError(t, err)
	assert.Equal(t, "technical:technical", out)
}

func TestRoutingStep_UnknownRouteFallsBackToDefault(t *testing.T) {
	step := routeByPrefix(map[string]Handler{
		"general": echoHandler("general"),
	}, "general")

	out, err := step.Execute(context.Background(), "nonsense")
	require.NoError(t, err)
	assert.Equal(t, "general:nonsense", out)
}

func TestRoutingStep_MissingDefaultIsError(t *testing.T) {
	step := routeByPrefix(map[string]Handler{}, "general")

	_, err := step.Execute(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler for route")
}

func TestRoutingStep_RouterErrorIsWrapped(t *testing.T) {
	routerErr := errors.New("cannot decide")
	router := RouterFunc(func(_ context.Context, _ any) (string, error) {
		return "", routerErr
	})
	step := NewRoutingStep("dispatch", router, map[string]Handler{
		"general": echoHandler("general"),
	}, "general")

	_, err := step.Execute(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, routerErr)
	assert.Contains(t, err.Error(), "routing failed")
}

func TestRoutingStep_HandlerErrorNamesHandler(t *testing.T) {
	handlerErr := errors.New("handler blew up")
	step := routeByPrefix(map[string]Handler{
		"planning": NewFuncHandler("planning", func(_ context.Context, _ any) (any, error) {
			return nil, handlerErr
		}),
	}, "planning")

	_, err := step.Execute(context.Background(), "planning")
	require.Error(t, err)
	assert.ErrorIs(t, err, handlerErr)
	assert.Contains(t, err.Error(), "handler planning failed")
}

func TestRoutingStep_Routes(t *testing.T) {
	step := routeByPrefix(map[string]Handler{
		"planning": echoHandler("planning"),
		"general":  echoHandler("general"),
	}, "general")

	assert.ElementsMatch(t, []string{"planning", "general"}, step.Routes())
}
