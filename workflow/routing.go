package workflow

import (
	"context"
	"fmt"
)

// Router 根据输入决定使用哪个处理器，返回路由键。
type Router interface {
	Route(ctx context.Context, input any) (string, error)
}

// RouterFunc 路由函数类型
type RouterFunc func(ctx context.Context, input any) (string, error)

func (f RouterFunc) Route(ctx context.Context, input any) (string, error) {
	return f(ctx, input)
}

// Handler 处理器接口
type Handler interface {
	Runnable
	Name() string
}

// FuncHandler 函数处理器
type FuncHandler struct {
	name string
	fn   StepFunc
}

// NewFuncHandler 创建函数处理器
func NewFuncHandler(name string, fn StepFunc) *FuncHandler {
	return &FuncHandler{name: name, fn: fn}
}

func (h *FuncHandler) Execute(ctx context.Context, input any) (any, error) {
	return h.fn(ctx, input)
}

func (h *FuncHandler) Name() string { return h.name }

// RoutingStep 路由步骤：先做路由决策，再把输入交给对应处理器。
// 处理器表在构造后不再变化，按固定分派表查找。
// 实现了 Step，可直接嵌入 Chain。
type RoutingStep struct {
	name         string
	router       Router
	handlers     map[string]Handler
	defaultRoute string
}

// NewRoutingStep 创建路由步骤。
func NewRoutingStep(name string, router Router, handlers map[string]Handler, defaultRoute string) *RoutingStep {
	return &RoutingStep{
		name:         name,
		router:       router,
		handlers:     handlers,
		defaultRoute: defaultRoute,
	}
}

func (s *RoutingStep) Name() string { return s.name }

// Execute 路由决策 → 查处理器 → 执行。
// 路由键没有对应处理器时退回默认路由，默认路由也缺失才报错。
func (s *RoutingStep) Execute(ctx context.Context, input any) (any, error) {
	route, err := s.router.Route(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("routing failed: %w", err)
	}

	handler, ok := s.handlers[route]
	if !ok {
		handler, ok = s.handlers[s.defaultRoute]
		if !ok {
			return nil, fmt.Errorf("no handler for route: %s", route)
		}
	}

	result, err := handler.Execute(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("handler %s failed: %w", handler.Name(), err)
	}
	return result, nil
}

// Routes 返回已注册的路由键。
func (s *RoutingStep) Routes() []string {
	routes := make([]string, 0, len(s.handlers))
	for route := range s.handlers {
		routes = append(routes, route)
	}
	return routes
}
