package trace

import (
	"context"
	"errors"
)

// multiHandler fans out trace events to multiple Handler implementations.
// Each handler receives its own isolated context so that, for example,
// two Recorders do not share the same current-span key.
type multiHandler struct {
	handlers []Handler
}

// Multi creates a Handler that forwards all events to the given handlers.
func Multi(handlers ...Handler) Handler {
	return &multiHandler{handlers: handlers}
}

type multiCtxKey struct{}

// getContexts retrieves per-handler contexts from the context.
// If not found, returns the base context for each handler.
func (m *multiHandler) getContexts(ctx context.Context) []context.Context {
	if v, ok := ctx.Value(multiCtxKey{}).([]context.Context); ok && len(v) == len(m.handlers) {
		return v
	}
	ctxs := make([]context.Context, len(m.handlers))
	for i := range ctxs {
		ctxs[i] = ctx
	}
	return ctxs
}

func (m *multiHandler) start(ctx context.Context, fn func(h Handler, hctx context.Context) context.Context) context.Context {
	parentCtxs := m.getContexts(ctx)
	handlerCtxs := make([]context.Context, len(m.handlers))
	for i, h := range m.handlers {
		handlerCtxs[i] = fn(h, parentCtxs[i])
	}
	return context.WithValue(ctx, multiCtxKey{}, handlerCtxs)
}

func (m *multiHandler) each(ctx context.Context, fn func(h Handler, hctx context.Context)) {
	ctxs := m.getContexts(ctx)
	for i, h := range m.handlers {
		fn(h, ctxs[i])
	}
}

func (m *multiHandler) StartRun(ctx context.Context, name string) context.Context {
	return m.start(ctx, func(h Handler, hctx context.Context) context.Context {
		return h.StartRun(hctx, name)
	})
}

func (m *multiHandler) EndRun(ctx context.Context, err error) {
	m.each(ctx, func(h Handler, hctx context.Context) { h.EndRun(hctx, err) })
}

func (m *multiHandler) StartIteration(ctx context.Context, data *IterationData) context.Context {
	return m.start(ctx, func(h Handler, hctx context.Context) context.Context {
		return h.StartIteration(hctx, data)
	})
}

func (m *multiHandler) EndIteration(ctx context.Context, err error) {
	m.each(ctx, func(h Handler, hctx context.Context) { h.EndIteration(hctx, err) })
}

func (m *multiHandler) StartBranch(ctx context.Context, index int) context.Context {
	return m.start(ctx, func(h Handler, hctx context.Context) context.Context {
		return h.StartBranch(hctx, index)
	})
}

func (m *multiHandler) EndBranch(ctx context.Context, data *BranchData, err error) {
	m.each(ctx, func(h Handler, hctx context.Context) { h.EndBranch(hctx, data, err) })
}

func (m *multiHandler) StartLLMCall(ctx context.Context) context.Context {
	return m.start(ctx, func(h Handler, hctx context.Context) context.Context {
		return h.StartLLMCall(hctx)
	})
}

func (m *multiHandler) EndLLMCall(ctx context.Context, data *LLMCallData, err error) {
	m.each(ctx, func(h Handler, hctx context.Context) { h.EndLLMCall(hctx, data, err) })
}

func (m *multiHandler) AddEvent(ctx context.Context, kind string, data any) {
	m.each(ctx, func(h Handler, hctx context.Context) { h.AddEvent(hctx, kind, data) })
}

func (m *multiHandler) Finish(ctx context.Context) error {
	var errs []error
	for _, h := range m.handlers {
		if err := h.Finish(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
