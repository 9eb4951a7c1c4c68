package mapbatch

import (
	"context"
	"fmt"

	"github.com/streamkit/mapbatch/pool"
)

// Func is the plain-Go shape of a user mapping: it receives one upstream
// element (with any captured inputs appended) and returns the output
// components for one batch row.
type Func func(ctx context.Context, input Element) (Element, error)

// FuncOption configures NewCapturedFunction.
type FuncOption func(*capturedFunc)

// WithCapturedInputs appends the given tensors to every invocation's
// arguments, after the upstream element's components.
func WithCapturedInputs(captured Element) FuncOption {
	return func(f *capturedFunc) { f.captured = captured }
}

// WithInvokerPool runs invocations on invokers drawn from p instead of the
// default dynamic pool.
func WithInvokerPool(p pool.Pool) FuncOption {
	return func(f *capturedFunc) { f.pool = p }
}

// capturedFunc adapts a Func to the asynchronous CapturedFunction
// contract, executing each call on an invoker drawn from a pool.
type capturedFunc struct {
	fn       Func
	captured Element
	pool     pool.Pool
}

// NewCapturedFunction wraps fn for use with NewDataset.
func NewCapturedFunction(fn Func, opts ...FuncOption) CapturedFunction {
	f := &capturedFunc{
		fn:   fn,
		pool: pool.NewDynamic(func() any { return &invoker{} }),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

func (f *capturedFunc) CapturedInputs() Element { return f.captured }

func (f *capturedFunc) RunAsync(ctx context.Context, input Element, completion func(Element, error)) {
	args := input
	if len(f.captured) > 0 {
		args = make(Element, 0, len(input)+len(f.captured))
		args = append(args, input...)
		args = append(args, f.captured...)
	}

	iv := f.pool.Get().(*invoker)
	go func() {
		defer f.pool.Put(iv)
		out, err := iv.invoke(ctx, f.fn, args)
		completion(out, err)
	}()
}

// invoker executes one call with panic recovery; pooled to bound
// per-call allocation churn under sustained parallelism.
type invoker struct{}

func (*invoker) invoke(ctx context.Context, fn Func, args Element) (out Element, err error) {
	defer func() {
		if ePanic := recover(); ePanic != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrFuncPanicked, ePanic)
		}
	}()
	return fn(ctx, args)
}
