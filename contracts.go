package mapbatch

import (
	"context"

	"github.com/streamkit/mapbatch/checkpoint"
	"github.com/streamkit/mapbatch/tensor"
)

// Element is one value produced by a dataset iterator: an ordered tuple of
// tensors with fixed arity and dtypes per stream.
type Element []*tensor.Tensor

// Iterator is the pull contract implemented by every dataset iterator.
//
// GetNext returns the next element. When the stream is exhausted it
// returns (nil, true, nil); callers must tolerate repeated GetNext after
// end of sequence. Implementations used upstream of a map-and-batch
// iterator must tolerate concurrent GetNext calls: one pull is issued per
// in-flight call, possibly from many goroutines.
type Iterator interface {
	GetNext(ctx context.Context) (Element, bool, error)

	// Save writes the iterator's transient state to w.
	Save(w checkpoint.Writer) error

	// Restore rebuilds state previously written by Save. It must be called
	// before iteration starts.
	Restore(ctx context.Context, r checkpoint.Reader) error

	// Close releases resources. Idempotent.
	Close() error
}

// DatasetSource describes a stream of elements and mints iterators over it.
type DatasetSource interface {
	// MakeIterator returns a fresh iterator. The prefix scopes checkpoint
	// keys; nested datasets extend it for their own iterators.
	MakeIterator(prefix string) (Iterator, error)

	// OutputTypes returns the per-component dtypes of produced elements.
	OutputTypes() []tensor.DType

	// OutputShapes returns the per-component shapes; dimensions may be
	// tensor.UnknownDim.
	OutputShapes() []tensor.Shape
}

// CapturedFunction runs the user mapping asynchronously on runtime
// goroutines. RunAsync must populate the completion callback's values
// before invoking it; completion is called exactly once per RunAsync.
type CapturedFunction interface {
	RunAsync(ctx context.Context, input Element, completion func(Element, error))

	// CapturedInputs returns tensors captured at construction time that
	// are appended to every invocation's arguments.
	CapturedInputs() Element
}
