package mapbatch

import (
	"context"
	"sync"

	"github.com/ygrebnov/errorc"

	"github.com/streamkit/mapbatch/checkpoint"
	"github.com/streamkit/mapbatch/tensor"
)

// RangeDataset produces scalar int64 elements from start (inclusive) to
// stop (exclusive) advancing by step.
type RangeDataset struct {
	start, stop, step int64
}

// NewRangeDataset builds a range source. step must be non-zero.
func NewRangeDataset(start, stop, step int64) (*RangeDataset, error) {
	if step == 0 {
		return nil, errorc.With(ErrInvalidArgument, errorc.String("", "step must be non-zero"))
	}
	return &RangeDataset{start: start, stop: stop, step: step}, nil
}

func (d *RangeDataset) OutputTypes() []tensor.DType {
	return []tensor.DType{tensor.Int64}
}

func (d *RangeDataset) OutputShapes() []tensor.Shape {
	return []tensor.Shape{{}}
}

func (d *RangeDataset) MakeIterator(prefix string) (Iterator, error) {
	return &rangeIterator{dataset: d, prefix: prefix + "::Range", next: d.start}, nil
}

// rangeIterator tolerates concurrent GetNext: each pull takes the mutex,
// and pulls past the end keep returning end-of-sequence cheaply.
type rangeIterator struct {
	dataset *RangeDataset
	prefix  string

	mu   sync.Mutex
	next int64
}

func (it *rangeIterator) exhausted() bool {
	if it.dataset.step > 0 {
		return it.next >= it.dataset.stop
	}
	return it.next <= it.dataset.stop
}

func (it *rangeIterator) GetNext(_ context.Context) (Element, bool, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.exhausted() {
		return nil, true, nil
	}
	v := it.next
	it.next += it.dataset.step
	return Element{tensor.ScalarInt64(v)}, false, nil
}

func (it *rangeIterator) Save(w checkpoint.Writer) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return w.WriteInt(it.prefix+":next", it.next)
}

func (it *rangeIterator) Restore(_ context.Context, r checkpoint.Reader) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	next, err := r.ReadInt(it.prefix + ":next")
	if err != nil {
		return err
	}
	it.next = next
	return nil
}

func (it *rangeIterator) Close() error { return nil }

// TensorSliceDataset produces one element per leading-dimension row of its
// component tensors, slicing all components at the same row index.
type TensorSliceDataset struct {
	components Element
	rows       int
}

// NewTensorSliceDataset builds a slice source. All components must have at
// least rank 1 and equal leading dimensions.
func NewTensorSliceDataset(components Element) (*TensorSliceDataset, error) {
	if len(components) == 0 {
		return nil, errorc.With(ErrInvalidArgument, errorc.String("", "at least one component is required"))
	}
	rows := -1
	for _, c := range components {
		if c.Rank() == 0 {
			return nil, errorc.With(ErrInvalidArgument, errorc.String("", "components must have rank >= 1"))
		}
		if rows == -1 {
			rows = c.Dim(0)
		} else if c.Dim(0) != rows {
			return nil, errorc.With(ErrInvalidArgument,
				errorc.String("", "components must share the leading dimension"))
		}
	}
	return &TensorSliceDataset{components: components, rows: rows}, nil
}

func (d *TensorSliceDataset) OutputTypes() []tensor.DType {
	types := make([]tensor.DType, len(d.components))
	for i, c := range d.components {
		types[i] = c.DType()
	}
	return types
}

func (d *TensorSliceDataset) OutputShapes() []tensor.Shape {
	shapes := make([]tensor.Shape, len(d.components))
	for i, c := range d.components {
		shapes[i] = c.Shape()[1:].Clone()
	}
	return shapes
}

func (d *TensorSliceDataset) MakeIterator(prefix string) (Iterator, error) {
	return &tensorSliceIterator{dataset: d, prefix: prefix + "::TensorSlice"}, nil
}

type tensorSliceIterator struct {
	dataset *TensorSliceDataset
	prefix  string

	mu    sync.Mutex
	index int
}

func (it *tensorSliceIterator) GetNext(_ context.Context) (Element, bool, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.index >= it.dataset.rows {
		return nil, true, nil
	}
	row := it.index
	it.index++

	out := make(Element, len(it.dataset.components))
	for i, c := range it.dataset.components {
		t, err := c.Row(row)
		if err != nil {
			return nil, false, err
		}
		out[i] = t
	}
	return out, false, nil
}

func (it *tensorSliceIterator) Save(w checkpoint.Writer) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return w.WriteInt(it.prefix+":index", int64(it.index))
}

func (it *tensorSliceIterator) Restore(_ context.Context, r checkpoint.Reader) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	index, err := r.ReadInt(it.prefix + ":index")
	if err != nil {
		return err
	}
	it.index = int(index)
	return nil
}

func (it *tensorSliceIterator) Close() error { return nil }
