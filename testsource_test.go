package mapbatch

import (
	"context"
	"sync"

	"github.com/streamkit/mapbatch/checkpoint"
	"github.com/streamkit/mapbatch/tensor"
)

// failingSource produces int64 scalars 0,1,... and errors once the cursor
// reaches failAt. Used to exercise upstream error propagation.
type failingSource struct {
	failAt int64
	err    error
}

func (s *failingSource) OutputTypes() []tensor.DType { return []tensor.DType{tensor.Int64} }

func (s *failingSource) OutputShapes() []tensor.Shape { return []tensor.Shape{{}} }

func (s *failingSource) MakeIterator(prefix string) (Iterator, error) {
	return &failingIterator{source: s, prefix: prefix + "::Failing"}, nil
}

type failingIterator struct {
	source *failingSource
	prefix string

	mu   sync.Mutex
	next int64
}

func (it *failingIterator) GetNext(_ context.Context) (Element, bool, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.next >= it.source.failAt {
		return nil, false, it.source.err
	}
	v := it.next
	it.next++
	return Element{tensor.ScalarInt64(v)}, false, nil
}

func (it *failingIterator) Save(w checkpoint.Writer) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return w.WriteInt(it.prefix+":next", it.next)
}

func (it *failingIterator) Restore(_ context.Context, r checkpoint.Reader) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	next, err := r.ReadInt(it.prefix + ":next")
	if err != nil {
		return err
	}
	it.next = next
	return nil
}

func (it *failingIterator) Close() error { return nil }
