package mapbatch

import (
	"sync"

	"github.com/google/uuid"
	"github.com/ygrebnov/errorc"

	"github.com/streamkit/mapbatch/tensor"
)

// Dataset is the immutable description of a fused map-and-batch transform
// over an upstream dataset. It is safe for concurrent use; each call to
// MakeIterator yields an independent iterator.
type Dataset struct {
	input DatasetSource
	fn    CapturedFunction
	cfg   config
}

// NewDataset builds a map-and-batch dataset that applies fn to input's
// elements with bounded parallelism and emits batches of batchSize rows.
// Parallelism must be configured via WithNumParallelCalls or
// WithNumParallelBatches.
func NewDataset(input DatasetSource, fn CapturedFunction, batchSize int64, opts ...Option) (*Dataset, error) {
	if input == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "nil input dataset"))
	}
	if fn == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "nil captured function"))
	}

	cfg := defaultConfig()
	cfg.BatchSize = batchSize
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &Dataset{input: input, fn: fn, cfg: cfg}, nil
}

// BatchSize returns the configured batch size.
func (d *Dataset) BatchSize() int64 { return d.cfg.BatchSize }

// NumParallelCalls returns the resolved in-flight call bound.
func (d *Dataset) NumParallelCalls() int64 { return d.cfg.NumParallelCalls }

// DropRemainder reports whether trailing partial batches are discarded.
func (d *Dataset) DropRemainder() bool { return d.cfg.DropRemainder }

// OutputTypes returns the declared output component dtypes, if any.
func (d *Dataset) OutputTypes() []tensor.DType { return d.cfg.OutputTypes }

// OutputShapes returns the declared output component shapes, if any.
func (d *Dataset) OutputShapes() []tensor.Shape { return d.cfg.OutputShapes }

// ringSize returns the number of batch slots kept in flight:
// ceil(NumParallelCalls / BatchSize), at least 1.
func (d *Dataset) ringSize() int64 {
	return (d.cfg.NumParallelCalls + d.cfg.BatchSize - 1) / d.cfg.BatchSize
}

// MakeIterator returns a fresh iterator over the transformed stream.
// prefix scopes checkpoint keys; an empty prefix gets a generated one.
func (d *Dataset) MakeIterator(prefix string) (Iterator, error) {
	if prefix == "" {
		prefix = "iterator-" + uuid.NewString()
	}
	prefix += "::MapAndBatch"

	input, err := d.input.MakeIterator(prefix)
	if err != nil {
		return nil, err
	}

	it := &batchIterator{
		dataset: d,
		prefix:  prefix,
		logger:  d.cfg.Logger.With("iterator", prefix),
		input:   input,
		slots:   make([]*batchSlot, d.ringSize()),

		callsScheduled: d.cfg.Metrics.Counter("mapbatch_calls_scheduled_total"),
		inflightCalls:  d.cfg.Metrics.UpDownCounter("mapbatch_inflight_calls"),
		batchSeconds:   d.cfg.Metrics.Histogram("mapbatch_batch_process_seconds"),
	}
	it.condVar = sync.NewCond(&it.mu)
	it.runnerDone = make(chan struct{})
	for i := range it.slots {
		s := newBatchSlot(&it.mu)
		s.initialize(d.cfg.BatchSize)
		it.slots[i] = s
	}
	return it, nil
}
