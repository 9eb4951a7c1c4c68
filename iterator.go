package mapbatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamkit/mapbatch/checkpoint"
	"github.com/streamkit/mapbatch/metrics"
	"github.com/streamkit/mapbatch/tensor"
)

// batchIterator is the map-and-batch iterator facade. It owns the slot
// ring, the runner goroutine, and all synchronization.
//
// Lock ordering: externalMu -> mu -> slot.mu. externalMu serializes
// GetNext/Save/Restore callers; mu guards iterator counters, ring
// bookkeeping, and runner lifecycle; slot.mu guards per-slot result state.
type batchIterator struct {
	dataset *Dataset
	prefix  string
	logger  *slog.Logger

	externalMu sync.Mutex

	mu      sync.Mutex
	condVar *sync.Cond

	input Iterator
	slots []*batchSlot

	// all guarded by mu
	numCalls      int64
	callCounter   int64
	inputBatch    int64
	outputBatch   int64
	runnerStarted bool
	cancelled     bool

	runnerDone chan struct{}
	closeOnce  sync.Once

	callsScheduled metrics.Counter
	inflightCalls  metrics.UpDownCounter
	batchSeconds   metrics.Histogram
}

// computeIndex maps a batch number onto its ring slot. Callers hold mu.
func (it *batchIterator) computeIndex(n int64) int64 {
	return n % int64(len(it.slots))
}

// fullName scopes a checkpoint key to this iterator instance.
func (it *batchIterator) fullName(key string) string {
	return it.prefix + ":" + key
}

// GetNext blocks until the oldest in-flight batch quiesces, then emits it.
// At most one GetNext may be in flight; concurrent callers serialize on
// the external mutex. The context is captured by the first call and used
// for all upstream pulls and function dispatches.
func (it *batchIterator) GetNext(ctx context.Context) (Element, bool, error) {
	it.externalMu.Lock()
	defer it.externalMu.Unlock()

	it.mu.Lock()
	defer it.mu.Unlock()

	if it.cancelled {
		return nil, false, ErrIteratorClosed
	}
	it.ensureRunnerStarted(ctx)

	slot := it.slots[it.computeIndex(it.inputBatch)]
	for slot.numCalls > 0 {
		slot.cond.Wait()
		if it.cancelled {
			return nil, false, ErrIteratorClosed
		}
	}

	start := time.Now()
	out, endOfSequence, err := it.processBatch(slot)
	it.batchSeconds.Record(time.Since(start).Seconds())
	return out, endOfSequence, err
}

// processBatch consumes the quiesced slot at inputBatch. On every exit
// path the slot is reinitialized for reuse, inputBatch advances, and the
// runner is woken. Callers hold mu; slot.numCalls is zero.
func (it *batchIterator) processBatch(slot *batchSlot) (Element, bool, error) {
	batchSize := it.dataset.cfg.BatchSize
	defer func() {
		slot.initialize(batchSize)
		it.inputBatch++
		it.condVar.Broadcast()
	}()

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.numElements == 0 {
		return nil, true, nil
	}

	if slot.status != nil {
		slot.output = nil
		return nil, false, slot.status
	}

	if slot.numElements < batchSize {
		if it.dataset.cfg.DropRemainder {
			slot.output = nil
			return nil, true, nil
		}
		out, err := it.emitPartialBatch(slot.output, slot.numElements)
		slot.output = nil
		if err != nil {
			return nil, false, err
		}
		return out, false, nil
	}

	out := slot.output
	slot.output = nil
	return out, false, nil
}

// emitPartialBatch reallocates each component with a leading dimension of
// numElements and copies the written rows. Components are copied
// concurrently; they are independent allocations.
func (it *batchIterator) emitPartialBatch(full Element, numElements int64) (Element, error) {
	out := make(Element, len(full))
	var g errgroup.Group
	for i := range full {
		i := i
		g.Go(func() error {
			src := full[i]
			shape := src.Shape().Clone()
			shape[0] = int(numElements)
			dst, err := it.dataset.cfg.Allocator.Allocate(src.DType(), shape,
				tensor.AllocatorAttributes{GPUCompatible: true})
			if err != nil {
				return err
			}
			if err := tensor.CopyRows(dst, src, int(numElements)); err != nil {
				return err
			}
			out[i] = dst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Save blocks until no calls are in flight, then writes the upstream
// iterator's state followed by the full ring.
func (it *batchIterator) Save(w checkpoint.Writer) error {
	it.externalMu.Lock()
	defer it.externalMu.Unlock()

	it.mu.Lock()
	defer it.mu.Unlock()

	for it.numCalls > 0 {
		it.condVar.Wait()
	}
	if it.cancelled {
		return ErrIteratorClosed
	}

	if err := it.input.Save(w); err != nil {
		return err
	}
	return it.saveState(w)
}

// Restore rebuilds state written by Save into this iterator. It must run
// before iteration starts.
func (it *batchIterator) Restore(ctx context.Context, r checkpoint.Reader) error {
	it.externalMu.Lock()
	defer it.externalMu.Unlock()

	it.mu.Lock()
	defer it.mu.Unlock()

	if it.cancelled {
		return ErrIteratorClosed
	}
	if it.runnerStarted {
		return ErrInvalidState
	}

	if err := it.input.Restore(ctx, r); err != nil {
		return err
	}
	return it.restoreState(r)
}

// Close cancels the runner, waits for all in-flight calls to complete,
// and closes the upstream iterator. Safe to call multiple times.
func (it *batchIterator) Close() error {
	it.closeOnce.Do(func() {
		it.mu.Lock()
		it.cancelled = true
		it.condVar.Broadcast()
		for _, slot := range it.slots {
			slot.cond.Broadcast()
		}
		for it.numCalls > 0 {
			it.condVar.Wait()
		}
		started := it.runnerStarted
		it.mu.Unlock()

		if started {
			<-it.runnerDone
		}
		if err := it.input.Close(); err != nil {
			it.logger.Error("closing upstream iterator", "error", err)
		}
		it.logger.Debug("iterator closed")
	})
	return nil
}

// ensureRunnerStarted launches the runner goroutine on first use. Callers
// hold mu.
func (it *batchIterator) ensureRunnerStarted(ctx context.Context) {
	if it.runnerStarted {
		return
	}
	it.runnerStarted = true
	go it.runRunner(ctx)
	it.logger.Debug("runner started",
		"batch_size", it.dataset.cfg.BatchSize,
		"num_parallel_calls", it.dataset.cfg.NumParallelCalls,
		"ring_size", len(it.slots))
}
