package mapbatch

import (
	"context"
	"fmt"

	"github.com/ygrebnov/errorc"

	"github.com/streamkit/mapbatch/tensor"
)

// runRunner is the single background scheduling loop. It admits new calls
// while there is both parallelism headroom (numCalls < P) and ring
// headroom (outputBatch - inputBatch < R), and parks on the global
// condition variable otherwise. Cancellation stops admission; in-flight
// calls are never interrupted.
func (it *batchIterator) runRunner(ctx context.Context) {
	defer close(it.runnerDone)

	p := it.dataset.cfg.NumParallelCalls
	batchSize := it.dataset.cfg.BatchSize
	ringSize := int64(len(it.slots))

	it.mu.Lock()
	defer it.mu.Unlock()
	for {
		for !it.cancelled &&
			(it.numCalls == p || it.outputBatch-it.inputBatch == ringSize) {
			it.condVar.Wait()
		}

		if it.cancelled {
			it.logger.Debug("runner cancelled")
			return
		}

		for !it.cancelled && it.numCalls < p && it.outputBatch-it.inputBatch < ringSize {
			slot := it.slots[it.computeIndex(it.outputBatch)]
			offset := it.callCounter % batchSize
			it.callCounter++
			it.numCalls++
			it.callsScheduled.Add(1)
			it.inflightCalls.Add(1)

			// The upstream pull and function dispatch may block on shared
			// executors; they must not run under mu, and the completion
			// callback re-acquires it.
			it.mu.Unlock()
			it.callFunction(ctx, slot, offset)
			it.mu.Lock()

			if offset+1 == batchSize {
				// Done scheduling calls for the current batch.
				it.outputBatch++
			}
		}
	}
}

// callFunction pulls one upstream element and dispatches the user function
// for row `offset` of `slot`. On end of input or an upstream error the
// call completes immediately without dispatching.
func (it *batchIterator) callFunction(ctx context.Context, slot *batchSlot, offset int64) {
	element, endOfInput, err := it.input.GetNext(ctx)

	it.mu.Lock()
	slot.mu.Lock()
	slot.endOfInput = slot.endOfInput || endOfInput
	slot.updateStatusLocked(err)
	if slot.endOfInput || slot.status != nil {
		slot.mu.Unlock()
		it.callCompleted(slot)
		it.mu.Unlock()
		return
	}
	slot.mu.Unlock()
	it.mu.Unlock()

	it.dataset.fn.RunAsync(ctx, element, func(values Element, fnErr error) {
		it.callback(slot, values, offset, fnErr)
	})
}

// callback routes one completed function call into its batch row.
// numElements counts every completed function call, including failed
// ones; ProcessBatch consults the slot status before trusting the rows.
func (it *batchIterator) callback(slot *batchSlot, values Element, offset int64, fnErr error) {
	slot.updateStatus(fnErr)
	if fnErr == nil {
		it.ensureOutputAllocated(slot, values)

		slot.mu.Lock()
		output := slot.output
		slot.mu.Unlock()

		for i := 0; output != nil && i < len(values); i++ {
			if i >= len(output) {
				slot.updateStatus(errorc.With(ErrInvalidArgument,
					errorc.String("", "function returned more components than the batch holds")))
				break
			}
			batch := output[i]
			if values[i].NumElements() != batch.RowElements() {
				slot.updateStatus(errorc.With(ErrInvalidArgument,
					errorc.String("", fmt.Sprintf(
						"cannot add tensor to the batch: number of elements does not match, shapes are: [tensor]: %s, [batch]: %s",
						values[i].Shape(), batch.Shape()[1:]))))
				break
			}
			if err := tensor.ParallelConcat(batch, int(offset), values[i]); err != nil {
				slot.updateStatus(err)
				break
			}
		}
	}

	slot.mu.Lock()
	slot.numElements++
	slot.mu.Unlock()

	it.mu.Lock()
	it.callCompleted(slot)
	it.mu.Unlock()
}

// callCompleted retires one in-flight call. Callers hold mu. It wakes the
// runner and any quiescence waiter (Save, Close), and wakes GetNext when
// the slot's last call finishes.
func (it *batchIterator) callCompleted(slot *batchSlot) {
	it.numCalls--
	it.inflightCalls.Add(-1)
	it.condVar.Broadcast()
	slot.numCalls--
	slot.cond.Broadcast()
}

// ensureOutputAllocated lazily allocates the slot's batch tensors from the
// first successful call's output shapes: [batchSize] ++ component shape,
// GPU-compatible. When an output spec was configured, component dtypes are
// validated here.
func (it *batchIterator) ensureOutputAllocated(slot *batchSlot, values Element) {
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.outputAllocated {
		return
	}

	declared := it.dataset.cfg.OutputTypes
	if declared != nil && len(declared) != len(values) {
		slot.updateStatusLocked(errorc.With(ErrInvalidArgument,
			errorc.String("", "function output arity does not match the declared output spec")))
		return
	}

	batchSize := int(it.dataset.cfg.BatchSize)
	output := make(Element, 0, len(values))
	for i, v := range values {
		if declared != nil && v.DType() != declared[i] {
			slot.updateStatusLocked(errorc.With(ErrInvalidArgument,
				errorc.String("", fmt.Sprintf(
					"component %d has dtype %s, declared output spec wants %s", i, v.DType(), declared[i]))))
			return
		}
		shape := make(tensor.Shape, 0, v.Rank()+1)
		shape = append(shape, batchSize)
		shape = append(shape, v.Shape()...)
		t, err := it.dataset.cfg.Allocator.Allocate(v.DType(), shape,
			tensor.AllocatorAttributes{GPUCompatible: true})
		if err != nil {
			slot.updateStatusLocked(err)
			return
		}
		output = append(output, t)
	}
	slot.output = output
	slot.outputAllocated = true
}
