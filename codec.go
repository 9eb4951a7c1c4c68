package mapbatch

import (
	"errors"
	"fmt"

	"github.com/ygrebnov/errorc"

	"github.com/streamkit/mapbatch/checkpoint"
	"github.com/streamkit/mapbatch/tensor"
)

// Status codes persisted with each slot. The set mirrors the error kinds
// the iterator can accumulate; anything unrecognized round-trips as
// unknown with its original message.
const (
	statusOK              int64 = 0
	statusCancelled       int64 = 1
	statusUnknown         int64 = 2
	statusInvalidArgument int64 = 3
)

func statusCode(err error) int64 {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, ErrIteratorClosed):
		return statusCancelled
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, tensor.ErrUnsupportedDType),
		errors.Is(err, tensor.ErrShapeMismatch),
		errors.Is(err, tensor.ErrDTypeMismatch):
		return statusInvalidArgument
	default:
		return statusUnknown
	}
}

// statusError is a restored slot status. It preserves the original message
// and matches the corresponding sentinel through errors.Is.
type statusError struct {
	code int64
	msg  string
}

func (e *statusError) Error() string { return e.msg }

func (e *statusError) Is(target error) bool {
	switch e.code {
	case statusCancelled:
		return target == ErrIteratorClosed
	case statusInvalidArgument:
		return target == ErrInvalidArgument
	default:
		return false
	}
}

func statusFromCode(code int64, msg string) error {
	if code == statusOK {
		return nil
	}
	return &statusError{code: code, msg: msg}
}

// saveState writes counters and every ring slot. Callers hold mu with
// numCalls == 0.
func (it *batchIterator) saveState(w checkpoint.Writer) error {
	if err := w.WriteInt(it.fullName("call_counter"), it.callCounter); err != nil {
		return err
	}
	if err := w.WriteInt(it.fullName("input_batch"), it.inputBatch); err != nil {
		return err
	}
	if err := w.WriteInt(it.fullName("output_batch"), it.outputBatch); err != nil {
		return err
	}
	if err := w.WriteInt(it.fullName("batch_results_size"), int64(len(it.slots))); err != nil {
		return err
	}
	for i := range it.slots {
		if err := it.writeSlot(w, i); err != nil {
			return err
		}
	}
	return nil
}

// restoreState reads counters and every ring slot. The serialized ring
// size must match the configured one. Callers hold mu.
func (it *batchIterator) restoreState(r checkpoint.Reader) error {
	var err error
	if it.callCounter, err = r.ReadInt(it.fullName("call_counter")); err != nil {
		return err
	}
	if it.inputBatch, err = r.ReadInt(it.fullName("input_batch")); err != nil {
		return err
	}
	if it.outputBatch, err = r.ReadInt(it.fullName("output_batch")); err != nil {
		return err
	}
	size, err := r.ReadInt(it.fullName("batch_results_size"))
	if err != nil {
		return err
	}
	if size != int64(len(it.slots)) {
		return errorc.With(ErrInvalidArgument,
			errorc.String("", fmt.Sprintf(
				"serialized ring holds %d slots, iterator is configured with %d", size, len(it.slots))))
	}
	for i := range it.slots {
		if err := it.readSlot(r, i); err != nil {
			return err
		}
	}
	return nil
}

func slotKey(index int, field string) string {
	return fmt.Sprintf("batch_results_%d_%s", index, field)
}

// writeSlot serializes one slot. Output tensors of a non-full batch are
// sliced to the written rows; the tail of the allocation is uninitialized
// and must not be persisted.
func (it *batchIterator) writeSlot(w checkpoint.Writer, index int) error {
	slot := it.slots[index]
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.endOfInput {
		if err := w.WriteString(it.fullName(slotKey(index, "end_of_input")), ""); err != nil {
			return err
		}
	}
	if err := w.WriteInt(it.fullName(slotKey(index, "num_calls")), slot.numCalls); err != nil {
		return err
	}
	if err := w.WriteInt(it.fullName(slotKey(index, "num_elements")), slot.numElements); err != nil {
		return err
	}
	if slot.outputAllocated {
		if err := w.WriteString(it.fullName(slotKey(index, "output_allocated")), ""); err != nil {
			return err
		}
	}
	if err := w.WriteInt(it.fullName(slotKey(index, "output_size")), int64(len(slot.output))); err != nil {
		return err
	}
	for i, t := range slot.output {
		key := it.fullName(slotKey(index, fmt.Sprintf("output_%d", i)))
		if slot.numElements < it.dataset.cfg.BatchSize {
			sliced, err := t.Slice0(int(slot.numElements))
			if err != nil {
				return err
			}
			if err := w.WriteTensor(key, sliced); err != nil {
				return err
			}
		} else {
			if err := w.WriteTensor(key, t); err != nil {
				return err
			}
		}
	}
	return it.writeStatus(w, slotKey(index, "status"), slot.status)
}

// readSlot rebuilds one slot. A partial output tensor is re-expanded into
// a full-sized batch allocation with the restored rows in the prefix.
func (it *batchIterator) readSlot(r checkpoint.Reader, index int) error {
	slot := it.slots[index]
	slot.mu.Lock()
	defer slot.mu.Unlock()

	slot.endOfInput = r.Contains(it.fullName(slotKey(index, "end_of_input")))

	var err error
	if slot.numCalls, err = r.ReadInt(it.fullName(slotKey(index, "num_calls"))); err != nil {
		return err
	}
	if slot.numElements, err = r.ReadInt(it.fullName(slotKey(index, "num_elements"))); err != nil {
		return err
	}
	slot.outputAllocated = r.Contains(it.fullName(slotKey(index, "output_allocated")))

	outputSize, err := r.ReadInt(it.fullName(slotKey(index, "output_size")))
	if err != nil {
		return err
	}
	batchSize := int(it.dataset.cfg.BatchSize)
	slot.output = make(Element, 0, outputSize)
	for i := int64(0); i < outputSize; i++ {
		t, err := r.ReadTensor(it.fullName(slotKey(index, fmt.Sprintf("output_%d", i))))
		if err != nil {
			return err
		}
		if t.Rank() > 0 && t.Dim(0) < batchSize {
			shape := t.Shape().Clone()
			shape[0] = batchSize
			full, err := it.dataset.cfg.Allocator.Allocate(t.DType(), shape,
				tensor.AllocatorAttributes{GPUCompatible: true})
			if err != nil {
				return err
			}
			if err := tensor.CopyRows(full, t, t.Dim(0)); err != nil {
				return err
			}
			t = full
		}
		slot.output = append(slot.output, t)
	}

	status, err := it.readStatus(r, slotKey(index, "status"))
	if err != nil {
		return err
	}
	slot.status = status
	return nil
}

func (it *batchIterator) writeStatus(w checkpoint.Writer, prefix string, status error) error {
	code := statusCode(status)
	if err := w.WriteInt(it.fullName(prefix+"_code"), code); err != nil {
		return err
	}
	if code != statusOK {
		if err := w.WriteString(it.fullName(prefix+"_msg"), status.Error()); err != nil {
			return err
		}
	}
	return nil
}

func (it *batchIterator) readStatus(r checkpoint.Reader, prefix string) (error, error) {
	code, err := r.ReadInt(it.fullName(prefix + "_code"))
	if err != nil {
		return nil, err
	}
	if code == statusOK {
		return nil, nil
	}
	msg, err := r.ReadString(it.fullName(prefix + "_msg"))
	if err != nil {
		return nil, err
	}
	return statusFromCode(code, msg), nil
}
