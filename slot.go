package mapbatch

import "sync"

// batchSlot holds the in-progress state of one batch. Slots live in a
// fixed ring indexed by batch number modulo the ring size and are
// reinitialized in place when their batch is consumed.
//
// numCalls and cond are guarded by the iterator's global mutex; the
// remaining fields are guarded by mu. cond is signalled when numCalls
// reaches zero.
type batchSlot struct {
	mu sync.Mutex

	endOfInput      bool
	numElements     int64
	output          Element
	outputAllocated bool
	status          error

	numCalls int64
	cond     *sync.Cond
}

// newBatchSlot creates a slot whose condition variable waits on the
// iterator's global mutex, matching how GetNext blocks for quiescence.
func newBatchSlot(global *sync.Mutex) *batchSlot {
	return &batchSlot{cond: sync.NewCond(global)}
}

// initialize resets the slot for a new batch number. Callers hold the
// global mutex.
func (s *batchSlot) initialize(batchSize int64) {
	s.mu.Lock()
	s.endOfInput = false
	s.numCalls = batchSize
	s.numElements = 0
	s.output = nil
	s.outputAllocated = false
	s.status = nil
	s.mu.Unlock()
}

// updateStatus accumulates err into the slot status; the first non-OK
// status wins.
func (s *batchSlot) updateStatus(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.status == nil {
		s.status = err
	}
	s.mu.Unlock()
}

// updateStatusLocked is updateStatus for callers already holding s.mu.
func (s *batchSlot) updateStatusLocked(err error) {
	if err != nil && s.status == nil {
		s.status = err
	}
}
