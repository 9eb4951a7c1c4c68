package pool

import "sync"

// NewDynamic returns a pool that grows and shrinks as needed via sync.Pool.
func NewDynamic(newFn func() any) Pool {
	return &sync.Pool{New: newFn}
}
