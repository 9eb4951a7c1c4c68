// Package pool provides reusable invoker pools for the captured-function
// executor: a fixed pool that caps the number of live invokers, and a
// dynamic pool backed by sync.Pool.
package pool

// Pool hands out invokers that run user-function calls.
type Pool interface {
	// Get returns an invoker from the pool, creating one when allowed.
	Get() any

	// Put returns an invoker to the pool for reuse.
	Put(any)
}
