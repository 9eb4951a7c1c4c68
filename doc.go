// Package mapbatch implements a fused map-and-batch dataset transform: a
// pull iterator that applies a user function to upstream elements with
// bounded parallelism and assembles the outputs into fixed-size batches.
//
// Construction
//   - NewDataset(input, fn, batchSize, opts...) builds the immutable
//     transform description. Parallelism is set with WithNumParallelCalls
//     (or WithNumParallelBatches, which multiplies by the batch size).
//   - Dataset.MakeIterator(prefix) produces an independent iterator; an
//     empty prefix gets a generated one.
//
// Semantics
//   - GetNext returns batches in the order they were started. Within a
//     batch, row r holds the output of the r-th call dispatched for that
//     batch; rows follow dispatch order, not completion order.
//   - A trailing batch smaller than the batch size is emitted with a
//     shorter leading dimension, or discarded when WithDropRemainder is
//     set.
//   - Per-batch errors are accumulated first-non-OK-wins; a failed batch
//     surfaces its error from GetNext and iteration continues with the
//     next batch.
//   - Save serializes the full in-flight state after quiescing all calls;
//     Restore rebuilds it into a fresh iterator.
//   - Close cancels the runner, waits for in-flight calls, and releases
//     the upstream iterator. It is idempotent.
//
// Concurrency contract: at most one caller may use GetNext, Save, and
// Restore at a time; the iterator serializes them internally, so a single
// consumer goroutine is the intended usage.
package mapbatch
